package collect

import "github.com/aimaneth/blitzproof/internal/score"

// Neutral defaults per category. Every default is chosen so that the
// scoring engine produces a conservative but sane sub-score when a
// provider is down: a token is never rewarded for missing data, and never
// scored negatively for it either.

// DefaultMarketData reports an unknown token: all zero signals and the
// sentinel rank.
func DefaultMarketData() score.MarketData {
	return score.MarketData{
		MarketCapRank: score.UnknownRank,
	}
}

// DefaultSecurityData reports an unaudited contract with no findings.
func DefaultSecurityData() score.SecurityData {
	return score.SecurityData{
		Vulnerabilities: []score.Vulnerability{},
		AuditStatus:     score.AuditStatusUnaudited,
	}
}

// DefaultGovernanceData reports no observable governance activity.
func DefaultGovernanceData() score.GovernanceData {
	return score.GovernanceData{}
}

// DefaultFundamentalData reports a project with no verifiable fundamentals.
func DefaultFundamentalData() score.FundamentalData {
	return score.FundamentalData{}
}

// DefaultCommunityData reports a token with no measurable audience.
func DefaultCommunityData() score.CommunityData {
	return score.CommunityData{}
}

// DefaultOperationalData reports a network with no observable operations.
func DefaultOperationalData() score.OperationalData {
	return score.OperationalData{}
}
