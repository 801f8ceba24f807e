package score

import (
	"math"
)

// Engine turns raw category data into bounded sub-scores, an overall
// weighted score, and a letter rating. It performs no I/O and is safe for
// concurrent use.
type Engine struct {
	config *Config
}

// NewEngine creates a scoring engine. A nil config selects the production
// defaults.
func NewEngine(config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{config: config}
}

// Computed is the full output of one scoring pass.
type Computed struct {
	Categories   CategoryScores       `json:"categories"`
	OverallScore int                  `json:"overall_score"`
	Rating       Rating               `json:"rating"`
	Summary      VulnerabilitySummary `json:"summary"`
}

// Compute scores all six categories and combines them.
func (e *Engine) Compute(raw TokenRawData) Computed {
	categories := CategoryScores{
		CodeSecurity: e.ScoreSecurity(raw.Security),
		Market:       e.ScoreMarket(raw.Market),
		Governance:   e.ScoreGovernance(raw.Governance),
		Fundamental:  e.ScoreFundamental(raw.Fundamental),
		Community:    e.ScoreCommunity(raw.Community),
		Operational:  e.ScoreOperational(raw.Operational),
	}

	overall := e.Overall(categories)

	return Computed{
		Categories:   categories,
		OverallScore: overall,
		Rating:       e.Rate(overall),
		Summary:      Summarize(raw.Security.Vulnerabilities),
	}
}

// Overall combines the six category scores with the configured weights and
// rounds to the nearest integer.
func (e *Engine) Overall(c CategoryScores) int {
	w := e.config.Weights
	return round(float64(c.CodeSecurity)*w.CodeSecurity +
		float64(c.Market)*w.Market +
		float64(c.Governance)*w.Governance +
		float64(c.Fundamental)*w.Fundamental +
		float64(c.Community)*w.Community +
		float64(c.Operational)*w.Operational)
}

// Rate maps an overall score onto the configured rating ladder. The highest
// band whose lower bound is satisfied wins.
func (e *Engine) Rate(overall int) Rating {
	for _, band := range e.config.RatingBands {
		if overall >= band.Min {
			return band.Rating
		}
	}
	return e.config.RatingBands[len(e.config.RatingBands)-1].Rating
}

// ScoreSecurity computes the code security sub-score from audit state,
// analyzer findings, and code quality signals.
func (e *Engine) ScoreSecurity(d SecurityData) int {
	audit := auditComponent(d.AuditStatus, d.AuditScore)
	vuln := e.vulnerabilityComponent(d.Vulnerabilities)

	return round(audit*0.40 + vuln*0.35 + d.CodeQuality*0.15 + d.GasOptimization*0.10)
}

// auditComponent floors or ceils the raw audit score by audit status: a
// full audit guarantees at least 80, a partial audit at least 60, and an
// unaudited contract is capped at 40. Unknown statuses score zero.
func auditComponent(status AuditStatus, raw float64) float64 {
	switch status {
	case AuditStatusAudited:
		return math.Max(80, raw)
	case AuditStatusPartiallyAudited:
		return math.Max(60, raw)
	case AuditStatusUnaudited:
		return math.Min(40, raw)
	default:
		return 0
	}
}

// vulnerabilityComponent starts at 100 and subtracts a confidence-scaled
// penalty per finding, flooring at 0.
func (e *Engine) vulnerabilityComponent(vulns []Vulnerability) float64 {
	scoreVal := 100.0
	for _, v := range vulns {
		scoreVal -= e.config.SeverityWeights[v.Severity] * (v.Confidence / 100)
	}
	return math.Max(0, scoreVal)
}

// ScoreMarket computes the market sub-score from liquidity depth, traded
// volume, price stability, and market cap rank.
func (e *Engine) ScoreMarket(d MarketData) int {
	var liquidity, volume float64
	if d.MarketCap > 0 {
		liquidity = math.Min(100, d.Liquidity/d.MarketCap*1000)
		volume = math.Min(100, d.Volume24h/d.MarketCap*100)
	}
	stability := math.Max(0, 100-d.PriceVolatility*100)
	rank := marketCapRankComponent(d.MarketCapRank)

	return round(liquidity*0.35 + volume*0.25 + stability*0.20 + rank*0.20)
}

func marketCapRankComponent(rank int) float64 {
	switch {
	case rank <= 10:
		return 100
	case rank <= 50:
		return 90
	case rank <= 100:
		return 80
	case rank <= 500:
		return 60
	case rank <= 1000:
		return 40
	default:
		return 20
	}
}

// ScoreGovernance computes the governance sub-score.
func (e *Engine) ScoreGovernance(d GovernanceData) int {
	measures := securityMeasuresComponent(d.HasMultiSig, d.HasTimelock)
	treasury := treasuryComponent(d.TreasuryValue)

	return round(d.VotingParticipation*0.30 + d.PowerDistribution*0.25 +
		measures*0.25 + treasury*0.20)
}

func securityMeasuresComponent(multiSig, timelock bool) float64 {
	var v float64
	if multiSig {
		v += 50
	}
	if timelock {
		v += 50
	}
	return v
}

func treasuryComponent(usd float64) float64 {
	switch {
	case usd > 10_000_000:
		return 100
	case usd > 1_000_000:
		return 80
	case usd > 100_000:
		return 60
	case usd > 10_000:
		return 40
	default:
		return 20
	}
}

// ScoreFundamental computes the fundamentals sub-score.
func (e *Engine) ScoreFundamental(d FundamentalData) int {
	partnership := partnershipComponent(d.PartnershipCount)

	return round(d.TokenomicsHealth*0.30 + d.TeamCredibility*0.25 +
		partnership*0.20 + d.UtilityScore*0.15 + d.RoadmapProgress*0.10)
}

func partnershipComponent(count int) float64 {
	switch {
	case count >= 10:
		return 100
	case count >= 5:
		return 80
	case count >= 3:
		return 60
	case count >= 1:
		return 40
	default:
		return 20
	}
}

// ScoreCommunity computes the community sub-score from engagement, audience
// size, developer activity, and documentation quality.
func (e *Engine) ScoreCommunity(d CommunityData) int {
	size := communitySizeComponent(d.TwitterFollowers + d.TelegramMembers + d.DiscordMembers)
	dev := developerComponent(d.GithubContributors)

	return round(d.SocialEngagement*0.30 + size*0.25 + dev*0.25 +
		d.DocumentationQuality*0.20)
}

func communitySizeComponent(total int) float64 {
	switch {
	case total > 1_000_000:
		return 100
	case total > 100_000:
		return 80
	case total > 10_000:
		return 60
	case total > 1_000:
		return 40
	default:
		return 20
	}
}

func developerComponent(contributors int) float64 {
	switch {
	case contributors >= 50:
		return 100
	case contributors >= 20:
		return 80
	case contributors >= 10:
		return 60
	case contributors >= 5:
		return 40
	case contributors >= 1:
		return 20
	default:
		return 0
	}
}

// ScoreOperational computes the operational sub-score.
func (e *Engine) ScoreOperational(d OperationalData) int {
	tx := transactionComponent(d.TransactionSpeed)
	infra := infrastructureComponent(d.UpgradeCapability, d.EmergencyProcedures)

	return round(d.Uptime*0.30 + tx*0.25 + d.NetworkSecurity*0.25 + infra*0.20)
}

func transactionComponent(avgSeconds float64) float64 {
	switch {
	case avgSeconds <= 5:
		return 100
	case avgSeconds <= 15:
		return 80
	case avgSeconds <= 30:
		return 60
	case avgSeconds <= 60:
		return 40
	default:
		return 20
	}
}

func infrastructureComponent(upgradeCapability float64, emergencyProcedures bool) float64 {
	v := upgradeCapability
	if emergencyProcedures {
		v += 20
	}
	return math.Min(100, v)
}

// Summarize counts findings into the product's display buckets. The
// severity-to-bucket mapping is intentionally preserved from the upstream
// surface: critical->critical, high->warnings, medium->informational,
// low->verified.
func Summarize(vulns []Vulnerability) VulnerabilitySummary {
	var s VulnerabilitySummary
	for _, v := range vulns {
		switch v.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityHigh:
			s.Warnings++
		case SeverityMedium:
			s.Informational++
		case SeverityLow:
			s.Verified++
		}
	}
	return s
}

func round(v float64) int {
	return int(math.Round(v))
}
