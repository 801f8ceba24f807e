package score

import "time"

// Severity classifies a reported vulnerability finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// AuditStatus reflects how much of a token's contract code has been audited.
type AuditStatus string

const (
	AuditStatusAudited          AuditStatus = "audited"
	AuditStatusPartiallyAudited AuditStatus = "partially_audited"
	AuditStatusUnaudited        AuditStatus = "unaudited"
)

// Rating is the letter grade derived from the overall score.
type Rating string

const (
	RatingAAA Rating = "AAA"
	RatingAA  Rating = "AA"
	RatingA   Rating = "A"
	RatingBBB Rating = "BBB"
	RatingBB  Rating = "BB"
	RatingB   Rating = "B"
	RatingCCC Rating = "CCC"
	RatingCC  Rating = "CC"
	RatingC   Rating = "C"
	RatingD   Rating = "D"
)

// UnknownRank is the sentinel market cap rank used when the upstream
// provider has no ranking for a token.
const UnknownRank = 999999

// Vulnerability is a single finding reported by an external analyzer.
type Vulnerability struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"` // 0-100
}

// MarketData holds raw market signals for one token.
type MarketData struct {
	MarketCap       float64 `json:"market_cap"`
	Volume24h       float64 `json:"volume_24h"`
	PriceChange24h  float64 `json:"price_change_24h"`
	Liquidity       float64 `json:"liquidity"`
	MarketCapRank   int     `json:"market_cap_rank"`
	PriceVolatility float64 `json:"price_volatility"`
}

// SecurityData holds contract verification and analyzer output.
type SecurityData struct {
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	AuditStatus     AuditStatus     `json:"audit_status"`
	AuditScore      float64         `json:"audit_score"`
	CodeQuality     float64         `json:"code_quality"`
	GasOptimization float64         `json:"gas_optimization"`
}

// GovernanceData holds on-chain governance signals.
type GovernanceData struct {
	VotingParticipation float64 `json:"voting_participation"`
	PowerDistribution   float64 `json:"power_distribution"`
	ProposalCount       int     `json:"proposal_count"`
	HasMultiSig         bool    `json:"has_multi_sig"`
	HasTimelock         bool    `json:"has_timelock"`
	TreasuryValue       float64 `json:"treasury_value"` // USD
}

// VestingEntry is one tranche of a token vesting schedule.
type VestingEntry struct {
	Amount     float64   `json:"amount"`
	UnlockDate time.Time `json:"unlock_date"`
	Percentage float64   `json:"percentage"`
}

// FundamentalData holds project fundamentals.
type FundamentalData struct {
	TokenomicsHealth float64        `json:"tokenomics_health"`
	TeamCredibility  float64        `json:"team_credibility"`
	UtilityScore     float64        `json:"utility_score"`
	PartnershipCount int            `json:"partnership_count"`
	RoadmapProgress  float64        `json:"roadmap_progress"`
	VestingSchedule  []VestingEntry `json:"vesting_schedule"`
}

// CommunityData holds social and developer activity signals.
type CommunityData struct {
	TwitterFollowers     int     `json:"twitter_followers"`
	TelegramMembers      int     `json:"telegram_members"`
	DiscordMembers       int     `json:"discord_members"`
	GithubContributors   int     `json:"github_contributors"`
	SocialEngagement     float64 `json:"social_engagement"`
	CommunityGrowth      float64 `json:"community_growth"` // rate, may be negative
	DocumentationQuality float64 `json:"documentation_quality"`
}

// OperationalData holds network/infrastructure signals.
type OperationalData struct {
	Uptime              float64 `json:"uptime"`            // percentage 0-100
	TransactionSpeed    float64 `json:"transaction_speed"` // avg seconds, lower is better
	NetworkSecurity     float64 `json:"network_security"`
	UpgradeCapability   float64 `json:"upgrade_capability"`
	EmergencyProcedures bool    `json:"emergency_procedures"`
}

// TokenRawData bundles the six collector outputs for one computation.
type TokenRawData struct {
	Market      MarketData      `json:"market"`
	Security    SecurityData    `json:"security"`
	Governance  GovernanceData  `json:"governance"`
	Fundamental FundamentalData `json:"fundamental"`
	Community   CommunityData   `json:"community"`
	Operational OperationalData `json:"operational"`
}

// CategoryScores holds the six normalized 0-100 sub-scores.
type CategoryScores struct {
	CodeSecurity int `json:"code_security" db:"code_security"`
	Market       int `json:"market" db:"market"`
	Governance   int `json:"governance" db:"governance"`
	Fundamental  int `json:"fundamental" db:"fundamental"`
	Community    int `json:"community" db:"community"`
	Operational  int `json:"operational" db:"operational"`
}

// VulnerabilitySummary counts findings by display bucket. The severity to
// bucket mapping (low findings landing in the "verified" counter) is kept
// byte-for-byte compatible with the upstream product surface.
type VulnerabilitySummary struct {
	Verified      int `json:"verified" db:"verified_count"`
	Informational int `json:"informational" db:"informational_count"`
	Warnings      int `json:"warnings" db:"warnings_count"`
	Critical      int `json:"critical" db:"critical_count"`
}

// BlitzProofScore is the persisted rating for one token. Exactly one row
// exists per token ID.
type BlitzProofScore struct {
	TokenID      string               `json:"token_id" db:"token_id"`
	OverallScore int                  `json:"overall_score" db:"overall_score"`
	Rating       Rating               `json:"rating" db:"rating"`
	Categories   CategoryScores       `json:"categories"`
	Summary      VulnerabilitySummary `json:"summary"`
	LastUpdated  time.Time            `json:"last_updated" db:"last_updated"`
	UpdatedBy    string               `json:"updated_by" db:"updated_by"`
}

// SystemActor is recorded as updated_by for scores written by the compute
// path rather than an admin.
const SystemActor = "system"
