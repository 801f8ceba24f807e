package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimaneth/blitzproof/internal/cache"
	"github.com/aimaneth/blitzproof/internal/collect"
	"github.com/aimaneth/blitzproof/internal/persistence"
	"github.com/aimaneth/blitzproof/internal/score"
)

// fakeScores is an in-memory persistence.ScoresRepo.
type fakeScores struct {
	mu        sync.Mutex
	rows      map[string]score.BlitzProofScore
	upserts   int
	deleteErr error
}

func newFakeScores() *fakeScores {
	return &fakeScores{rows: make(map[string]score.BlitzProofScore)}
}

func (f *fakeScores) Upsert(_ context.Context, s score.BlitzProofScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[s.TokenID] = s
	f.upserts++
	return nil
}

func (f *fakeScores) Insert(_ context.Context, s score.BlitzProofScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.rows[s.TokenID]; exists {
		return persistence.ErrDuplicate
	}
	f.rows[s.TokenID] = s
	return nil
}

func (f *fakeScores) Get(_ context.Context, tokenID string) (score.BlitzProofScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[tokenID]
	if !ok {
		return score.BlitzProofScore{}, persistence.ErrNotFound
	}
	return s, nil
}

func (f *fakeScores) Delete(_ context.Context, tokenID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.rows, tokenID)
	return nil
}

// fakeTokenInfo is an in-memory persistence.TokenInfoRepo.
type fakeTokenInfo struct {
	mu      sync.Mutex
	rows    map[string]persistence.TokenInfo
	deletes int
}

func newFakeTokenInfo() *fakeTokenInfo {
	return &fakeTokenInfo{rows: make(map[string]persistence.TokenInfo)}
}

func (f *fakeTokenInfo) Upsert(_ context.Context, info persistence.TokenInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[info.TokenID] = info
	return nil
}

func (f *fakeTokenInfo) Get(_ context.Context, tokenID string) (persistence.TokenInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.rows[tokenID]
	if !ok {
		return persistence.TokenInfo{}, persistence.ErrNotFound
	}
	return info, nil
}

func (f *fakeTokenInfo) Delete(_ context.Context, tokenID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	delete(f.rows, tokenID)
	return nil
}

// fakeNotifier records score update events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []score.BlitzProofScore
}

func (n *fakeNotifier) ScoreUpdated(s score.BlitzProofScore) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, s)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

// fixedSources returns deterministic data for every category.
type fixedSources struct{}

func (fixedSources) FetchMarketData(context.Context, string) (score.MarketData, error) {
	return score.MarketData{MarketCap: 1_000_000, Volume24h: 100_000, Liquidity: 50_000, MarketCapRank: 45, PriceVolatility: 0.05}, nil
}

func (fixedSources) FetchSecurityData(context.Context, string, string) (score.SecurityData, error) {
	return score.SecurityData{AuditStatus: score.AuditStatusAudited, AuditScore: 85, CodeQuality: 70, GasOptimization: 60}, nil
}

func (fixedSources) FetchGovernanceData(context.Context, string) (score.GovernanceData, error) {
	return score.GovernanceData{VotingParticipation: 40, PowerDistribution: 50, HasMultiSig: true, TreasuryValue: 2_000_000}, nil
}

func (fixedSources) FetchFundamentalData(context.Context, string) (score.FundamentalData, error) {
	return score.FundamentalData{TokenomicsHealth: 70, TeamCredibility: 60, UtilityScore: 50, PartnershipCount: 3, RoadmapProgress: 40}, nil
}

func (fixedSources) FetchCommunityData(context.Context, string) (score.CommunityData, error) {
	return score.CommunityData{TwitterFollowers: 50_000, SocialEngagement: 55, DocumentationQuality: 60, GithubContributors: 15}, nil
}

func (fixedSources) FetchOperationalData(context.Context, string) (score.OperationalData, error) {
	return score.OperationalData{Uptime: 99, TransactionSpeed: 10, NetworkSecurity: 70, UpgradeCapability: 60}, nil
}

func testAggregator() *collect.Aggregator {
	s := fixedSources{}
	return &collect.Aggregator{
		Market: s, Security: s, Governance: s,
		Fundamental: s, Community: s, Operational: s,
		Timeout: time.Second,
	}
}

func newService(scores *fakeScores, infos *fakeTokenInfo, c *cache.Cache, n Notifier) *ScoreService {
	return NewScoreService(score.NewEngine(nil), testAggregator(), &persistence.Repository{
		Scores:    scores,
		TokenInfo: infos,
	}, c, n)
}

func TestScoreService_GetScore_ComputesWhenStoreEmpty(t *testing.T) {
	scores := newFakeScores()
	notifier := &fakeNotifier{}
	svc := newService(scores, newFakeTokenInfo(), nil, notifier)

	got, err := svc.GetScore(context.Background(), "pepe")
	require.NoError(t, err)

	assert.Equal(t, "pepe", got.TokenID)
	assert.Equal(t, score.SystemActor, got.UpdatedBy)
	assert.GreaterOrEqual(t, got.OverallScore, 0)
	assert.LessOrEqual(t, got.OverallScore, 100)
	assert.NotEmpty(t, got.Rating)

	// Write-through persisted the computed score.
	stored, err := scores.Get(context.Background(), "pepe")
	require.NoError(t, err)
	assert.Equal(t, got, stored)
	assert.Equal(t, 1, notifier.count())
}

func TestScoreService_GetScore_ServesStoredRowWithoutRecompute(t *testing.T) {
	scores := newFakeScores()
	stored := score.BlitzProofScore{TokenID: "pepe", OverallScore: 88, Rating: score.RatingAA, UpdatedBy: "admin"}
	require.NoError(t, scores.Upsert(context.Background(), stored))
	scores.upserts = 0

	svc := newService(scores, newFakeTokenInfo(), nil, nil)

	got, err := svc.GetScore(context.Background(), "pepe")
	require.NoError(t, err)

	assert.Equal(t, stored, got)
	assert.Zero(t, scores.upserts, "a stored row must not trigger a recompute")
}

func TestScoreService_GetScore_CacheHitSkipsStore(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := cache.NewWithClient(client, cache.DefaultTTL)

	cached := score.BlitzProofScore{TokenID: "pepe", OverallScore: 72, Rating: score.RatingA}
	data, err := json.Marshal(cached)
	require.NoError(t, err)
	mock.ExpectGet(cache.ScoreKey("pepe")).SetVal(string(data))

	scores := newFakeScores()
	svc := newService(scores, newFakeTokenInfo(), c, nil)

	got, err := svc.GetScore(context.Background(), "pepe")
	require.NoError(t, err)

	assert.Equal(t, cached, got)
	assert.Empty(t, scores.rows, "cache hit must not touch the store")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreService_GetScore_CacheMissBackfillsFromStore(t *testing.T) {
	stored := score.BlitzProofScore{TokenID: "pepe", OverallScore: 61, Rating: score.RatingBBB}
	scores := newFakeScores()
	require.NoError(t, scores.Upsert(context.Background(), stored))

	client, mock := redismock.NewClientMock()
	c := cache.NewWithClient(client, cache.DefaultTTL)

	data, err := json.Marshal(stored)
	require.NoError(t, err)
	mock.ExpectGet(cache.ScoreKey("pepe")).RedisNil()
	mock.ExpectSet(cache.ScoreKey("pepe"), data, cache.DefaultTTL).SetVal("OK")

	svc := newService(scores, newFakeTokenInfo(), c, nil)

	got, err := svc.GetScore(context.Background(), "pepe")
	require.NoError(t, err)

	assert.Equal(t, stored, got)
	assert.NoError(t, mock.ExpectationsWereMet(), "a store hit must refill the cache")
}

func TestScoreService_UpdateScore_RejectsBadPayloads(t *testing.T) {
	svc := newService(newFakeScores(), newFakeTokenInfo(), nil, nil)

	tests := []struct {
		name string
		in   score.BlitzProofScore
	}{
		{"empty token id", score.BlitzProofScore{OverallScore: 50, Rating: score.RatingBB}},
		{"overall above 100", score.BlitzProofScore{TokenID: "pepe", OverallScore: 101, Rating: score.RatingAAA}},
		{"negative overall", score.BlitzProofScore{TokenID: "pepe", OverallScore: -1, Rating: score.RatingD}},
		{"missing rating", score.BlitzProofScore{TokenID: "pepe", OverallScore: 50}},
		{"category out of range", score.BlitzProofScore{
			TokenID: "pepe", OverallScore: 50, Rating: score.RatingBB,
			Categories: score.CategoryScores{Market: 150},
		}},
		{"negative summary count", score.BlitzProofScore{
			TokenID: "pepe", OverallScore: 50, Rating: score.RatingBB,
			Summary: score.VulnerabilitySummary{Critical: -1},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateScore(context.Background(), tt.in)

			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestScoreService_UpdateScore_DuplicateRowRejected(t *testing.T) {
	scores := newFakeScores()
	require.NoError(t, scores.Upsert(context.Background(), score.BlitzProofScore{TokenID: "pepe"}))

	svc := newService(scores, newFakeTokenInfo(), nil, nil)

	_, err := svc.UpdateScore(context.Background(), score.BlitzProofScore{TokenID: "pepe", OverallScore: 50, Rating: score.RatingBB})
	assert.ErrorIs(t, err, persistence.ErrDuplicate)
}

func TestScoreService_UpdateScore_InvalidatesCacheAndNotifies(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := cache.NewWithClient(client, cache.DefaultTTL)

	mock.ExpectDel(cache.ScoreKey("pepe")).SetVal(0)

	notifier := &fakeNotifier{}
	svc := newService(newFakeScores(), newFakeTokenInfo(), c, notifier)

	got, err := svc.UpdateScore(context.Background(), score.BlitzProofScore{TokenID: "pepe", OverallScore: 85, Rating: score.RatingAA})
	require.NoError(t, err)

	assert.Equal(t, "admin", got.UpdatedBy)
	assert.Equal(t, 1, notifier.count())
	assert.NoError(t, mock.ExpectationsWereMet(),
		"admin writes must invalidate the cache even when the key was absent")
}

func TestScoreService_Recalculate_BypassesCache(t *testing.T) {
	scores := newFakeScores()
	require.NoError(t, scores.Upsert(context.Background(), score.BlitzProofScore{TokenID: "pepe", OverallScore: 1}))

	svc := newService(scores, newFakeTokenInfo(), nil, nil)

	got, err := svc.Recalculate(context.Background(), "pepe", "")
	require.NoError(t, err)

	assert.Equal(t, score.SystemActor, got.UpdatedBy)
	assert.NotEqual(t, 1, got.OverallScore, "recalculation must replace the stale row")
}

func TestScoreService_GetCombined(t *testing.T) {
	scores := newFakeScores()
	infos := newFakeTokenInfo()
	svc := newService(scores, infos, nil, nil)

	// Without metadata the combined payload omits info.
	combined, err := svc.GetCombined(context.Background(), "pepe")
	require.NoError(t, err)
	assert.Nil(t, combined.Info)
	assert.Equal(t, "pepe", combined.Score.TokenID)

	require.NoError(t, infos.Upsert(context.Background(), persistence.TokenInfo{
		TokenID: "pepe", Name: "Pepe", Symbol: "PEPE",
	}))

	combined, err = svc.GetCombined(context.Background(), "pepe")
	require.NoError(t, err)
	require.NotNil(t, combined.Info)
	assert.Equal(t, "Pepe", combined.Info.Name)
}

func TestScoreService_DeleteTokenData_BestEffort(t *testing.T) {
	scores := newFakeScores()
	scores.deleteErr = errors.New("connection reset")
	infos := newFakeTokenInfo()
	require.NoError(t, infos.Upsert(context.Background(), persistence.TokenInfo{TokenID: "pepe"}))

	svc := newService(scores, infos, nil, nil)

	err := svc.DeleteTokenData(context.Background(), "pepe")
	assert.Error(t, err, "the first storage failure is reported")
	assert.Equal(t, 1, infos.deletes, "later deletions still run after an earlier failure")
}

func TestScoreService_ComputeUsesContractAddressFromInfo(t *testing.T) {
	infos := newFakeTokenInfo()
	require.NoError(t, infos.Upsert(context.Background(), persistence.TokenInfo{
		TokenID: "pepe", ContractAddress: "0xabc",
	}))

	var gotContract string
	src := fixedSources{}
	agg := &collect.Aggregator{
		Market:   src,
		Security: securityCapture{&gotContract},
		Governance: src, Fundamental: src, Community: src, Operational: src,
		Timeout: time.Second,
	}

	svc := NewScoreService(score.NewEngine(nil), agg, &persistence.Repository{
		Scores:    newFakeScores(),
		TokenInfo: infos,
	}, nil, nil)

	_, err := svc.Recalculate(context.Background(), "pepe", "")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", gotContract, "the security collector receives the stored contract address")

	_, err = svc.Recalculate(context.Background(), "pepe", "0xdef")
	require.NoError(t, err)
	assert.Equal(t, "0xdef", gotContract, "an explicit contract address overrides the metadata lookup")
}

type securityCapture struct {
	contract *string
}

func (s securityCapture) FetchSecurityData(_ context.Context, _, contract string) (score.SecurityData, error) {
	*s.contract = contract
	return score.SecurityData{AuditStatus: score.AuditStatusUnaudited}, nil
}
