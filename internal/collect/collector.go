// Package collect gathers the six category signals that feed the scoring
// engine. Every collector is total: an upstream failure of any kind is
// absorbed and replaced by the category's documented neutral default, so
// the engine downstream never has to reason about missing data.
package collect

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aimaneth/blitzproof/internal/score"
	"github.com/aimaneth/blitzproof/internal/telemetry/metrics"
)

// Per-category data sources. Each returns an error freely; totality is
// enforced once, in the aggregator, rather than re-implemented per source.
type (
	// MarketSource fetches market signals for a token.
	MarketSource interface {
		FetchMarketData(ctx context.Context, tokenID string) (score.MarketData, error)
	}

	// SecuritySource fetches contract verification state and analyzer
	// findings. The contract address may be empty for native assets.
	SecuritySource interface {
		FetchSecurityData(ctx context.Context, tokenID, contractAddress string) (score.SecurityData, error)
	}

	// GovernanceSource fetches on-chain governance signals.
	GovernanceSource interface {
		FetchGovernanceData(ctx context.Context, tokenID string) (score.GovernanceData, error)
	}

	// FundamentalSource fetches project fundamentals.
	FundamentalSource interface {
		FetchFundamentalData(ctx context.Context, tokenID string) (score.FundamentalData, error)
	}

	// CommunitySource fetches social and developer activity.
	CommunitySource interface {
		FetchCommunityData(ctx context.Context, tokenID string) (score.CommunityData, error)
	}

	// OperationalSource fetches network and infrastructure signals.
	OperationalSource interface {
		FetchOperationalData(ctx context.Context, tokenID string) (score.OperationalData, error)
	}
)

// Aggregator fans a token out to all six sources concurrently and
// assembles the raw data bundle. Collect never fails: each category
// degrades independently to its neutral default.
type Aggregator struct {
	Market      MarketSource
	Security    SecuritySource
	Governance  GovernanceSource
	Fundamental FundamentalSource
	Community   CommunitySource
	Operational OperationalSource

	// Timeout bounds each individual source call.
	Timeout time.Duration
}

// DefaultFetchTimeout bounds one source call when no timeout is configured.
const DefaultFetchTimeout = 10 * time.Second

// Collect runs all six fetches concurrently and waits for every category
// to settle (value or default). The six calls have no ordering dependency.
func (a *Aggregator) Collect(ctx context.Context, tokenID, contractAddress string) score.TokenRawData {
	var raw score.TokenRawData
	var wg sync.WaitGroup
	wg.Add(6)

	go func() {
		defer wg.Done()
		raw.Market = fetchOrDefault(ctx, a.Timeout, "market", DefaultMarketData(),
			func(ctx context.Context) (score.MarketData, error) {
				return a.Market.FetchMarketData(ctx, tokenID)
			})
	}()

	go func() {
		defer wg.Done()
		raw.Security = fetchOrDefault(ctx, a.Timeout, "security", DefaultSecurityData(),
			func(ctx context.Context) (score.SecurityData, error) {
				return a.Security.FetchSecurityData(ctx, tokenID, contractAddress)
			})
	}()

	go func() {
		defer wg.Done()
		raw.Governance = fetchOrDefault(ctx, a.Timeout, "governance", DefaultGovernanceData(),
			func(ctx context.Context) (score.GovernanceData, error) {
				return a.Governance.FetchGovernanceData(ctx, tokenID)
			})
	}()

	go func() {
		defer wg.Done()
		raw.Fundamental = fetchOrDefault(ctx, a.Timeout, "fundamental", DefaultFundamentalData(),
			func(ctx context.Context) (score.FundamentalData, error) {
				return a.Fundamental.FetchFundamentalData(ctx, tokenID)
			})
	}()

	go func() {
		defer wg.Done()
		raw.Community = fetchOrDefault(ctx, a.Timeout, "community", DefaultCommunityData(),
			func(ctx context.Context) (score.CommunityData, error) {
				return a.Community.FetchCommunityData(ctx, tokenID)
			})
	}()

	go func() {
		defer wg.Done()
		raw.Operational = fetchOrDefault(ctx, a.Timeout, "operational", DefaultOperationalData(),
			func(ctx context.Context) (score.OperationalData, error) {
				return a.Operational.FetchOperationalData(ctx, tokenID)
			})
	}()

	wg.Wait()
	return raw
}

// fetchOrDefault enforces the total-defaulting contract for one category:
// errors, timeouts, and panics all collapse to the neutral default.
func fetchOrDefault[T any](ctx context.Context, timeout time.Duration, category string, def T, fn func(context.Context) (T, error)) (out T) {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("category", category).
				Interface("panic", r).
				Msg("Collector panicked, using neutral default")
			metrics.Default().RecordCollectorResult(category, "panic")
			out = def
		}
	}()

	start := time.Now()
	v, err := fn(ctx)
	duration := time.Since(start)

	if err != nil {
		log.Warn().
			Err(err).
			Str("category", category).
			Dur("duration", duration).
			Msg("Collector failed, using neutral default")
		metrics.Default().RecordCollectorResult(category, "default")
		return def
	}

	metrics.Default().RecordCollectorResult(category, "success")
	metrics.Default().ObserveCollectorDuration(category, duration)
	return v
}
