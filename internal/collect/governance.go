package collect

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/aimaneth/blitzproof/internal/infrastructure/httpclient"
	"github.com/aimaneth/blitzproof/internal/score"
)

// RegistrySource serves the categories backed by the project registry
// service: governance, fundamentals, and operations. The registry is an
// internal aggregation API that curates per-token research data.
type RegistrySource struct {
	baseURL string
	client  *httpclient.ClientPool
	breaker *gobreaker.CircuitBreaker
}

// RegistryConfig configures the project registry provider.
type RegistryConfig struct {
	BaseURL string
}

// NewRegistrySource creates the registry-backed provider.
func NewRegistrySource(config RegistryConfig, client *httpclient.ClientPool) *RegistrySource {
	return &RegistrySource{
		baseURL: config.BaseURL,
		client:  client,
		breaker: newBreaker("registry"),
	}
}

// FetchGovernanceData retrieves on-chain governance signals for one token.
func (s *RegistrySource) FetchGovernanceData(ctx context.Context, tokenID string) (score.GovernanceData, error) {
	return fetchRegistry[score.GovernanceData](ctx, s, "governance", tokenID)
}

// FetchFundamentalData retrieves project fundamentals for one token.
func (s *RegistrySource) FetchFundamentalData(ctx context.Context, tokenID string) (score.FundamentalData, error) {
	return fetchRegistry[score.FundamentalData](ctx, s, "fundamental", tokenID)
}

// FetchOperationalData retrieves network and infrastructure signals.
func (s *RegistrySource) FetchOperationalData(ctx context.Context, tokenID string) (score.OperationalData, error) {
	return fetchRegistry[score.OperationalData](ctx, s, "operational", tokenID)
}

// fetchRegistry pulls one category document from the registry. The wire
// shape matches the scoring types directly.
func fetchRegistry[T any](ctx context.Context, s *RegistrySource, category, tokenID string) (T, error) {
	return execute(s.breaker, func() (T, error) {
		var out T
		if s.baseURL == "" {
			return out, fmt.Errorf("registry: no base URL configured")
		}

		endpoint := fmt.Sprintf("%s/tokens/%s/%s", s.baseURL, url.PathEscape(tokenID), category)
		if err := s.client.GetJSON(ctx, endpoint, nil, &out); err != nil {
			return out, fmt.Errorf("registry %s: %w", category, err)
		}
		return out, nil
	})
}
