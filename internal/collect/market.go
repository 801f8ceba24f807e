package collect

import (
	"context"
	"fmt"
	"math"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/aimaneth/blitzproof/internal/infrastructure/httpclient"
	"github.com/aimaneth/blitzproof/internal/score"
)

// CoinGeckoSource pulls market signals from the CoinGecko coins endpoint.
type CoinGeckoSource struct {
	baseURL string
	apiKey  string
	client  *httpclient.ClientPool
	breaker *gobreaker.CircuitBreaker
}

// CoinGeckoConfig configures the market data provider.
type CoinGeckoConfig struct {
	BaseURL string
	APIKey  string
}

// NewCoinGeckoSource creates the market provider. An empty base URL selects
// the public API.
func NewCoinGeckoSource(config CoinGeckoConfig, client *httpclient.ClientPool) *CoinGeckoSource {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.coingecko.com/api/v3"
	}
	return &CoinGeckoSource{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		client:  client,
		breaker: newBreaker("coingecko"),
	}
}

// coinGeckoCoin mirrors the subset of /coins/{id} this service reads.
type coinGeckoCoin struct {
	MarketCapRank int `json:"market_cap_rank"`
	MarketData    struct {
		MarketCap struct {
			USD float64 `json:"usd"`
		} `json:"market_cap"`
		TotalVolume struct {
			USD float64 `json:"usd"`
		} `json:"total_volume"`
		PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
		TotalLiquidity           struct {
			USD float64 `json:"usd"`
		} `json:"total_value_locked"`
		High24h struct {
			USD float64 `json:"usd"`
		} `json:"high_24h"`
		Low24h struct {
			USD float64 `json:"usd"`
		} `json:"low_24h"`
		CurrentPrice struct {
			USD float64 `json:"usd"`
		} `json:"current_price"`
	} `json:"market_data"`
}

// FetchMarketData retrieves and normalizes market signals for one token.
func (s *CoinGeckoSource) FetchMarketData(ctx context.Context, tokenID string) (score.MarketData, error) {
	return execute(s.breaker, func() (score.MarketData, error) {
		endpoint := fmt.Sprintf("%s/coins/%s?localization=false&tickers=false&community_data=false&developer_data=false",
			s.baseURL, url.PathEscape(tokenID))

		var coin coinGeckoCoin
		if err := s.client.GetJSON(ctx, endpoint, s.header(), &coin); err != nil {
			return score.MarketData{}, fmt.Errorf("coingecko: %w", err)
		}

		md := coin.MarketData
		rank := coin.MarketCapRank
		if rank <= 0 {
			rank = score.UnknownRank
		}

		out := score.MarketData{
			MarketCap:       md.MarketCap.USD,
			Volume24h:       md.TotalVolume.USD,
			PriceChange24h:  md.PriceChangePercentage24h,
			Liquidity:       md.TotalLiquidity.USD,
			MarketCapRank:   rank,
			PriceVolatility: volatilityFromRange(md.High24h.USD, md.Low24h.USD, md.CurrentPrice.USD),
		}

		log.Debug().
			Str("token_id", tokenID).
			Int("rank", out.MarketCapRank).
			Float64("market_cap", out.MarketCap).
			Msg("Market data retrieved")

		return out, nil
	})
}

func (s *CoinGeckoSource) header() map[string][]string {
	if s.apiKey == "" {
		return nil
	}
	return map[string][]string{"X-CG-Demo-API-Key": {s.apiKey}}
}

// volatilityFromRange approximates 24h volatility as the high/low spread
// relative to the current price, expressed as a fraction.
func volatilityFromRange(high, low, price float64) float64 {
	if price <= 0 || high < low {
		return 0
	}
	return math.Abs(high-low) / price
}
