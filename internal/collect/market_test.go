package collect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimaneth/blitzproof/internal/infrastructure/httpclient"
	"github.com/aimaneth/blitzproof/internal/score"
)

func testClientPool() *httpclient.ClientPool {
	cfg := httpclient.DefaultClientConfig()
	cfg.MaxRetries = 0
	cfg.RPS = 0
	return httpclient.NewClientPool(cfg)
}

func TestCoinGeckoSource_FetchMarketData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/pepe", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"market_cap_rank": 45,
			"market_data": {
				"market_cap": {"usd": 1000000},
				"total_volume": {"usd": 100000},
				"price_change_percentage_24h": 5.0,
				"total_value_locked": {"usd": 50000},
				"high_24h": {"usd": 1.05},
				"low_24h": {"usd": 1.0},
				"current_price": {"usd": 1.0}
			}
		}`))
	}))
	defer srv.Close()

	src := NewCoinGeckoSource(CoinGeckoConfig{BaseURL: srv.URL}, testClientPool())

	d, err := src.FetchMarketData(context.Background(), "pepe")
	require.NoError(t, err)

	assert.Equal(t, 45, d.MarketCapRank)
	assert.Equal(t, 1_000_000.0, d.MarketCap)
	assert.Equal(t, 100_000.0, d.Volume24h)
	assert.Equal(t, 50_000.0, d.Liquidity)
	assert.InDelta(t, 0.05, d.PriceVolatility, 1e-9)
}

func TestCoinGeckoSource_UnrankedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"market_cap_rank": 0, "market_data": {}}`))
	}))
	defer srv.Close()

	src := NewCoinGeckoSource(CoinGeckoConfig{BaseURL: srv.URL}, testClientPool())

	d, err := src.FetchMarketData(context.Background(), "obscure")
	require.NoError(t, err)

	assert.Equal(t, score.UnknownRank, d.MarketCapRank)
}

func TestCoinGeckoSource_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewCoinGeckoSource(CoinGeckoConfig{BaseURL: srv.URL}, testClientPool())

	_, err := src.FetchMarketData(context.Background(), "missing")
	assert.Error(t, err)
}

func TestEtherscanSource_NoContractAddress(t *testing.T) {
	src := NewEtherscanSource(EtherscanConfig{}, testClientPool())

	d, err := src.FetchSecurityData(context.Background(), "bitcoin", "")
	require.NoError(t, err)

	assert.Equal(t, DefaultSecurityData(), d)
}

func TestEtherscanSource_VerifiedContract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "1", "result": [{"SourceCode": "contract Token {}", "ContractName": "Token"}]}`))
	}))
	defer srv.Close()

	src := NewEtherscanSource(EtherscanConfig{BaseURL: srv.URL}, testClientPool())

	d, err := src.FetchSecurityData(context.Background(), "pepe", "0xabc")
	require.NoError(t, err)

	// Verified source without an audit report counts as partially audited.
	assert.Equal(t, score.AuditStatusPartiallyAudited, d.AuditStatus)
	assert.Empty(t, d.Vulnerabilities)
}

func TestEtherscanSource_AnalyzerFindings(t *testing.T) {
	etherscan := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "1", "result": [{"SourceCode": "contract Token {}"}]}`))
	}))
	defer etherscan.Close()

	analyzer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze/0xabc", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"findings": [
				{"type": "reentrancy", "severity": "high", "description": "unguarded call", "confidence": 80}
			],
			"audit_status": "audited",
			"audit_score": 85,
			"code_quality": 72,
			"gas_optimization": 64
		}`))
	}))
	defer analyzer.Close()

	src := NewEtherscanSource(EtherscanConfig{BaseURL: etherscan.URL, AnalyzerURL: analyzer.URL}, testClientPool())

	d, err := src.FetchSecurityData(context.Background(), "pepe", "0xabc")
	require.NoError(t, err)

	assert.Equal(t, score.AuditStatusAudited, d.AuditStatus)
	require.Len(t, d.Vulnerabilities, 1)
	assert.Equal(t, score.SeverityHigh, d.Vulnerabilities[0].Severity)
	assert.Equal(t, 80.0, d.Vulnerabilities[0].Confidence)
	assert.Equal(t, 85.0, d.AuditScore)
}
