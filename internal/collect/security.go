package collect

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/aimaneth/blitzproof/internal/infrastructure/httpclient"
	"github.com/aimaneth/blitzproof/internal/score"
)

// EtherscanSource derives contract security signals from Etherscan contract
// verification and an external static analyzer service.
type EtherscanSource struct {
	etherscanURL string
	analyzerURL  string
	apiKey       string
	client       *httpclient.ClientPool
	breaker      *gobreaker.CircuitBreaker
}

// EtherscanConfig configures the security data provider.
type EtherscanConfig struct {
	BaseURL     string
	AnalyzerURL string
	APIKey      string
}

// NewEtherscanSource creates the security provider.
func NewEtherscanSource(config EtherscanConfig, client *httpclient.ClientPool) *EtherscanSource {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.etherscan.io/api"
	}
	return &EtherscanSource{
		etherscanURL: config.BaseURL,
		analyzerURL:  config.AnalyzerURL,
		apiKey:       config.APIKey,
		client:       client,
		breaker:      newBreaker("etherscan"),
	}
}

type etherscanSourceResponse struct {
	Status string `json:"status"`
	Result []struct {
		SourceCode   string `json:"SourceCode"`
		ContractName string `json:"ContractName"`
	} `json:"result"`
}

type analyzerResponse struct {
	Findings []struct {
		Type        string  `json:"type"`
		Severity    string  `json:"severity"`
		Description string  `json:"description"`
		Confidence  float64 `json:"confidence"`
	} `json:"findings"`
	AuditStatus     string  `json:"audit_status"`
	AuditScore      float64 `json:"audit_score"`
	CodeQuality     float64 `json:"code_quality"`
	GasOptimization float64 `json:"gas_optimization"`
}

// FetchSecurityData retrieves verification state and analyzer findings for
// one contract. Tokens without a contract address are reported unaudited.
func (s *EtherscanSource) FetchSecurityData(ctx context.Context, tokenID, contractAddress string) (score.SecurityData, error) {
	if contractAddress == "" {
		log.Debug().Str("token_id", tokenID).Msg("No contract address, reporting unaudited")
		return DefaultSecurityData(), nil
	}

	return execute(s.breaker, func() (score.SecurityData, error) {
		verified, err := s.isVerified(ctx, contractAddress)
		if err != nil {
			return score.SecurityData{}, err
		}

		data, err := s.analyze(ctx, contractAddress)
		if err != nil {
			return score.SecurityData{}, err
		}

		// A verified but unanalyzed contract still counts as partially
		// audited: the source is public even if no audit report exists.
		if data.AuditStatus == "" {
			if verified {
				data.AuditStatus = score.AuditStatusPartiallyAudited
			} else {
				data.AuditStatus = score.AuditStatusUnaudited
			}
		}

		log.Debug().
			Str("token_id", tokenID).
			Str("contract", contractAddress).
			Bool("verified", verified).
			Int("findings", len(data.Vulnerabilities)).
			Msg("Security data retrieved")

		return data, nil
	})
}

// isVerified checks whether Etherscan holds verified source for the contract.
func (s *EtherscanSource) isVerified(ctx context.Context, address string) (bool, error) {
	endpoint := fmt.Sprintf("%s?module=contract&action=getsourcecode&address=%s&apikey=%s",
		s.etherscanURL, url.QueryEscape(address), url.QueryEscape(s.apiKey))

	var resp etherscanSourceResponse
	if err := s.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return false, fmt.Errorf("etherscan: %w", err)
	}

	return resp.Status == "1" && len(resp.Result) > 0 && resp.Result[0].SourceCode != "", nil
}

// analyze consumes the external analyzer service. A missing analyzer URL
// yields an empty result rather than an error.
func (s *EtherscanSource) analyze(ctx context.Context, address string) (score.SecurityData, error) {
	if s.analyzerURL == "" {
		return score.SecurityData{Vulnerabilities: []score.Vulnerability{}}, nil
	}

	endpoint := fmt.Sprintf("%s/analyze/%s", s.analyzerURL, url.PathEscape(address))

	var resp analyzerResponse
	if err := s.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return score.SecurityData{}, fmt.Errorf("analyzer: %w", err)
	}

	vulns := make([]score.Vulnerability, 0, len(resp.Findings))
	for _, f := range resp.Findings {
		vulns = append(vulns, score.Vulnerability{
			Type:        f.Type,
			Severity:    score.Severity(f.Severity),
			Description: f.Description,
			Confidence:  f.Confidence,
		})
	}

	return score.SecurityData{
		Vulnerabilities: vulns,
		AuditStatus:     score.AuditStatus(resp.AuditStatus),
		AuditScore:      resp.AuditScore,
		CodeQuality:     resp.CodeQuality,
		GasOptimization: resp.GasOptimization,
	}, nil
}
