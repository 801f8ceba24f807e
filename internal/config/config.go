// Package config loads the service configuration from YAML with
// environment variable overrides for deployment secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aimaneth/blitzproof/internal/cache"
	"github.com/aimaneth/blitzproof/internal/infrastructure/db"
	httpiface "github.com/aimaneth/blitzproof/internal/interfaces/http"
	"github.com/aimaneth/blitzproof/internal/score"
)

// ProvidersConfig holds upstream API settings for the data collectors.
type ProvidersConfig struct {
	CoinGeckoBaseURL string        `yaml:"coingecko_base_url"`
	CoinGeckoAPIKey  string        `yaml:"coingecko_api_key"`
	EtherscanBaseURL string        `yaml:"etherscan_base_url"`
	EtherscanAPIKey  string        `yaml:"etherscan_api_key"`
	AnalyzerURL      string        `yaml:"analyzer_url"`
	RegistryURL      string        `yaml:"registry_url"`
	GitHubToken      string        `yaml:"github_token"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
}

// Config is the full service configuration.
type Config struct {
	Server    httpiface.ServerConfig `yaml:"server"`
	Database  db.Config              `yaml:"database"`
	Redis     cache.Config           `yaml:"redis"`
	Scoring   score.Config           `yaml:"scoring"`
	Providers ProvidersConfig        `yaml:"providers"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Server:   httpiface.DefaultServerConfig(),
		Database: db.DefaultConfig(),
		Redis:    cache.DefaultConfig(),
		Scoring:  *score.DefaultConfig(),
		Providers: ProvidersConfig{
			FetchTimeout: 10 * time.Second,
		},
	}
}

// Load reads the YAML file at path, if any, and applies environment
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overlays deployment secrets and connection strings from the
// environment.
func (c *Config) applyEnv() {
	setString(&c.Database.DSN, "PG_DSN")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Server.AdminToken, "BLITZPROOF_ADMIN_TOKEN")
	setString(&c.Providers.CoinGeckoAPIKey, "COINGECKO_API_KEY")
	setString(&c.Providers.EtherscanAPIKey, "ETHERSCAN_API_KEY")
	setString(&c.Providers.GitHubToken, "GITHUB_TOKEN")
	setString(&c.Providers.AnalyzerURL, "ANALYZER_URL")
	setString(&c.Providers.RegistryURL, "REGISTRY_URL")
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring config: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Providers.FetchTimeout < 0 {
		return fmt.Errorf("provider fetch timeout must not be negative")
	}
	return nil
}
