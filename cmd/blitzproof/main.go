package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aimaneth/blitzproof/internal/application"
	"github.com/aimaneth/blitzproof/internal/cache"
	"github.com/aimaneth/blitzproof/internal/collect"
	"github.com/aimaneth/blitzproof/internal/config"
	"github.com/aimaneth/blitzproof/internal/infrastructure/db"
	"github.com/aimaneth/blitzproof/internal/infrastructure/httpclient"
	httpiface "github.com/aimaneth/blitzproof/internal/interfaces/http"
	"github.com/aimaneth/blitzproof/internal/interfaces/http/handlers"
	"github.com/aimaneth/blitzproof/internal/interfaces/ws"
	"github.com/aimaneth/blitzproof/internal/score"
	"github.com/aimaneth/blitzproof/internal/telemetry/metrics"
)

const (
	appName = "blitzproof"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	var configPath string

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Token scoring service",
		Version: version,
		Long: `BlitzProof scores tokens across six categories (code security, market,
governance, fundamentals, community, operations) and serves the results
over HTTP with Redis caching and PostgreSQL persistence.`,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scoring API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	calculateCmd := &cobra.Command{
		Use:   "calculate <token-id>",
		Short: "Compute a token's score once and print it",
		Long:  "Runs the collectors and the scoring engine for one token and prints the result as JSON. No storage required.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contract, _ := cmd.Flags().GetString("contract")
			return runCalculate(configPath, args[0], contract)
		},
	}
	calculateCmd.Flags().String("contract", "", "Contract address for the security collector")

	rootCmd.AddCommand(serveCmd, calculateCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	metrics.Initialize()

	manager, err := db.NewManager(cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer manager.Close()

	ctx := context.Background()
	scoreCache, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		// The service stays up without Redis; every read just goes to
		// Postgres.
		log.Warn().Err(err).Msg("Redis unavailable, running uncached")
		scoreCache = nil
	}

	hub := ws.NewHub()
	defer hub.Close()

	engine := score.NewEngine(&cfg.Scoring)
	service := application.NewScoreService(
		engine,
		newAggregator(cfg),
		manager.Repository(),
		scoreCache,
		hub,
	)

	var cachePing handlers.CachePinger
	if scoreCache != nil {
		cachePing = scoreCache
	}
	server := httpiface.NewServer(cfg.Server,
		handlers.NewHandlers(service, manager.Health(), cachePing), hub)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runCalculate(configPath, tokenID, contract string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	raw := newAggregator(cfg).Collect(ctx, tokenID, contract)
	computed := score.NewEngine(&cfg.Scoring).Compute(raw)

	out, err := json.MarshalIndent(struct {
		TokenID string `json:"token_id"`
		score.Computed
	}{TokenID: tokenID, Computed: computed}, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(out))
	return nil
}

// newAggregator wires the six collectors onto one shared HTTP client pool.
func newAggregator(cfg *config.Config) *collect.Aggregator {
	clientCfg := httpclient.DefaultClientConfig()
	if cfg.Providers.FetchTimeout > 0 {
		clientCfg.RequestTimeout = cfg.Providers.FetchTimeout
	}
	pool := httpclient.NewClientPool(clientCfg)

	registry := collect.NewRegistrySource(collect.RegistryConfig{
		BaseURL: cfg.Providers.RegistryURL,
	}, pool)

	return &collect.Aggregator{
		Market: collect.NewCoinGeckoSource(collect.CoinGeckoConfig{
			BaseURL: cfg.Providers.CoinGeckoBaseURL,
			APIKey:  cfg.Providers.CoinGeckoAPIKey,
		}, pool),
		Security: collect.NewEtherscanSource(collect.EtherscanConfig{
			BaseURL:     cfg.Providers.EtherscanBaseURL,
			AnalyzerURL: cfg.Providers.AnalyzerURL,
			APIKey:      cfg.Providers.EtherscanAPIKey,
		}, pool),
		Governance:  registry,
		Fundamental: registry,
		Operational: registry,
		Community: collect.NewCommunityStatsSource(collect.CommunityConfig{
			CoinGeckoURL: cfg.Providers.CoinGeckoBaseURL,
			GitHubToken:  cfg.Providers.GitHubToken,
		}, pool),
		Timeout: cfg.Providers.FetchTimeout,
	}
}
