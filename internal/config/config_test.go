package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimaneth/blitzproof/internal/score"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, score.DefaultWeights(), cfg.Scoring.Weights)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
redis:
  addr: redis.internal:6379
providers:
  registry_url: https://registry.internal
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, "https://registry.internal", cfg.Providers.RegistryURL)

	// Untouched sections keep their defaults.
	assert.Equal(t, score.DefaultWeights(), cfg.Scoring.Weights)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://env-wins")
	t.Setenv("BLITZPROOF_ADMIN_TOKEN", "secret-token")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  dsn: postgres://file-loses
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-wins", cfg.Database.DSN)
	assert.Equal(t, "secret-token", cfg.Server.AdminToken)
}

func TestLoad_RejectsBadWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scoring:
  weights:
    code_security: 0.9
    market: 0.9
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFileIsAnError(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
