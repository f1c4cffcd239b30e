package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
engine:
  interval_seconds: 30
  market_expiry_seconds: 90
  batch_size: 10
  stale_warn_minutes: 5
api:
  clob_base: "http://localhost:8080"
feed:
  url: "https://feed.example.com/intents"
  price_spread: 0.02
  traders:
    - address: "0xtrader"
      factor: 0.5
      min_share: 10
  is_aggregated: true
storage:
  state_path: "/var/lib/polysync/state.json"
metrics:
  enabled: true
  port: 9191
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Interval())
	assert.Equal(t, 90*time.Second, cfg.MarketExpiry())
	assert.Equal(t, 5*time.Minute, cfg.StaleWarn())
	assert.Equal(t, 10, cfg.Engine.BatchSize)
	assert.Equal(t, "http://localhost:8080", cfg.API.CLOBBase)
	assert.Equal(t, "https://feed.example.com/intents", cfg.Feed.URL)
	require.Len(t, cfg.Feed.Traders, 1)
	assert.Equal(t, 0.5, cfg.Feed.Traders[0].Factor)
	assert.True(t, cfg.Feed.IsAggregated)
	assert.Equal(t, "/var/lib/polysync/state.json", cfg.Storage.StatePath)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9191, cfg.Metrics.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `feed:
  url: "https://feed.example.com"
`))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Interval())
	assert.Equal(t, 70*time.Second, cfg.MarketExpiry())
	assert.Equal(t, 5, cfg.Engine.BatchSize)
	assert.Equal(t, 10*time.Minute, cfg.StaleWarn())
	assert.Equal(t, "https://clob.polymarket.com", cfg.API.CLOBBase)
	assert.Equal(t, "https://data-api.polymarket.com", cfg.API.DataBase)
	assert.Equal(t, 0.01, cfg.Feed.BuyMin)
	assert.Equal(t, 0.98, cfg.Feed.BuyMax)
	assert.Equal(t, "polysync-state.json", cfg.Storage.StatePath)
	assert.Equal(t, "polysync.db", cfg.Storage.AuditDSN)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_SecretsFromEnvOnly(t *testing.T) {
	t.Setenv("POLY_PRIVATE_KEY", "deadbeef")
	t.Setenv("FEED_API_KEY", "feed-key")
	t.Setenv("FUNDER", "0xfunder")

	cfg, err := Load(writeConfig(t, `{}`))
	require.NoError(t, err)

	assert.Equal(t, "deadbeef", cfg.PrivateKey)
	assert.Equal(t, "feed-key", cfg.FeedAPIKey)
	assert.Equal(t, "0xfunder", cfg.Funder)
	require.NoError(t, cfg.ValidateSecrets())
}

func TestValidateSecrets_Missing(t *testing.T) {
	t.Setenv("POLY_PRIVATE_KEY", "")
	t.Setenv("FEED_API_KEY", "")
	t.Setenv("FUNDER", "")

	cfg, err := Load(writeConfig(t, `{}`))
	require.NoError(t, err)

	err = cfg.ValidateSecrets()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLY_PRIVATE_KEY")
}

func TestLoad_EnvOverridesLogSettings(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(writeConfig(t, `log:
  level: info
  format: text
`))
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "engine: [not a map"))
	assert.Error(t, err)
}
