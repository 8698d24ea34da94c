package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "bank_churn.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(1024), cfg.Anthropic.MaxTokens)
	assert.Equal(t, "linear", cfg.Scoring.Provider)
	assert.Equal(t, 8000, cfg.Router.MaxTokens)
	assert.Equal(t, 1000, cfg.Router.ReservedTokens)
	assert.Equal(t, 4, cfg.Router.HistoryWindow)
	assert.Equal(t, "estimate", cfg.Router.TokenCounter)
	assert.Equal(t, int64(4), cfg.Router.InferenceWorkers)
	assert.True(t, cfg.SQL.ReadOnly)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "churn-audit", cfg.Kafka.Topic)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.False(t, cfg.Monitor.Enabled)
	assert.Equal(t, 24, cfg.Monitor.LookbackWindowHours)
	assert.Equal(t, 0.5, cfg.Monitor.ChurnRateThreshold)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/churn
router:
  history_window: 6
  token_counter: tiktoken
log:
  level: debug
  format: console
pricing:
  anthropic:
    claude-haiku-4-5-20251001:
      input: 0.8
      output: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/churn", cfg.Store.DatabaseURL)
	assert.Equal(t, 6, cfg.Router.HistoryWindow)
	assert.Equal(t, "tiktoken", cfg.Router.TokenCounter)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.InDelta(t, 4.0, cfg.Pricing.Anthropic["claude-haiku-4-5-20251001"].Output, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 8000, cfg.Router.MaxTokens)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CHURN_STORE_DRIVER", "postgres")
	t.Setenv("CHURN_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CHURN_SERVER_PORT", "3000")
	t.Setenv("CHURN_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestLoadEnvOnlyKeys(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CHURN_ANTHROPIC_KEY", "sk-ant-env")
	t.Setenv("CHURN_SCORING_BASE_URL", "http://scorer:9000")
	t.Setenv("CHURN_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("CHURN_TELEMETRY_ENABLED", "true")
	t.Setenv("CHURN_MONITORING_ENABLED", "true")
	t.Setenv("CHURN_MONITORING_WEBHOOK_URL", "http://hook")
	t.Setenv("CHURN_MONITORING_COST_THRESHOLD_USD", "12.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-env", cfg.Anthropic.Key)
	assert.Equal(t, "http://scorer:9000", cfg.Scoring.BaseURL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.True(t, cfg.Monitor.Enabled)
	assert.Equal(t, "http://hook", cfg.Monitor.WebhookURL)
	assert.Equal(t, 12.5, cfg.Monitor.CostThresholdUSD)
	assert.NoError(t, cfg.Validate("route"))
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "bank_churn.db"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Scoring.Provider = "linear"
	cfg.Scoring.ModelPath = "assets/churn_model.yaml"
	cfg.Router.MaxTokens = 8000
	cfg.Router.ReservedTokens = 1000
	cfg.Router.HistoryWindow = 4
	cfg.Router.TokenCounter = "estimate"
	cfg.Router.InferenceWorkers = 4
	cfg.Server.Port = 8000
	return cfg
}

func TestValidateRoute_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("route"))
}

func TestValidateRoute_MissingFields(t *testing.T) {
	cfg := &Config{}

	err := cfg.Validate("route")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "scoring.provider")
	assert.Contains(t, err.Error(), "router.inference_workers must be >= 1")
}

func TestValidateRoute_HTTPScoringNeedsBaseURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Scoring.Provider = "http"

	err := cfg.Validate("route")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "scoring.base_url is required")

	cfg.Scoring.BaseURL = "http://localhost:9000"
	assert.NoError(t, cfg.Validate("route"))
}

func TestValidateRoute_ReservedExceedsMax(t *testing.T) {
	cfg := validDefaults()
	cfg.Router.ReservedTokens = 8000

	err := cfg.Validate("route")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "router.reserved_tokens")
}

func TestValidateRoute_UnknownCounter(t *testing.T) {
	cfg := validDefaults()
	cfg.Router.TokenCounter = "words"

	err := cfg.Validate("route")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "router.token_counter")
}

func TestValidateStore_OnlyNeedsDatabase(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/churn"

	assert.NoError(t, cfg.Validate("store"))

	cfg.Store.Driver = "mysql"
	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidateServe_ValidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 9090

	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
