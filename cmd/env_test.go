package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/churn"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/config"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/resilience"
)

// withConfig swaps the package config for the duration of a test.
func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "churn.db"),
		},
	}
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	withConfig(t, &config.Config{Store: config.StoreConfig{Driver: "mysql", DatabaseURL: "x"}})

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver: mysql")
}

func TestOpenStore_SQLiteMigrates(t *testing.T) {
	withConfig(t, sqliteConfig(t))

	st, err := openStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	n, err := st.CountCustomers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOpenStore_ValidatesConfig(t *testing.T) {
	withConfig(t, &config.Config{Store: config.StoreConfig{Driver: "sqlite"}})

	_, err := openStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestInitScorer_Linear(t *testing.T) {
	withConfig(t, &config.Config{Scoring: config.ScoringConfig{
		Provider:  "linear",
		ModelPath: filepath.Join("..", "assets", "churn_model.yaml"),
	}})

	m, err := initScorer(context.Background(), resilience.NewServiceBreakers(resilience.FromSettings(0, 0)))
	require.NoError(t, err)
	assert.Len(t, m.FeatureNames(), 13)
}

func TestInitScorer_LinearMissingFile(t *testing.T) {
	withConfig(t, &config.Config{Scoring: config.ScoringConfig{
		Provider:  "linear",
		ModelPath: filepath.Join(t.TempDir(), "missing.yaml"),
	}})

	_, err := initScorer(context.Background(), resilience.NewServiceBreakers(resilience.FromSettings(0, 0)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load churn model")
}

func TestInitBudgeter(t *testing.T) {
	withConfig(t, &config.Config{Router: config.RouterConfig{
		MaxTokens:      4000,
		ReservedTokens: 500,
		HistoryWindow:  2,
		TokenCounter:   "estimate",
	}})

	b, err := initBudgeter()
	require.NoError(t, err)
	assert.Equal(t, 4000, b.MaxTokens)
	assert.Equal(t, 500, b.ReservedTokens)
	assert.Equal(t, 2, b.HistoryWindow)
	assert.IsType(t, churn.EstimateCounter{}, b.Counter)

	cfg.Router.TokenCounter = "words"
	_, err = initBudgeter()
	require.Error(t, err)
}

func TestPricingRates_Overrides(t *testing.T) {
	rates := pricingRates(config.PricingConfig{Anthropic: map[string]config.ModelPricing{
		"claude-haiku-4-5-20251001": {Input: 9, Output: 9},
		"custom":                    {Input: 1, Output: 2},
	}})

	assert.Equal(t, 9.0, rates.Anthropic["claude-haiku-4-5-20251001"].Input)
	assert.Equal(t, 2.0, rates.Anthropic["custom"].Output)
	assert.Contains(t, rates.Anthropic, "claude-sonnet-4-5-20250929")
}

func TestInitChat_RequiresOracleKey(t *testing.T) {
	c := sqliteConfig(t)
	c.Scoring = config.ScoringConfig{Provider: "linear", ModelPath: filepath.Join("..", "assets", "churn_model.yaml")}
	c.Router = config.RouterConfig{MaxTokens: 8000, ReservedTokens: 1000, HistoryWindow: 4, InferenceWorkers: 1}
	withConfig(t, c)

	_, err := initChat(context.Background(), "route")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestInitChat_Wires(t *testing.T) {
	c := sqliteConfig(t)
	c.Anthropic = config.AnthropicConfig{Key: "test-key"}
	c.Scoring = config.ScoringConfig{Provider: "linear", ModelPath: filepath.Join("..", "assets", "churn_model.yaml")}
	c.Router = config.RouterConfig{MaxTokens: 8000, ReservedTokens: 1000, HistoryWindow: 4, InferenceWorkers: 2}
	c.SQL.ReadOnly = true
	withConfig(t, c)

	env, err := initChat(context.Background(), "route")
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Router)
	assert.NotNil(t, env.Chat)
	assert.Contains(t, env.Breakers.States(), "oracle")

	snap, err := env.Collector.Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Customers)
}
