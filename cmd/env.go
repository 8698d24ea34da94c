package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/chat"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/churn"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/config"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/cost"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/events"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/monitoring"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/oracle"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/resilience"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/scoring"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/store"
	anthropicpkg "github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/pkg/anthropic"
)

// chatEnv holds everything the serve and ask commands need to answer
// queries.
type chatEnv struct {
	Store     store.Store
	Router    *churn.Router
	Chat      *chat.Service
	Collector *monitoring.Collector
	Breakers  *resilience.ServiceBreakers
	Costs     *cost.Calculator
	Publisher events.Publisher
}

// Close releases resources held by the environment.
func (e *chatEnv) Close() {
	if e.Publisher != nil {
		if err := e.Publisher.Close(); err != nil {
			zap.L().Warn("close event publisher", zap.Error(err))
		}
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured database. It does not migrate.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{MaxConns: cfg.Store.MaxConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore validates store settings, opens the database and migrates it.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initScorer loads the churn model named by scoring.provider.
func initScorer(ctx context.Context, breakers *resilience.ServiceBreakers) (scoring.Model, error) {
	switch cfg.Scoring.Provider {
	case "http":
		m, err := scoring.NewHTTPModel(ctx, cfg.Scoring.BaseURL,
			scoring.WithTimeout(time.Duration(cfg.Scoring.TimeoutSecs)*time.Second),
			scoring.WithScoringBreaker(breakers.Get("scoring")),
		)
		if err != nil {
			return nil, eris.Wrap(err, "connect scoring service")
		}
		return m, nil
	default:
		m, err := scoring.LoadLinear(cfg.Scoring.ModelPath)
		if err != nil {
			return nil, eris.Wrap(err, "load churn model")
		}
		return m, nil
	}
}

// initOracle builds the Anthropic oracle with pacing, breaker and cost
// attribution.
func initOracle(breakers *resilience.ServiceBreakers, costs *cost.Calculator) *oracle.Anthropic {
	return oracle.New(anthropicpkg.NewClient(cfg.Anthropic.Key),
		oracle.WithModel(cfg.Anthropic.Model),
		oracle.WithMaxTokens(cfg.Anthropic.MaxTokens),
		oracle.WithRateLimit(cfg.Anthropic.RequestsPerSecond),
		oracle.WithBreaker(breakers.Get("oracle")),
		oracle.WithCost(costs),
	)
}

func initBudgeter() (*churn.Budgeter, error) {
	counter, err := churn.NewTokenCounter(cfg.Router.TokenCounter)
	if err != nil {
		return nil, err
	}
	return &churn.Budgeter{
		MaxTokens:      cfg.Router.MaxTokens,
		ReservedTokens: cfg.Router.ReservedTokens,
		HistoryWindow:  cfg.Router.HistoryWindow,
		Counter:        counter,
	}, nil
}

func pricingRates(p config.PricingConfig) cost.Rates {
	overrides := make(map[string]cost.ModelRate, len(p.Anthropic))
	for name, r := range p.Anthropic {
		overrides[name] = cost.ModelRate{Input: r.Input, Output: r.Output}
	}
	return cost.DefaultRates().WithOverrides(overrides)
}

// initChat sets up the store, oracle, model and router. Callers should
// defer env.Close().
func initChat(ctx context.Context, mode string) (*chatEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	breakers := resilience.NewServiceBreakers(resilience.FromSettings(cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeoutSecs))
	costs := cost.NewCalculator(pricingRates(cfg.Pricing))

	m, err := initScorer(ctx, breakers)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	budgeter, err := initBudgeter()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	publisher := events.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if len(cfg.Kafka.Brokers) > 0 {
		zap.L().Info("audit events enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	router := churn.NewRouter(churn.Deps{
		Oracle:      initOracle(breakers, costs),
		Store:       st,
		Model:       m,
		Pool:        churn.NewInferencePool(cfg.Router.InferenceWorkers),
		Budgeter:    budgeter,
		Publisher:   publisher,
		ReadOnlySQL: cfg.SQL.ReadOnly,
	})

	zap.L().Info("router ready",
		zap.String("scoring", cfg.Scoring.Provider),
		zap.Int("features", len(m.FeatureNames())),
		zap.String("token_counter", cfg.Router.TokenCounter),
		zap.Bool("sql_read_only", cfg.SQL.ReadOnly),
	)

	return &chatEnv{
		Store:     st,
		Router:    router,
		Chat:      chat.NewService(st, router),
		Collector: monitoring.NewCollector(st, breakers, costs),
		Breakers:  breakers,
		Costs:     costs,
		Publisher: publisher,
	}, nil
}
