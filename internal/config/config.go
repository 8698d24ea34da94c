package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Router    RouterConfig    `yaml:"router" mapstructure:"router"`
	SQL       SQLConfig       `yaml:"sql" mapstructure:"sql"`
	Breaker   BreakerConfig   `yaml:"breaker" mapstructure:"breaker"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Kafka     KafkaConfig     `yaml:"kafka" mapstructure:"kafka"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Monitor   MonitorConfig   `yaml:"monitoring" mapstructure:"monitoring"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// AnthropicConfig holds the text-generation oracle settings.
type AnthropicConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ScoringConfig selects the churn model implementation.
type ScoringConfig struct {
	// Provider is "linear" (model file loaded in-process) or "http"
	// (remote scoring service).
	Provider    string `yaml:"provider" mapstructure:"provider"`
	ModelPath   string `yaml:"model_path" mapstructure:"model_path"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RouterConfig holds the history budget and inference concurrency.
type RouterConfig struct {
	MaxTokens        int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	ReservedTokens   int    `yaml:"reserved_tokens" mapstructure:"reserved_tokens"`
	HistoryWindow    int    `yaml:"history_window" mapstructure:"history_window"`
	TokenCounter     string `yaml:"token_counter" mapstructure:"token_counter"`
	InferenceWorkers int64  `yaml:"inference_workers" mapstructure:"inference_workers"`
}

// SQLConfig controls execution of oracle-generated SQL.
type SQLConfig struct {
	ReadOnly bool `yaml:"read_only" mapstructure:"read_only"`
}

// BreakerConfig configures circuit breakers around the oracle and the
// remote scoring service.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the chat HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// KafkaConfig configures the optional audit event sink. Empty brokers
// disables publishing.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
}

// PricingConfig holds per-model oracle pricing.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// MonitorConfig configures the background alert checker. An empty webhook
// URL keeps alerts in the log only.
type MonitorConfig struct {
	Enabled             bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs   int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	ChurnRateThreshold  float64 `yaml:"churn_rate_threshold" mapstructure:"churn_rate_threshold"`
	CostThresholdUSD    float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHURN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without a real default are still registered so that Unmarshal
	// picks them up from the environment.
	v.SetDefault("anthropic.key", "")
	v.SetDefault("scoring.base_url", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.cost_threshold_usd", 0.0)

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "bank_churn.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.requests_per_second", 5)
	v.SetDefault("scoring.provider", "linear")
	v.SetDefault("scoring.model_path", "assets/churn_model.yaml")
	v.SetDefault("scoring.timeout_secs", 30)
	v.SetDefault("router.max_tokens", 8000)
	v.SetDefault("router.reserved_tokens", 1000)
	v.SetDefault("router.history_window", 4)
	v.SetDefault("router.token_counter", "estimate")
	v.SetDefault("router.inference_workers", 4)
	v.SetDefault("sql.read_only", true)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_secs", 30)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("kafka.topic", "churn-audit")
	v.SetDefault("telemetry.service_name", "churn-chat")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.churn_rate_threshold", 0.5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: "route"
// (anything that answers queries), "serve" (route plus HTTP), "store"
// (database-only commands).
func (c *Config) Validate(mode string) error {
	var problems []string

	requireStore := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			problems = append(problems, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	requireRoute := func() {
		requireStore()
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		switch c.Scoring.Provider {
		case "linear":
			if c.Scoring.ModelPath == "" {
				problems = append(problems, "scoring.model_path is required for the linear provider")
			}
		case "http":
			if c.Scoring.BaseURL == "" {
				problems = append(problems, "scoring.base_url is required for the http provider")
			}
		default:
			problems = append(problems, fmt.Sprintf("scoring.provider %q must be linear or http", c.Scoring.Provider))
		}
		if c.Router.ReservedTokens < 0 || c.Router.ReservedTokens >= c.Router.MaxTokens {
			problems = append(problems, "router.reserved_tokens must be between 0 and router.max_tokens")
		}
		if c.Router.HistoryWindow < 0 {
			problems = append(problems, "router.history_window must be >= 0")
		}
		if c.Router.InferenceWorkers < 1 {
			problems = append(problems, "router.inference_workers must be >= 1")
		}
		switch c.Router.TokenCounter {
		case "", "estimate", "tiktoken":
		default:
			problems = append(problems, fmt.Sprintf("router.token_counter %q must be estimate or tiktoken", c.Router.TokenCounter))
		}
	}

	switch mode {
	case "store":
		requireStore()
	case "route":
		requireRoute()
	case "serve":
		requireRoute()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
