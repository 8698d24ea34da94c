package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/config"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/telemetry"
)

var (
	cfg            *config.Config
	shutdownTracer telemetry.Shutdown
)

var rootCmd = &cobra.Command{
	Use:   "churn-chat",
	Short: "Bank churn chatbot",
	Long:  "Answers natural-language questions about bank customers: churn predictions with explanations, retention advice, SQL analytics and probability filters.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; real deployments set the environment directly.
		_ = godotenv.Load()

		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		shutdownTracer, err = telemetry.InitTracer(cfg.Telemetry.Enabled, cfg.Telemetry.ServiceName, os.Stderr)
		if err != nil {
			return eris.Wrap(err, "init tracer")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdownTracer != nil {
			if err := shutdownTracer(context.Background()); err != nil {
				zap.L().Warn("tracer shutdown failed", zap.Error(err))
			}
		}
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
