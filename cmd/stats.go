package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/monitoring"
)

var statsHours int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print prediction and interaction activity as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if statsHours <= 0 {
			return eris.New("--hours must be positive")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := monitoring.NewCollector(st, nil, nil).Collect(ctx, statsHours)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(snap), "write stats")
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsHours, "hours", 24, "lookback window in hours")
	rootCmd.AddCommand(statsCmd)
}
