package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/dataset"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

var importBatchSize int

var importCmd = &cobra.Command{
	Use:   "import <file.csv|file.xlsx>",
	Short: "Load customers from a dataset export",
	Long:  "Upserts every customer in a CSV or XLSX export of the churn dataset, keyed on CustomerId. Batches written before a bad row stay written.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if importBatchSize <= 0 {
			return eris.New("--batch-size must be positive")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := importCustomers(ctx, st, args[0], importBatchSize)
		if err != nil {
			return eris.Wrap(err, "import customers")
		}

		total, err := st.CountCustomers(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("import complete",
			zap.String("file", args[0]),
			zap.Int64("imported", n),
			zap.Int("customers", total),
		)
		return nil
	},
}

type customerImporter interface {
	ImportCustomers(ctx context.Context, customers []model.Customer) (int64, error)
}

// importCustomers parses path and writes customers in batches while the
// next batch is being read. Batches queued before a parse error are still
// written.
func importCustomers(ctx context.Context, st customerImporter, path string, batchSize int) (int64, error) {
	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan []model.Customer, 1)

	g.Go(func() error {
		defer close(batches)

		send := func(b []model.Customer) error {
			select {
			case batches <- b:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}

		customers, errs := dataset.StreamCustomers(gctx, path)
		batch := make([]model.Customer, 0, batchSize)
		for c := range customers {
			batch = append(batch, c)
			if len(batch) == batchSize {
				if err := send(batch); err != nil {
					return err
				}
				batch = make([]model.Customer, 0, batchSize)
			}
		}
		if err := <-errs; err != nil {
			return err
		}
		if len(batch) > 0 {
			return send(batch)
		}
		return nil
	})

	var imported int64
	g.Go(func() error {
		for b := range batches {
			n, err := st.ImportCustomers(ctx, b)
			if err != nil {
				return eris.Wrapf(err, "write batch after %d customers", imported)
			}
			imported += n
			zap.L().Debug("batch imported", zap.Int64("total", imported))
		}
		return nil
	})

	err := g.Wait()
	return imported, err
}

func init() {
	importCmd.Flags().IntVar(&importBatchSize, "batch-size", 1000, "customers per write transaction")
	rootCmd.AddCommand(importCmd)
}
