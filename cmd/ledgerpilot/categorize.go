package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/opencpa/ledgerpilot/internal/classify"
	"github.com/opencpa/ledgerpilot/internal/model"
	"github.com/opencpa/ledgerpilot/internal/service"
)

const categorizeChunkSize = 20

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Categorize imported transactions",
		Long: `Run the classification pipeline over a tenant's imported transactions
and persist the results. Transactions are sent to the classifier in
chunks, and every decision is recorded in the audit trail.`,
		RunE: runCategorize,
	}

	cmd.Flags().String("tenant", "", "tenant whose transactions to categorize (required)")
	cmd.Flags().String("from", "", "only categorize transactions on or after this date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "only categorize transactions on or before this date (YYYY-MM-DD)")
	cmd.Flags().Int("limit", 0, "maximum number of transactions to categorize (0 = all)")
	cmd.Flags().String("mode", string(classify.ModeBatch), "classification mode (batch or individual)")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runCategorize(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	tenantID, _ := cmd.Flags().GetString("tenant")
	limit, _ := cmd.Flags().GetInt("limit")
	modeFlag, _ := cmd.Flags().GetString("mode")

	mode := classify.Mode(modeFlag)
	if mode != classify.ModeBatch && mode != classify.ModeIndividual {
		return fmt.Errorf("invalid mode: %s", modeFlag)
	}

	filter := service.TransactionFilter{TenantID: tenantID, Limit: limit}
	var err error
	if filter.StartDate, err = parseDateFlag(cmd, "from"); err != nil {
		return err
	}
	if filter.EndDate, err = parseDateFlag(cmd, "to"); err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	txns, err := store.GetTransactions(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}
	if len(txns) == 0 {
		slog.Info("No transactions to categorize", "tenant", tenantID)
		return nil
	}

	catalog, err := store.GetCategories(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}

	orchestrator, _, err := initOrchestrator(store)
	if err != nil {
		return err
	}

	slog.Info("Categorizing transactions",
		"tenant", tenantID,
		"count", len(txns),
		"mode", mode)

	bar := progressbar.NewOptions(len(txns),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Categorizing transactions..."),
	)

	var allResults []model.ClassificationResult
	for start := 0; start < len(txns); start += categorizeChunkSize {
		end := start + categorizeChunkSize
		if end > len(txns) {
			end = len(txns)
		}
		chunk := txns[start:end]

		results, _, err := orchestrator.Categorize(ctx, tenantID, chunk, catalog, mode)
		if err != nil {
			return fmt.Errorf("categorization failed: %w", err)
		}

		if err := store.SaveClassificationResults(ctx, tenantID, results); err != nil {
			return fmt.Errorf("failed to save results: %w", err)
		}

		allResults = append(allResults, results...)
		_ = bar.Add(len(chunk))
	}
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	summary := model.SummarizeResults(allResults)
	slog.Info("Categorization complete",
		"total", summary.Total,
		"high", summary.HighConfidence,
		"medium", summary.MediumConfidence,
		"low", summary.LowConfidence,
		"mean_score", summary.MeanScore)

	return nil
}

func parseDateFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s date %q: %w", name, raw, err)
	}
	return &parsed, nil
}
