package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/reports"
	"github.com/opencpa/ledgerpilot/internal/service"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export a categorization report to Google Sheets",
		Long: `Export a tenant's categorized transactions to a Google Sheets
spreadsheet for CPA review and client delivery. Requires Sheets
credentials in the reports section of the config.`,
		RunE: runReport,
	}

	cmd.Flags().String("tenant", "", "tenant to report on (required)")
	cmd.Flags().String("from", "", "only include transactions on or after this date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "only include transactions on or before this date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	tenantID, _ := cmd.Flags().GetString("tenant")

	filter := service.TransactionFilter{TenantID: tenantID}
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
		return fmt.Errorf("no transactions found for tenant %s", tenantID)
	}

	var rows []reports.ReportRow
	uncategorized := 0
	for _, txn := range txns {
		result, err := store.GetClassificationResult(ctx, tenantID, txn.ID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				uncategorized++
				continue
			}
			return fmt.Errorf("failed to load result for %s: %w", txn.ID, err)
		}
		rows = append(rows, reports.ReportRow{Transaction: txn, Result: *result})
	}

	if uncategorized > 0 {
		slog.Warn("Skipping transactions without classification results",
			"count", uncategorized)
	}
	if len(rows) == 0 {
		return fmt.Errorf("no categorized transactions to report; run categorize first")
	}

	writer, err := initReportWriter(ctx)
	if err != nil {
		return fmt.Errorf("failed to create report writer: %w", err)
	}

	if err := writer.Write(ctx, tenantID, rows); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	slog.Info("Report exported", "tenant", tenantID, "rows", len(rows))
	return nil
}
