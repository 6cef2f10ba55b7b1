package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opencpa/ledgerpilot/internal/ingest"
	"github.com/opencpa/ledgerpilot/internal/model"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import client transactions from OFX or QFX (Quicken) files exported
from a bank.

Examples:
  # Import a single file
  ledgerpilot import --tenant acme ~/Downloads/chase_jan_2026.qfx

  # Import every QFX file in a directory
  ledgerpilot import --tenant acme ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("tenant", "", "tenant to import transactions into (required)")
	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tenantID, _ := cmd.Flags().GetString("tenant")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	// Expand globs and collect all files
	var allFiles []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			// If no glob matches, check if it's a direct file
			if _, err := os.Stat(pattern); err == nil {
				allFiles = append(allFiles, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
		} else {
			allFiles = append(allFiles, matches...)
		}
	}

	if len(allFiles) == 0 {
		return fmt.Errorf("no files found to import")
	}

	slog.Info("Importing OFX files",
		"tenant", tenantID,
		"file_count", len(allFiles),
		"dry_run", dryRun)

	importer := ingest.NewOFXImporter(slog.Default())

	// Track transactions across files, deduplicating by content hash
	var allRecords []model.TransactionRecord
	seen := make(map[string]bool)
	fileResults := make(map[string]int)

	for _, filePath := range allFiles {
		f, err := os.Open(filePath)
		if err != nil {
			slog.Error("Failed to open file", "file", filePath, "error", err)
			continue
		}

		records, err := importer.Import(ctx, tenantID, f)
		_ = f.Close()
		if err != nil {
			slog.Error("Failed to parse file", "file", filepath.Base(filePath), "error", err)
			continue
		}

		added := 0
		for _, record := range records {
			if seen[record.ContentHash()] {
				continue
			}
			seen[record.ContentHash()] = true
			allRecords = append(allRecords, record)
			added++
		}
		fileResults[filepath.Base(filePath)] = added
		slog.Info("Parsed file", "file", filepath.Base(filePath), "transactions", added)
	}

	if len(allRecords) == 0 {
		return fmt.Errorf("no transactions found in %d file(s)", len(allFiles))
	}

	if dryRun {
		for file, count := range fileResults {
			slog.Info("Would import", "file", file, "transactions", count)
		}
		slog.Info("Dry run complete", "total", len(allRecords))
		return nil
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveTransactions(ctx, allRecords); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	slog.Info("Import complete",
		"tenant", tenantID,
		"files", len(fileResults),
		"transactions", len(allRecords))

	return nil
}
