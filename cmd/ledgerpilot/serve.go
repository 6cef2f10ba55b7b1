package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opencpa/ledgerpilot/internal/api"
	"github.com/opencpa/ledgerpilot/internal/match"
	"github.com/opencpa/ledgerpilot/internal/metrics"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Start the HTTP server exposing categorization, receipt matching,
and audit trail endpoints.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	orchestrator, auditWriter, err := initOrchestrator(store)
	if err != nil {
		return err
	}

	ocrClient, err := initOCR()
	if err != nil {
		return fmt.Errorf("failed to create OCR client: %w", err)
	}
	if ocrClient == nil {
		slog.Warn("OCR service not configured, receipt uploads will be rejected")
	}

	publisher, err := initLedger()
	if err != nil {
		return fmt.Errorf("failed to connect to ledger bus: %w", err)
	}
	if publisher != nil {
		defer publisher.Close()
	}

	m := metrics.New("ledgerpilot")
	auditWriter.SetConflictCounter(m)

	deps := api.Deps{
		Storage:           store,
		Orchestrator:      orchestrator,
		Matcher:           match.NewMatcher(slog.Default()),
		Audit:             auditWriter,
		Metrics:           m,
		Logger:            slog.Default(),
		RequestsPerSecond: viper.GetFloat64("server.requests_per_second"),
	}
	// Interface fields need explicit nil checks so a nil concrete pointer
	// does not masquerade as a live client.
	if ocrClient != nil {
		deps.OCR = ocrClient
	}
	if publisher != nil {
		deps.Ledger = publisher
	}

	server := &http.Server{
		Addr:              viper.GetString("server.addr"),
		Handler:           api.NewServer(deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown incomplete: %w", err)
	}

	return nil
}
