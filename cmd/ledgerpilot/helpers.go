package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/opencpa/ledgerpilot/internal/audit"
	"github.com/opencpa/ledgerpilot/internal/classify"
	"github.com/opencpa/ledgerpilot/internal/config"
	"github.com/opencpa/ledgerpilot/internal/ledger"
	"github.com/opencpa/ledgerpilot/internal/llm"
	"github.com/opencpa/ledgerpilot/internal/ocr"
	"github.com/opencpa/ledgerpilot/internal/reports"
	"github.com/opencpa/ledgerpilot/internal/storage"
)

// initStorage opens the database named in config and brings its schema up to
// date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		defaultPath, err := config.DefaultDatabasePath()
		if err != nil {
			return nil, fmt.Errorf("failed to determine database path: %w", err)
		}
		dbPath = defaultPath
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath, slog.Default())
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initClassifier builds the LLM classifier from config.
func initClassifier() (*llm.Classifier, error) {
	cfg := llm.Config{
		Provider:          viper.GetString("classifier.provider"),
		APIKey:            viper.GetString("classifier.api_key"),
		Model:             viper.GetString("classifier.model"),
		BaseURL:           viper.GetString("classifier.base_url"),
		MaxRetries:        viper.GetInt("classifier.max_retries"),
		RetryDelay:        viper.GetDuration("classifier.retry_delay"),
		CacheTTL:          viper.GetDuration("classifier.cache_ttl"),
		RequestsPerMinute: viper.GetInt("classifier.requests_per_minute"),
		Temperature:       viper.GetFloat64("classifier.temperature"),
		MaxTokens:         viper.GetInt("classifier.max_tokens"),
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	return llm.NewClassifier(cfg, slog.Default())
}

// initOrchestrator wires the classifier and audit writer together.
func initOrchestrator(store *storage.SQLiteStorage) (*classify.Orchestrator, *audit.Writer, error) {
	classifier, err := initClassifier()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	auditWriter := audit.NewWriter(store, slog.Default())

	orchCfg := classify.DefaultConfig()
	if v := viper.GetInt("classifier.concurrency"); v > 0 {
		orchCfg.Concurrency = v
	}
	if v := viper.GetDuration("classifier.per_call_timeout"); v > 0 {
		orchCfg.PerCallTimeout = v
	}

	return classify.NewOrchestrator(classifier, auditWriter, orchCfg, slog.Default()), auditWriter, nil
}

// initOCR builds the receipt extraction client, or returns nil when the
// service is not configured.
func initOCR() (*ocr.Client, error) {
	baseURL := viper.GetString("ocr.base_url")
	if baseURL == "" {
		return nil, nil
	}
	return ocr.NewClient(ocr.Config{
		BaseURL: baseURL,
		APIKey:  viper.GetString("ocr.api_key"),
		Timeout: viper.GetDuration("ocr.timeout"),
	}, slog.Default())
}

// initLedger connects to the accounting ledger event bus, or returns nil when
// no broker is configured.
func initLedger() (*ledger.Publisher, error) {
	url := viper.GetString("ledger.url")
	if url == "" {
		return nil, nil
	}
	cfg := ledger.DefaultConfig()
	cfg.URL = url
	if subject := viper.GetString("ledger.subject"); subject != "" {
		cfg.Subject = subject
	}
	return ledger.NewPublisher(cfg, slog.Default())
}

// initReportWriter builds the Google Sheets report writer from config.
func initReportWriter(ctx context.Context) (*reports.Writer, error) {
	cfg := reports.DefaultConfig()
	cfg.ClientID = viper.GetString("reports.client_id")
	cfg.ClientSecret = viper.GetString("reports.client_secret")
	cfg.RefreshToken = viper.GetString("reports.refresh_token")
	cfg.ServiceAccountPath = config.ExpandPath(viper.GetString("reports.service_account_path"))
	if id := viper.GetString("reports.spreadsheet_id"); id != "" {
		cfg.SpreadsheetID = id
	}
	if name := viper.GetString("reports.spreadsheet_name"); name != "" {
		cfg.SpreadsheetName = name
	}
	return reports.NewWriter(ctx, cfg, slog.Default())
}
