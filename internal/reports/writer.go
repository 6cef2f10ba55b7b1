package reports

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/model"
	"github.com/opencpa/ledgerpilot/internal/service"
)

// ReportRow pairs a transaction with its stored classification for export.
type ReportRow struct {
	Transaction model.TransactionRecord
	Result      model.ClassificationResult
}

// Writer exports categorization reports to a Google Sheets spreadsheet.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a Google Sheets report writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	svc, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, &common.ExternalServiceError{Service: "google sheets", Err: err}
	}

	return &Writer{config: config, service: svc, logger: logger}, nil
}

// Write renders the rows into the configured spreadsheet, replacing any
// previous contents.
func (w *Writer) Write(ctx context.Context, tenantID string, rows []ReportRow) error {
	w.logger.Info("starting report export",
		"tenant_id", tenantID,
		"rows", len(rows))

	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}

	if _, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, "A:Z",
		&sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}

	values := w.prepareReportData(tenantID, rows)

	retryOpts := service.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	err = common.WithRetry(ctx, func() error {
		return w.writeData(ctx, spreadsheetID, values)
	}, retryOpts)
	if err != nil {
		return fmt.Errorf("write report data: %w", err)
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return w.applyFormatting(ctx, spreadsheetID, len(values))
		}, retryOpts)
		if err != nil {
			// Formatting is cosmetic; the data is already in place.
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("report export completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(values))
	return nil
}

func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("read service account key: %w", err)
		}
		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		oauthConfig := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}
		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}
		tokenSource = oauthConfig.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	return sheets.NewService(ctx, option.WithHTTPClient(httpClient))
}

func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		if _, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do(); err != nil {
			return "", fmt.Errorf("access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
		return w.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
		},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: "Transactions"}},
		},
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)
	return created.SpreadsheetId, nil
}

func (w *Writer) prepareReportData(tenantID string, rows []ReportRow) [][]any {
	summary := make([]model.ClassificationResult, len(rows))
	for i, row := range rows {
		summary[i] = row.Result
	}
	totals := model.SummarizeResults(summary)

	byCategory := make(map[string]int)
	for _, row := range rows {
		byCategory[row.Result.SuggestedCategory]++
	}
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool {
		if byCategory[categories[i]] != byCategory[categories[j]] {
			return byCategory[categories[i]] > byCategory[categories[j]]
		}
		return categories[i] < categories[j]
	})

	values := make([][]any, 0, 13+len(categories)+len(rows))
	values = append(values,
		[]any{"Categorization Report", tenantID},
		[]any{},
		[]any{"Summary"},
		[]any{"Total Transactions", totals.Total},
		[]any{"High Confidence", totals.HighConfidence},
		[]any{"Medium Confidence", totals.MediumConfidence},
		[]any{"Low Confidence", totals.LowConfidence},
		[]any{"Mean Score", fmt.Sprintf("%.2f", totals.MeanScore)},
		[]any{},
		[]any{"Category Breakdown"},
		[]any{"Category", "Count"},
	)
	for _, category := range categories {
		values = append(values, []any{category, byCategory[category]})
	}

	values = append(values,
		[]any{},
		[]any{"Transaction Details"},
		[]any{"Date", "Vendor", "Amount", "Category", "Confidence", "Tier", "Needs Review"},
	)

	sorted := make([]ReportRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Transaction.Date.After(sorted[j].Transaction.Date)
	})

	for _, row := range sorted {
		needsReview := ""
		if row.Result.NeedsReview() {
			needsReview = "yes"
		}
		values = append(values, []any{
			row.Transaction.Date.Format("2006-01-02"),
			row.Transaction.DisplayName(),
			row.Transaction.Amount.StringFixed(2),
			row.Result.SuggestedCategory,
			fmt.Sprintf("%.2f", row.Result.ConfidenceScore),
			string(row.Result.ConfidenceTier),
			needsReview,
		})
	}

	return values
}

func (w *Writer) writeData(ctx context.Context, spreadsheetID string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := i + w.config.BatchSize
		if end > len(values) {
			end = len(values)
		}

		valueRange := &sheets.ValueRange{Values: values[i:end]}
		rangeStr := fmt.Sprintf("A%d", i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, valueRange).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("write batch starting at row %d: %w", i+1, err)
		}
		w.logger.Debug("wrote batch", "start_row", i+1, "rows", end-i)
	}
	return nil
}

func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, totalRows int) error {
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          0,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   2,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true, FontSize: 16},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    0,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   7,
				},
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: 0,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: 1,
					},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("apply formatting to %d rows: %w", totalRows, err)
	}
	return nil
}
