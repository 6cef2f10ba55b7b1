package reports

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/model"
)

func testWriter() *Writer {
	return &Writer{
		config: DefaultConfig(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testReportRow(id, vendor, category string, score float64, date time.Time) ReportRow {
	return ReportRow{
		Transaction: model.TransactionRecord{
			ID:       id,
			TenantID: "tenant-a",
			Vendor:   vendor,
			Amount:   decimal.RequireFromString("42.50"),
			Date:     date,
		},
		Result: model.ClassificationResult{
			TransactionID:     id,
			SuggestedCategory: category,
			ConfidenceScore:   score,
			ConfidenceTier:    model.TierForScore(score),
		},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "service account auth",
			mutate: func(c *Config) { c.ServiceAccountPath = "/tmp/key.json" },
		},
		{
			name: "oauth auth",
			mutate: func(c *Config) {
				c.ClientID = "id"
				c.ClientSecret = "secret"
				c.RefreshToken = "token"
			},
		},
		{
			name:    "no auth",
			mutate:  func(_ *Config) {},
			wantErr: true,
		},
		{
			name: "both auth methods",
			mutate: func(c *Config) {
				c.ServiceAccountPath = "/tmp/key.json"
				c.ClientID = "id"
				c.ClientSecret = "secret"
				c.RefreshToken = "token"
			},
			wantErr: true,
		},
		{
			name: "zero batch size",
			mutate: func(c *Config) {
				c.ServiceAccountPath = "/tmp/key.json"
				c.BatchSize = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPrepareReportDataLayout(t *testing.T) {
	writer := testWriter()
	base := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	rows := []ReportRow{
		testReportRow("txn-1", "Office Depot", "Office Supplies", 0.95, base),
		testReportRow("txn-2", "Delta", "Travel", 0.80, base.AddDate(0, 0, 1)),
		testReportRow("txn-3", "Corner Store", "Office Supplies", 0.30, base.AddDate(0, 0, 2)),
	}

	values := writer.prepareReportData("tenant-a", rows)
	require.NotEmpty(t, values)

	assert.Equal(t, []any{"Categorization Report", "tenant-a"}, values[0])
	assert.Equal(t, []any{"Total Transactions", 3}, values[3])
	assert.Equal(t, []any{"High Confidence", 1}, values[4])
	assert.Equal(t, []any{"Medium Confidence", 1}, values[5])
	assert.Equal(t, []any{"Low Confidence", 1}, values[6])

	// Category breakdown sorted by count descending.
	assert.Equal(t, []any{"Office Supplies", 2}, values[11])
	assert.Equal(t, []any{"Travel", 1}, values[12])

	// Detail rows newest first; low-confidence rows are flagged for review.
	detail := values[len(values)-3:]
	assert.Equal(t, "2026-03-17", detail[0][0])
	assert.Equal(t, "yes", detail[0][6])
	assert.Equal(t, "2026-03-15", detail[2][0])
	assert.Equal(t, "42.50", detail[2][2])
}

func TestPrepareReportDataEmpty(t *testing.T) {
	writer := testWriter()

	values := writer.prepareReportData("tenant-a", nil)
	require.NotEmpty(t, values)
	assert.Equal(t, []any{"Total Transactions", 0}, values[3])
}

func TestNewWriterInvalidConfig(t *testing.T) {
	_, err := NewWriter(context.Background(), Config{}, nil)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}
