// Package ocr implements the client for the external receipt extraction
// service. The service's loose response shape is normalized into the typed
// ReceiptExtraction model so callers cannot read absent fields by accident.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/model"
)

// Config holds configuration for the OCR client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client calls the OCR extraction service.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
}

// NewClient creates an OCR client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: ocr base URL", common.ErrMissingConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// extractResponse is the service's wire shape. Everything is optional; poor
// scans come back with whatever fields the model could read.
type extractResponse struct {
	VendorName      string   `json:"vendor_name"`
	Amount          *string  `json:"amount"`
	TaxAmount       *string  `json:"tax_amount"`
	TransactionDate *string  `json:"transaction_date"`
	Confidence      *float64 `json:"confidence"`
}

// Extract submits receipt bytes for field extraction.
func (c *Client) Extract(ctx context.Context, fileBytes []byte, mimeType string) (model.ReceiptExtraction, error) {
	if len(fileBytes) == 0 {
		return model.ReceiptExtraction{}, common.NewValidationError("file", "receipt file is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(fileBytes))
	if err != nil {
		return model.ReceiptExtraction{}, common.NewExternalServiceError("ocr", err)
	}
	req.Header.Set("Content-Type", mimeType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.ReceiptExtraction{}, common.NewExternalServiceError("ocr", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.ReceiptExtraction{}, common.NewExternalServiceError("ocr", err)
	}

	if resp.StatusCode != http.StatusOK {
		return model.ReceiptExtraction{}, common.NewExternalServiceError("ocr",
			fmt.Errorf("extract failed (status %d): %s", resp.StatusCode, string(body)))
	}

	var wire extractResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return model.ReceiptExtraction{}, common.NewExternalServiceError("ocr", err)
	}

	return c.normalize(wire), nil
}

// normalize converts the wire shape into the typed extraction, dropping
// fields that fail to parse rather than failing the whole extraction.
func (c *Client) normalize(wire extractResponse) model.ReceiptExtraction {
	extraction := model.ReceiptExtraction{
		VendorName: wire.VendorName,
	}

	if wire.Confidence != nil {
		extraction.Confidence = model.ClampScore(*wire.Confidence)
	}

	if wire.Amount != nil {
		if amount, err := decimal.NewFromString(*wire.Amount); err == nil {
			extraction.Amount = &amount
		} else {
			c.logger.Warn("discarding unparseable OCR amount", "raw", *wire.Amount)
		}
	}

	if wire.TaxAmount != nil {
		if tax, err := decimal.NewFromString(*wire.TaxAmount); err == nil {
			extraction.TaxAmount = &tax
		} else {
			c.logger.Warn("discarding unparseable OCR tax amount", "raw", *wire.TaxAmount)
		}
	}

	if wire.TransactionDate != nil {
		if date, err := time.Parse("2006-01-02", *wire.TransactionDate); err == nil {
			extraction.TransactionDate = &date
		} else {
			c.logger.Warn("discarding unparseable OCR date", "raw", *wire.TransactionDate)
		}
	}

	return extraction
}
