package ocr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencpa/ledgerpilot/internal/common"
)

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/extract", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestExtract(t *testing.T) {
	ctx := context.Background()

	t.Run("full extraction", func(t *testing.T) {
		server := newTestServer(t, http.StatusOK,
			`{"vendor_name": "Staples", "amount": "89.99", "tax_amount": "7.20", "transaction_date": "2026-03-10", "confidence": 0.97}`)

		client, err := NewClient(Config{BaseURL: server.URL}, nil)
		require.NoError(t, err)

		extraction, err := client.Extract(ctx, []byte("fake image"), "image/png")
		require.NoError(t, err)
		assert.Equal(t, "Staples", extraction.VendorName)
		require.NotNil(t, extraction.Amount)
		assert.Equal(t, "89.99", extraction.Amount.String())
		require.NotNil(t, extraction.TaxAmount)
		require.NotNil(t, extraction.TransactionDate)
		assert.Equal(t, 0.97, extraction.Confidence)
	})

	t.Run("partial extraction keeps parseable fields", func(t *testing.T) {
		server := newTestServer(t, http.StatusOK,
			`{"vendor_name": "Staples", "amount": "not-a-number", "transaction_date": "March 10th", "confidence": 0.40}`)

		client, err := NewClient(Config{BaseURL: server.URL}, nil)
		require.NoError(t, err)

		extraction, err := client.Extract(ctx, []byte("fake image"), "image/png")
		require.NoError(t, err)
		assert.Equal(t, "Staples", extraction.VendorName)
		assert.Nil(t, extraction.Amount)
		assert.Nil(t, extraction.TransactionDate)
	})

	t.Run("service error", func(t *testing.T) {
		server := newTestServer(t, http.StatusBadGateway, "upstream ocr failure")

		client, err := NewClient(Config{BaseURL: server.URL}, nil)
		require.NoError(t, err)

		_, err = client.Extract(ctx, []byte("fake image"), "image/png")
		require.Error(t, err)
		var svcErr *common.ExternalServiceError
		assert.ErrorAs(t, err, &svcErr)
	})

	t.Run("empty file is a validation error", func(t *testing.T) {
		client, err := NewClient(Config{BaseURL: "http://localhost:1"}, nil)
		require.NoError(t, err)

		_, err = client.Extract(ctx, nil, "image/png")
		assert.True(t, common.IsValidation(err))
	})

	t.Run("missing base URL", func(t *testing.T) {
		_, err := NewClient(Config{}, nil)
		assert.ErrorIs(t, err, common.ErrMissingConfig)
	})
}
