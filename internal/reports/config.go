// Package reports exports categorization reports to Google Sheets for CPA
// review and client delivery.
package reports

import (
	"time"

	"github.com/opencpa/ledgerpilot/internal/common"
)

// Config holds the configuration for the Google Sheets report writer.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
	SpreadsheetID      string
	SpreadsheetName    string
	TimeZone           string
	BatchSize          int
	RetryAttempts      int
	RetryDelay         time.Duration
	EnableFormatting   bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EnableFormatting: true,
		TimeZone:         "America/New_York",
		SpreadsheetName:  "Categorization Report",
		BatchSize:        1000,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	hasOAuth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	hasServiceAccount := c.ServiceAccountPath != ""

	if !hasOAuth && !hasServiceAccount {
		return common.ErrMissingConfig
	}
	if hasOAuth && hasServiceAccount {
		return &common.ValidationError{
			Field:  "auth",
			Reason: "use either OAuth2 or a service account, not both",
		}
	}
	if c.BatchSize <= 0 {
		return &common.ValidationError{Field: "batch size", Reason: "must be positive"}
	}
	if c.RetryAttempts < 0 {
		return &common.ValidationError{Field: "retry attempts", Reason: "cannot be negative"}
	}
	if c.RetryDelay < 0 {
		return &common.ValidationError{Field: "retry delay", Reason: "cannot be negative"}
	}
	return nil
}
