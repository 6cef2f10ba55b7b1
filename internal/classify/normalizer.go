// Package classify implements the transaction categorization pipeline:
// request normalization, batch/individual orchestration against the external
// classifier, and reconciliation of suggested names back to category ids.
package classify

import (
	"strings"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/model"
)

// BuildRequest projects a transaction and the tenant's active category names
// into a bounded classification request. Pure data shaping; the only failure
// is a ValidationError when description or amount is missing.
func BuildRequest(txn model.TransactionRecord, categoryNames []string) (model.ClassificationRequest, error) {
	if strings.TrimSpace(txn.Description) == "" {
		return model.ClassificationRequest{}, common.NewValidationError("description", "transaction description is required")
	}
	// A zero amount means the field was absent upstream; it carries no
	// categorization signal either way.
	if txn.Amount.IsZero() {
		return model.ClassificationRequest{}, common.NewValidationError("amount", "transaction amount is required")
	}

	return model.ClassificationRequest{
		TransactionID: txn.ID,
		Description:   txn.Description,
		Vendor:        txn.Vendor,
		AccountLabel:  txn.AccountLabel,
		Amount:        txn.Amount.String(),
		Date:          txn.Date,
		CategoryNames: categoryNames,
	}, nil
}

// ResolveCategoryID maps a suggested category name back to an id by exact,
// case-sensitive match against the catalog. A miss returns nil, meaning
// Uncategorized: an unmatched name must never block the pipeline.
func ResolveCategoryID(suggested string, catalog model.Catalog) *int64 {
	if suggested == "" || suggested == model.UncategorizedName {
		return nil
	}
	for _, cat := range catalog {
		if cat.IsActive && cat.Name == suggested {
			id := cat.ID
			return &id
		}
	}
	return nil
}
