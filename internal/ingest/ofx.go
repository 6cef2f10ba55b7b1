// Package ingest parses OFX/QFX bank exports into transaction records for
// the decision pipeline.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opencpa/ledgerpilot/internal/model"
)

// OFXImporter parses OFX/QFX statement files.
type OFXImporter struct {
	logger *slog.Logger
}

// NewOFXImporter creates an importer.
func NewOFXImporter(logger *slog.Logger) *OFXImporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OFXImporter{logger: logger}
}

var (
	// Mixed-case SEVERITY values break strict parsers.
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// SGML-style files sometimes drop the closing bracket on a bare tag line.
	bareTagPattern = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocess fixes common formatting issues seen in bank exports.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)
	return bareTagPattern.ReplaceAllString(content, "$1>")
}

// Import parses a statement file into transaction records for the tenant.
// Records that repeat within the file (same content hash) are collapsed.
func (imp *OFXImporter) Import(ctx context.Context, tenantID string, reader io.Reader) ([]model.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read statement file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("parse statement file: %w", err)
	}

	var records []model.TransactionRecord
	seen := make(map[string]bool)
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		bankStmts++
		accountLabel := string(stmt.BankAcctFrom.AcctID)
		for _, ofxTx := range stmt.BankTranList.Transactions {
			appendRecord(&records, seen, convertTransaction(ofxTx, tenantID, accountLabel))
		}
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		ccStmts++
		accountLabel := string(stmt.CCAcctFrom.AcctID)
		for _, ofxTx := range stmt.BankTranList.Transactions {
			appendRecord(&records, seen, convertTransaction(ofxTx, tenantID, accountLabel))
		}
	}

	imp.logger.Info("parsed statement file",
		"tenant_id", tenantID,
		"transactions", len(records),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return records, nil
}

func appendRecord(records *[]model.TransactionRecord, seen map[string]bool, record model.TransactionRecord) {
	hash := record.ContentHash()
	if seen[hash] {
		return
	}
	seen[hash] = true
	*records = append(*records, record)
}

func convertTransaction(ofxTx ofxgo.Transaction, tenantID, accountLabel string) model.TransactionRecord {
	id := string(ofxTx.FiTID)
	if id == "" {
		id = uuid.NewString()
	}

	// OFX reports debits as negative; the pipeline works in magnitudes.
	amount, err := decimal.NewFromString(ofxTx.TrnAmt.String())
	if err != nil {
		f, _ := ofxTx.TrnAmt.Float64()
		amount = decimal.NewFromFloat(f)
	}
	amount = amount.Abs()

	return model.TransactionRecord{
		ID:           id,
		TenantID:     tenantID,
		Description:  string(ofxTx.Name),
		Vendor:       extractVendorName(ofxTx),
		AccountLabel: accountLabel,
		Amount:       amount,
		Date:         ofxTx.DtPosted.Time,
		CreatedAt:    time.Now().UTC(),
	}
}

// extractVendorName pulls the cleanest merchant name the file offers.
func extractVendorName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Strip leading "MM/DD " date stamps.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}
	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
