package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20260315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20260301120000[0:GMT]
<DTEND>20260331120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260315120000[0:GMT]
<TRNAMT>-25.50
<FITID>2026031501
<NAME>STARBUCKS STORE #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260320120000[0:GMT]
<TRNAMT>-125.00
<FITID>2026032001
<NAME>Whole Foods Market
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20260331120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20260315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20260301120000[0:GMT]
<DTEND>20260331120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260310120000[0:GMT]
<TRNAMT>-45.99
<FITID>CC2026031001
<NAME>AMAZON.COM*RT4Y7HG2
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20260331120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestImportBankStatement(t *testing.T) {
	imp := NewOFXImporter(nil)

	records, err := imp.Import(context.Background(), "tenant-a", strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "2026031501", first.ID)
	assert.Equal(t, "tenant-a", first.TenantID)
	assert.Equal(t, "STARBUCKS STORE #1234", first.Description)
	assert.Equal(t, "STARBUCKS STORE #1234", first.Vendor)
	assert.Equal(t, "1234567890", first.AccountLabel)
	// Debits come in negative; records carry magnitudes.
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("25.50")))
	assert.Equal(t, time.March, first.Date.Month())
	assert.Equal(t, 15, first.Date.Day())

	second := records[1]
	assert.Equal(t, "Whole Foods Market", second.Vendor)
	assert.True(t, second.Amount.Equal(decimal.RequireFromString("125.00")))
}

func TestImportCreditCardStatement(t *testing.T) {
	imp := NewOFXImporter(nil)

	records, err := imp.Import(context.Background(), "tenant-a", strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "CC2026031001", records[0].ID)
	assert.Equal(t, "4111111111111111", records[0].AccountLabel)
	assert.True(t, records[0].Amount.Equal(decimal.RequireFromString("45.99")))
}

func TestImportInvalidFile(t *testing.T) {
	imp := NewOFXImporter(nil)

	tests := []struct {
		name string
		data string
	}{
		{name: "not OFX", data: "not valid OFX"},
		{name: "empty", data: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := imp.Import(context.Background(), "tenant-a", strings.NewReader(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestImportCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	imp := NewOFXImporter(nil)
	_, err := imp.Import(ctx, "tenant-a", strings.NewReader(sampleBankOFX))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractVendorName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "remove POS prefix", input: "POS PURCHASE STARBUCKS", expected: "STARBUCKS"},
		{name: "remove DEBIT CARD prefix", input: "DEBIT CARD PURCHASE WHOLE FOODS", expected: "WHOLE FOODS"},
		{name: "keep clean name", input: "NETFLIX.COM", expected: "NETFLIX.COM"},
		{name: "trim whitespace", input: "  AMAZON.COM  ", expected: "AMAZON.COM"},
		{name: "strip leading date stamp", input: "03/15 STARBUCKS", expected: "STARBUCKS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := ofxgo.Transaction{Name: ofxgo.String(tt.input)}
			assert.Equal(t, tt.expected, extractVendorName(tx))
		})
	}
}

func TestImportDeduplicatesWithinFile(t *testing.T) {
	// Duplicate the STMTTRN block with a different FITID; same date,
	// amount, and name collapse to one record.
	duplicated := strings.Replace(sampleBankOFX, `<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260315120000[0:GMT]
<TRNAMT>-25.50
<FITID>2026031501
<NAME>STARBUCKS STORE #1234
</STMTTRN>`, `<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260315120000[0:GMT]
<TRNAMT>-25.50
<FITID>2026031501
<NAME>STARBUCKS STORE #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260315120000[0:GMT]
<TRNAMT>-25.50
<FITID>2026031502
<NAME>STARBUCKS STORE #1234
</STMTTRN>`, 1)

	imp := NewOFXImporter(nil)
	records, err := imp.Import(context.Background(), "tenant-a", strings.NewReader(duplicated))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
