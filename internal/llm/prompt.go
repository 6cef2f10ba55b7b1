package llm

import (
	"fmt"
	"strings"

	"github.com/opencpa/ledgerpilot/internal/model"
)

const systemPrompt = `You are a financial transaction classifier for an accounting firm. Respond only with JSON in the exact shape requested, no prose.`

// buildPrompt creates the prompt for classifying one transaction.
func buildPrompt(req model.ClassificationRequest) string {
	var b strings.Builder

	b.WriteString("Classify this financial transaction into the most appropriate category based solely on the transaction details.\n\n")
	b.WriteString("Existing Categories:\n")
	for _, name := range req.CategoryNames {
		fmt.Fprintf(&b, "- %s\n", name)
	}

	b.WriteString("\nTransaction:\n")
	writeTransactionDetails(&b, req)

	b.WriteString(`
Respond with JSON:
{"category": "<one of the existing categories, or Uncategorized>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>", "alternatives": ["<other plausible categories, best first>"]}`)

	return b.String()
}

// buildBatchPrompt creates the single prompt carrying all requests. The
// response must be a JSON array with one element per transaction, in order.
func buildBatchPrompt(reqs []model.ClassificationRequest) string {
	var b strings.Builder

	b.WriteString("Classify each of the following financial transactions into the most appropriate category.\n\n")
	b.WriteString("Existing Categories:\n")
	if len(reqs) > 0 {
		for _, name := range reqs[0].CategoryNames {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}

	for i, req := range reqs {
		fmt.Fprintf(&b, "\nTransaction %d:\n", i+1)
		writeTransactionDetails(&b, req)
	}

	fmt.Fprintf(&b, `
Respond with a JSON array of exactly %d objects, one per transaction in the order given:
[{"category": "<existing category or Uncategorized>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>", "alternatives": ["..."]}]`, len(reqs))

	return b.String()
}

func writeTransactionDetails(b *strings.Builder, req model.ClassificationRequest) {
	fmt.Fprintf(b, "Description: %s\n", req.Description)
	fmt.Fprintf(b, "Amount: %s\n", req.Amount)
	fmt.Fprintf(b, "Date: %s\n", req.Date.Format("2006-01-02"))
	if req.Vendor != "" {
		fmt.Fprintf(b, "Vendor: %s\n", req.Vendor)
	}
	if req.AccountLabel != "" {
		fmt.Fprintf(b, "Account: %s\n", req.AccountLabel)
	}
}
