package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opencpa/ledgerpilot/internal/match"
	"github.com/opencpa/ledgerpilot/internal/model"
	"github.com/opencpa/ledgerpilot/internal/service"
)

type receiptResponse struct {
	Receipt *model.Receipt    `json:"receipt"`
	Match   model.MatchResult `json:"match"`
}

// uploadReceipt runs the full receipt pipeline: OCR extraction, candidate
// matching inside the date window, the auto-link policy, persistence, and
// an audit entry.
func (s *Server) uploadReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	if s.ocr == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "receipt processing is not configured"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBytes)
	if err := r.ParseMultipartForm(maxReceiptBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart request"})
		return
	}

	tenantID := r.FormValue("tenantId")
	if tenantID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tenantId is required"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unable to read file"})
		return
	}
	mimeType := header.Header.Get("Content-Type")

	ctx := r.Context()
	extraction, err := s.ocr.Extract(ctx, fileBytes, mimeType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	window := match.DefaultWindow(extraction.TransactionDate, time.Now().UTC())
	candidates, err := s.storage.GetTransactionsInWindow(ctx, tenantID, window.Start, window.End)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result := s.matcher.Match(extraction, candidates, window)
	if s.metrics != nil {
		s.metrics.RecordReceiptMatch(serviceName, string(result.Best.Tier))
	}

	receipt := &model.Receipt{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		FileName:    header.Filename,
		MimeType:    mimeType,
		Extraction:  extraction,
		MatchStatus: result.Status(),
		UploadedAt:  time.Now().UTC(),
	}
	if result.AutoLink() {
		receipt.MatchedTransactionID = result.Best.TransactionID
		receipt.MatchScore = result.Best.Score
	}

	if err := s.storage.SaveReceipt(ctx, receipt); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.recordReceiptAudit(r, receipt, result); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, receiptResponse{Receipt: receipt, Match: result})
}

func (s *Server) recordReceiptAudit(r *http.Request, receipt *model.Receipt, result model.MatchResult) error {
	if s.audit == nil {
		return nil
	}

	newValues := map[string]any{
		"file_name":    receipt.FileName,
		"vendor_name":  receipt.Extraction.VendorName,
		"match_status": string(receipt.MatchStatus),
	}
	if receipt.Extraction.Amount != nil {
		newValues["amount"] = receipt.Extraction.Amount.String()
	}
	if receipt.MatchedTransactionID != "" {
		newValues["matched_transaction_id"] = receipt.MatchedTransactionID
		newValues["match_score"] = result.Best.Score
	}

	// Auto-linking money movement without a human in the loop carries more
	// risk than a plain upload.
	risk := model.RiskLow
	if result.AutoLink() {
		risk = model.RiskMedium
	}

	_, err := s.audit.Append(r.Context(), service.AuditRequest{
		TenantID:      receipt.TenantID,
		EventType:     "receipt_upload",
		EventCategory: "receipts",
		ActorID:       "system",
		ActorType:     "system",
		EntityType:    "receipt",
		EntityID:      receipt.ID,
		Action:        "create",
		NewValues:     newValues,
		RiskLevel:     risk,
	})
	return err
}

func (s *Server) getReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/receipts/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "receipt id is required"})
		return
	}
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tenantId is required"})
		return
	}

	receipt, err := s.storage.GetReceiptByID(r.Context(), tenantID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
