package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/opencpa/ledgerpilot/internal/classify"
	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/model"
)

type categorizeRequest struct {
	TenantID       string   `json:"tenantId"`
	TransactionIDs []string `json:"transactionIds"`
	Mode           string   `json:"mode"`
}

type categorizeResponse struct {
	Results []model.ClassificationResult `json:"results"`
	Summary model.CategorizeSummary      `json:"summary"`
}

func (s *Server) categorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req categorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	if req.TenantID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tenantId is required"})
		return
	}
	if len(req.TransactionIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "transactionIds is required"})
		return
	}

	mode := classify.Mode(req.Mode)
	switch mode {
	case "":
		mode = classify.ModeBatch
	case classify.ModeBatch, classify.ModeIndividual:
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "mode must be batch or individual"})
		return
	}

	ctx := r.Context()
	txns, err := s.storage.GetTransactionsByIDs(ctx, req.TenantID, req.TransactionIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(txns) != len(req.TransactionIDs) {
		err := fmt.Errorf("%d of %d transactions: %w",
			len(req.TransactionIDs)-len(txns), len(req.TransactionIDs), common.ErrNotFound)
		s.writeError(w, r, err)
		return
	}

	catalog, err := s.storage.GetCategories(ctx, req.TenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	results, summary, err := s.orchestrator.Categorize(ctx, req.TenantID, txns, catalog, mode)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordClassifierCall(serviceName, string(mode), "error")
		}
		s.writeError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordClassifierCall(serviceName, string(mode), "ok")
	}

	if err := s.storage.SaveClassificationResults(ctx, req.TenantID, results); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.pushAutoAssignments(r, req.TenantID, results)

	writeJSON(w, http.StatusOK, categorizeResponse{Results: results, Summary: summary})
}

// pushAutoAssignments forwards high-confidence assignments to the ledger.
// Fire-and-forget: a sync failure is logged and the response unaffected.
func (s *Server) pushAutoAssignments(r *http.Request, tenantID string, results []model.ClassificationResult) {
	if s.ledger == nil {
		return
	}
	for _, result := range results {
		if result.ConfidenceTier != model.TierHigh || result.CategoryID == nil {
			continue
		}
		if err := s.ledger.PushCategoryAssignment(r.Context(), tenantID, result.TransactionID, *result.CategoryID); err != nil {
			s.logger.Warn("ledger sync push failed",
				"tenant_id", tenantID,
				"transaction_id", result.TransactionID,
				"error", err)
		}
	}
}
