package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/opencpa/ledgerpilot/internal/audit"
	"github.com/opencpa/ledgerpilot/internal/model"
	"github.com/opencpa/ledgerpilot/internal/service"
)

type auditEventRequest struct {
	TenantID      string         `json:"tenantId"`
	EventType     string         `json:"eventType"`
	EventCategory string         `json:"eventCategory"`
	ActorID       string         `json:"actorId"`
	ActorType     string         `json:"actorType"`
	EntityType    string         `json:"entityType"`
	EntityID      string         `json:"entityId"`
	Action        string         `json:"action"`
	OldValues     map[string]any `json:"oldValues"`
	NewValues     map[string]any `json:"newValues"`
	RiskLevel     string         `json:"riskLevel"`
}

// recordAuditEvent appends one caller-supplied entry through the single
// chain writer.
func (s *Server) recordAuditEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req auditEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}

	entry, err := s.audit.Append(r.Context(), service.AuditRequest{
		TenantID:      req.TenantID,
		EventType:     req.EventType,
		EventCategory: req.EventCategory,
		ActorID:       req.ActorID,
		ActorType:     req.ActorType,
		EntityType:    req.EntityType,
		EntityID:      req.EntityID,
		Action:        req.Action,
		OldValues:     req.OldValues,
		NewValues:     req.NewValues,
		RiskLevel:     model.RiskLevel(req.RiskLevel),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type auditTrailResponse struct {
	Entries []model.AuditEntry `json:"entries"`
	Summary model.AuditSummary `json:"summary"`
}

// auditTrail returns filtered entries in chain order plus a derived summary.
func (s *Server) auditTrail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	query := r.URL.Query()
	filter := model.AuditFilter{
		TenantID:   query.Get("tenantId"),
		EventType:  query.Get("eventType"),
		EntityType: query.Get("entityType"),
		ActorID:    query.Get("actorId"),
		RiskLevel:  model.RiskLevel(query.Get("riskLevel")),
	}
	if filter.TenantID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tenantId is required"})
		return
	}

	if raw := query.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "since must be RFC 3339"})
			return
		}
		filter.Since = &since
	}
	if raw := query.Get("until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "until must be RFC 3339"})
			return
		}
		filter.Until = &until
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "offset must be a non-negative integer"})
			return
		}
		filter.Offset = offset
	}

	entries, err := s.storage.GetAuditEntries(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, auditTrailResponse{
		Entries: entries,
		Summary: model.SummarizeAuditEntries(entries),
	})
}

type auditReviewRequest struct {
	TenantID   string `json:"tenantId"`
	EntryID    int64  `json:"entryId"`
	Decision   string `json:"decision"`
	ReviewedBy string `json:"reviewedBy"`
}

// reviewAuditEntry records an approve/reject decision on a pending entry.
func (s *Server) reviewAuditEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req auditReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}

	decision := model.ReviewDecision(req.Decision)
	var action string
	switch decision {
	case model.ReviewApproved:
		action = "approve"
	case model.ReviewRejected:
		action = "reject"
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "decision must be approved or rejected"})
		return
	}

	err := s.storage.ReviewAuditEntry(r.Context(), req.TenantID, req.EntryID,
		decision, req.ReviewedBy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if s.audit != nil {
		_, auditErr := s.audit.Append(r.Context(), service.AuditRequest{
			TenantID:      req.TenantID,
			EventType:     "audit_review",
			EventCategory: "review",
			ActorID:       req.ReviewedBy,
			ActorType:     "user",
			EntityType:    "audit_entry",
			EntityID:      strconv.FormatInt(req.EntryID, 10),
			Action:        action,
			RiskLevel:     model.RiskMedium,
		})
		if auditErr != nil {
			s.writeError(w, r, auditErr)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

type verifyResponse struct {
	TenantID string `json:"tenantId"`
	Entries  int    `json:"entries"`
	Valid    bool   `json:"valid"`
	Error    string `json:"error,omitempty"`
}

// verifyAuditChain replays the tenant's full chain and reports whether it is
// intact. A broken chain is reported in the body, not as an HTTP failure.
func (s *Server) verifyAuditChain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tenantId is required"})
		return
	}

	entries, err := s.storage.GetAuditEntries(r.Context(), model.AuditFilter{TenantID: tenantID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := verifyResponse{TenantID: tenantID, Entries: len(entries), Valid: true}
	if err := audit.VerifyChain(entries); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
