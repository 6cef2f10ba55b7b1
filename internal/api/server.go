// Package api exposes the decision pipeline over HTTP: categorization,
// receipt upload and matching, and the audit trail.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/opencpa/ledgerpilot/internal/classify"
	"github.com/opencpa/ledgerpilot/internal/match"
	"github.com/opencpa/ledgerpilot/internal/metrics"
	"github.com/opencpa/ledgerpilot/internal/service"
)

const serviceName = "ledgerpilot"

// maxReceiptBytes caps receipt uploads.
const maxReceiptBytes = 20 << 20

// Server wires the pipeline components behind HTTP handlers.
type Server struct {
	storage      service.Storage
	orchestrator *classify.Orchestrator
	matcher      *match.Matcher
	ocr          service.OCRClient
	audit        service.AuditRecorder
	ledger       service.LedgerSync
	metrics      *metrics.Metrics
	logger       *slog.Logger
	limiter      *rate.Limiter
}

// Deps carries the server's collaborators. Storage, the orchestrator, and
// the audit recorder are required; the rest degrade gracefully when nil.
type Deps struct {
	Storage      service.Storage
	Orchestrator *classify.Orchestrator
	Matcher      *match.Matcher
	OCR          service.OCRClient
	Audit        service.AuditRecorder
	Ledger       service.LedgerSync
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	// RequestsPerSecond throttles the whole surface; zero disables it.
	RequestsPerSecond float64
}

// NewServer creates the HTTP server facade.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Matcher == nil {
		deps.Matcher = match.NewMatcher(deps.Logger)
	}
	var limiter *rate.Limiter
	if deps.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(deps.RequestsPerSecond), int(deps.RequestsPerSecond)+1)
	}
	return &Server{
		storage:      deps.Storage,
		orchestrator: deps.Orchestrator,
		matcher:      deps.Matcher,
		ocr:          deps.OCR,
		audit:        deps.Audit,
		ledger:       deps.Ledger,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		limiter:      limiter,
	}
}

// Handler builds the route table with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthz)
	mux.HandleFunc("/v1/categorize", s.categorize)
	mux.HandleFunc("/v1/receipts", s.uploadReceipt)
	mux.HandleFunc("/v1/receipts/", s.getReceipt)
	mux.HandleFunc("/v1/audit/events", s.recordAuditEvent)
	mux.HandleFunc("/v1/audit/trail", s.auditTrail)
	mux.HandleFunc("/v1/audit/review", s.reviewAuditEntry)
	mux.HandleFunc("/v1/audit/verify", s.verifyAuditChain)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	var handler http.Handler = mux
	if s.metrics != nil {
		handler = s.metrics.Middleware(serviceName, handler)
	}
	handler = accessLog(s.logger, handler)
	handler = throttle(s.limiter, handler)
	return withRequestID(handler)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError logs server-side failures and replies with the mapped status.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID(r.Context()),
			"error", err)
	}
	writeJSON(w, status, errorResponse{Error: userMessage(err, status)})
}
