package model

import "time"

// RiskLevel grades how sensitive an audited action is.
type RiskLevel string

// Risk level constants.
const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ReviewDecision is the approval metadata that may be added to an audit
// entry after the fact. It never alters the entry's hashes.
type ReviewDecision string

// Review decision constants.
const (
	ReviewPending  ReviewDecision = "pending"
	ReviewApproved ReviewDecision = "approved"
	ReviewRejected ReviewDecision = "rejected"
)

// AuditEntry is one tamper-evident log record. DataHash is a deterministic
// digest over the entry's identifying fields plus PreviousHash; the chain is
// valid iff every entry's PreviousHash equals the DataHash of the entry
// created immediately before it (empty string for the first entry).
type AuditEntry struct {
	CreatedAt     time.Time      `json:"createdAt"`
	ID            int64          `json:"id"`
	TenantID      string         `json:"tenantId"`
	EventType     string         `json:"eventType"`
	EventCategory string         `json:"eventCategory"`
	ActorID       string         `json:"actorId"`
	ActorType     string         `json:"actorType"`
	EntityType    string         `json:"entityType"`
	EntityID      string         `json:"entityId,omitempty"`
	Action        string         `json:"action"`
	OldValues     map[string]any `json:"oldValues,omitempty"`
	NewValues     map[string]any `json:"newValues,omitempty"`
	ChangeSummary string         `json:"changeSummary"`
	RiskLevel     RiskLevel      `json:"riskLevel"`
	DataHash      string         `json:"dataHash"`
	PreviousHash  string         `json:"previousHash"`
	Review        ReviewDecision `json:"review"`
	ReviewedBy    string         `json:"reviewedBy,omitempty"`
}

// AuditFilter narrows audit trail queries.
type AuditFilter struct {
	Since      *time.Time
	Until      *time.Time
	TenantID   string
	EventType  string
	EntityType string
	ActorID    string
	RiskLevel  RiskLevel
	Limit      int
	Offset     int
}

// AuditSummary aggregates a filtered slice of the audit trail.
type AuditSummary struct {
	Total       int               `json:"total"`
	ByEventType map[string]int    `json:"byEventType"`
	ByRiskLevel map[RiskLevel]int `json:"byRiskLevel"`
}

// SummarizeAuditEntries derives the trail summary from an entry list.
func SummarizeAuditEntries(entries []AuditEntry) AuditSummary {
	summary := AuditSummary{
		Total:       len(entries),
		ByEventType: make(map[string]int),
		ByRiskLevel: make(map[RiskLevel]int),
	}
	for _, e := range entries {
		summary.ByEventType[e.EventType]++
		summary.ByRiskLevel[e.RiskLevel]++
	}
	return summary
}
