package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/model"
)

// LatestAuditHash returns the data hash of the tenant's most recent audit
// entry, or "" when the chain is empty.
func (s *SQLiteStorage) LatestAuditHash(ctx context.Context, tenantID string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateString(tenantID, "tenant id"); err != nil {
		return "", err
	}

	var hash string
	row := s.db.QueryRowContext(ctx, `
		SELECT data_hash FROM audit_entries
		WHERE tenant_id = ? ORDER BY id DESC LIMIT 1`, tenantID)
	err := row.Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", &common.DatabaseError{Op: "query latest audit hash", Err: err}
	}
	return hash, nil
}

// AppendAuditEntry appends one entry, guarded by compare-and-swap on the
// tenant's latest hash: if expectedPrevious no longer matches, nothing is
// written and ErrChainConflict is returned so the caller can re-read and
// retry. The UNIQUE(tenant_id, previous_hash) index backstops the check
// across processes.
func (s *SQLiteStorage) AppendAuditEntry(ctx context.Context, entry *model.AuditEntry, expectedPrevious string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if entry == nil {
		return 0, &common.ValidationError{Field: "entry", Reason: "cannot be nil"}
	}
	if err := validateString(entry.TenantID, "tenant id"); err != nil {
		return 0, err
	}
	if err := validateString(entry.DataHash, "data hash"); err != nil {
		return 0, err
	}
	if entry.PreviousHash != expectedPrevious {
		return 0, &common.ValidationError{Field: "previous hash", Reason: "does not match expected"}
	}

	oldValues, newValues, err := encodeAuditValues(entry)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &common.DatabaseError{Op: "begin audit append", Err: err}
	}
	defer tx.Rollback()

	var latest string
	row := tx.QueryRowContext(ctx, `
		SELECT data_hash FROM audit_entries
		WHERE tenant_id = ? ORDER BY id DESC LIMIT 1`, entry.TenantID)
	if err := row.Scan(&latest); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, &common.DatabaseError{Op: "read chain head", Err: err}
	}
	if latest != expectedPrevious {
		return 0, fmt.Errorf("head moved from %q: %w",
			truncateHash(expectedPrevious), common.ErrChainConflict)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO audit_entries
			(tenant_id, event_type, event_category, actor_id, actor_type,
			 entity_type, entity_id, action, old_values, new_values,
			 change_summary, risk_level, data_hash, previous_hash,
			 review, reviewed_by, created_millis)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.TenantID, entry.EventType, entry.EventCategory, entry.ActorID,
		entry.ActorType, entry.EntityType, entry.EntityID, entry.Action,
		oldValues, newValues, entry.ChangeSummary, string(entry.RiskLevel),
		entry.DataHash, entry.PreviousHash, string(entry.Review),
		entry.ReviewedBy, entry.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("chain link taken: %w", common.ErrChainConflict)
		}
		return 0, &common.DatabaseError{Op: "insert audit entry", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, &common.DatabaseError{Op: "read audit entry id", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &common.DatabaseError{Op: "commit audit append", Err: err}
	}
	return id, nil
}

// GetAuditEntries returns entries matching the filter in chain order
// (ascending id), so a full-tenant query is directly verifiable.
func (s *SQLiteStorage) GetAuditEntries(ctx context.Context, filter model.AuditFilter) ([]model.AuditEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(filter.TenantID, "tenant id"); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT id, tenant_id, event_type, event_category, actor_id, actor_type,
		       entity_type, entity_id, action, old_values, new_values,
		       change_summary, risk_level, data_hash, previous_hash,
		       review, reviewed_by, created_millis
		FROM audit_entries WHERE tenant_id = ?`)
	args := []any{filter.TenantID}

	if filter.EventType != "" {
		sb.WriteString(" AND event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.EntityType != "" {
		sb.WriteString(" AND entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.ActorID != "" {
		sb.WriteString(" AND actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if filter.RiskLevel != "" {
		sb.WriteString(" AND risk_level = ?")
		args = append(args, string(filter.RiskLevel))
	}
	if filter.Since != nil {
		sb.WriteString(" AND created_millis >= ?")
		args = append(args, filter.Since.UnixMilli())
	}
	if filter.Until != nil {
		sb.WriteString(" AND created_millis <= ?")
		args = append(args, filter.Until.UnixMilli())
	}
	sb.WriteString(" ORDER BY id ASC")
	if filter.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			sb.WriteString(" OFFSET ?")
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, &common.DatabaseError{Op: "query audit entries", Err: err}
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, &common.DatabaseError{Op: "scan audit entry", Err: err}
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &common.DatabaseError{Op: "iterate audit entries", Err: err}
	}
	return entries, nil
}

// ReviewAuditEntry records an approval decision on an existing entry. Only
// review metadata changes; hashes are immutable so the chain stays intact.
func (s *SQLiteStorage) ReviewAuditEntry(ctx context.Context, tenantID string, id int64, decision model.ReviewDecision, reviewedBy string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(tenantID, "tenant id"); err != nil {
		return err
	}
	if err := validateID(id, "audit entry id"); err != nil {
		return err
	}
	if decision != model.ReviewApproved && decision != model.ReviewRejected {
		return &common.ValidationError{Field: "decision", Reason: "must be approved or rejected"}
	}
	if err := validateString(reviewedBy, "reviewed by"); err != nil {
		return err
	}

	res, err := s.execContext(ctx, "review audit entry", `
		UPDATE audit_entries SET review = ?, reviewed_by = ?
		WHERE tenant_id = ? AND id = ? AND review = ?`,
		string(decision), reviewedBy, tenantID, id, string(model.ReviewPending))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &common.DatabaseError{Op: "review audit entry", Err: err}
	}
	if affected == 0 {
		return fmt.Errorf("pending audit entry %d: %w", id, common.ErrNotFound)
	}
	return nil
}

func encodeAuditValues(entry *model.AuditEntry) (any, any, error) {
	var oldValues, newValues any
	if entry.OldValues != nil {
		b, err := json.Marshal(entry.OldValues)
		if err != nil {
			return nil, nil, &common.DatabaseError{Op: "encode old values", Err: err}
		}
		oldValues = string(b)
	}
	if entry.NewValues != nil {
		b, err := json.Marshal(entry.NewValues)
		if err != nil {
			return nil, nil, &common.DatabaseError{Op: "encode new values", Err: err}
		}
		newValues = string(b)
	}
	return oldValues, newValues, nil
}

func scanAuditEntry(row rowScanner) (*model.AuditEntry, error) {
	var entry model.AuditEntry
	var oldValues, newValues sql.NullString
	var riskLevel, review string
	var millis int64
	if err := row.Scan(&entry.ID, &entry.TenantID, &entry.EventType,
		&entry.EventCategory, &entry.ActorID, &entry.ActorType,
		&entry.EntityType, &entry.EntityID, &entry.Action,
		&oldValues, &newValues, &entry.ChangeSummary, &riskLevel,
		&entry.DataHash, &entry.PreviousHash, &review, &entry.ReviewedBy,
		&millis); err != nil {
		return nil, err
	}

	entry.RiskLevel = model.RiskLevel(riskLevel)
	entry.Review = model.ReviewDecision(review)
	entry.CreatedAt = time.UnixMilli(millis).UTC()
	if oldValues.Valid {
		if err := json.Unmarshal([]byte(oldValues.String), &entry.OldValues); err != nil {
			return nil, fmt.Errorf("decode old values: %w", err)
		}
	}
	if newValues.Valid {
		if err := json.Unmarshal([]byte(newValues.String), &entry.NewValues); err != nil {
			return nil, fmt.Errorf("decode new values: %w", err)
		}
	}
	return &entry, nil
}

func truncateHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
