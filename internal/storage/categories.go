package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/model"
)

// GetCategories returns a tenant's full catalog, active and inactive, in
// name order.
func (s *SQLiteStorage) GetCategories(ctx context.Context, tenantID string) (model.Catalog, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenant id"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, description, is_active, created_at
		FROM categories WHERE tenant_id = ? ORDER BY name ASC`, tenantID)
	if err != nil {
		return nil, &common.DatabaseError{Op: "query categories", Err: err}
	}
	defer rows.Close()

	var catalog model.Catalog
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Description,
			&c.IsActive, &c.CreatedAt); err != nil {
			return nil, &common.DatabaseError{Op: "scan category", Err: err}
		}
		catalog = append(catalog, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &common.DatabaseError{Op: "iterate categories", Err: err}
	}
	return catalog, nil
}

// GetCategoryByName finds an active category by exact, case-sensitive name.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, tenantID, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenant id"); err != nil {
		return nil, err
	}
	if err := validateString(name, "category name"); err != nil {
		return nil, err
	}

	var c model.Category
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, description, is_active, created_at
		FROM categories WHERE tenant_id = ? AND name = ? AND is_active = 1`,
		tenantID, name)
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Description, &c.IsActive, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %q: %w", name, common.ErrNotFound)
	}
	if err != nil {
		return nil, &common.DatabaseError{Op: "query category", Err: err}
	}
	return &c, nil
}

// CreateCategory adds an active category. Name collisions among a tenant's
// active categories fail with ErrDuplicateEntry.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, tenantID, name, description string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenant id"); err != nil {
		return nil, err
	}
	if err := validateString(name, "category name"); err != nil {
		return nil, err
	}

	createdAt := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (tenant_id, name, description, is_active, created_at)
		VALUES (?, ?, ?, 1, ?)`, tenantID, name, description, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("category %q: %w", name, common.ErrDuplicateEntry)
		}
		return nil, &common.DatabaseError{Op: "insert category", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, &common.DatabaseError{Op: "read category id", Err: err}
	}
	return &model.Category{
		ID:          id,
		TenantID:    tenantID,
		Name:        name,
		Description: description,
		IsActive:    true,
		CreatedAt:   createdAt,
	}, nil
}

// DeactivateCategory retires a category. Historical classification results
// keep pointing at the retired id.
func (s *SQLiteStorage) DeactivateCategory(ctx context.Context, tenantID string, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(tenantID, "tenant id"); err != nil {
		return err
	}
	if err := validateID(id, "category id"); err != nil {
		return err
	}

	res, err := s.execContext(ctx, "deactivate category", `
		UPDATE categories SET is_active = 0 WHERE tenant_id = ? AND id = ?`,
		tenantID, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &common.DatabaseError{Op: "deactivate category", Err: err}
	}
	if affected == 0 {
		return fmt.Errorf("category %d: %w", id, common.ErrNotFound)
	}
	return nil
}
