package model

import "time"

// Category represents one entry in a tenant's category catalog. Names are
// unique among a tenant's active categories; reconciliation by name depends
// on that.
type Category struct {
	CreatedAt   time.Time
	TenantID    string
	Name        string
	Description string
	ID          int64
	IsActive    bool
}

// Catalog is a tenant's active category list, used as classification
// context and for resolving suggested names back to ids.
type Catalog []Category

// Names returns the category names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, cat := range c {
		names[i] = cat.Name
	}
	return names
}

// Active filters the catalog down to active categories.
func (c Catalog) Active() Catalog {
	active := make(Catalog, 0, len(c))
	for _, cat := range c {
		if cat.IsActive {
			active = append(active, cat)
		}
	}
	return active
}
