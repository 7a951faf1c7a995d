package domain

import (
	"context"
	"time"
)

// Repository is the conditional-write store behind the limits engine. No
// method silently overwrites a concurrently modified row except Overwrite,
// which is reserved for authoritative recalculation.
type Repository interface {
	// GetOrCreate returns the snapshot for key, inserting a zeroed row on
	// first touch. Insert races resolve by re-reading the winner.
	GetOrCreate(ctx context.Context, key Key) (LimitSnapshot, error)

	// Get returns the snapshot or a not_found error. It never creates.
	Get(ctx context.Context, key Key) (LimitSnapshot, error)

	// CompareAndSwap persists snap only if the stored row still carries
	// expectedUpdatedAt; otherwise it fails with a conflict error. The
	// stored updated_at is refreshed to snap.UpdatedAt on success.
	CompareAndSwap(ctx context.Context, snap LimitSnapshot, expectedUpdatedAt time.Time) error

	// Overwrite unconditionally replaces (or inserts) the row.
	Overwrite(ctx context.Context, snap LimitSnapshot) error

	// ListYear returns every month recorded for the tenant in the year,
	// ordered by month.
	ListYear(ctx context.Context, tenantID string, year int) ([]LimitSnapshot, error)

	// TenantsForPeriod returns the tenants holding a snapshot for the period.
	TenantsForPeriod(ctx context.Context, year, month int) ([]string, error)
}
