// Package domain defines the recalculation orchestrator contract: rebuild
// a snapshot from the authoritative usage ledger.
package domain

import (
	"context"

	snapshotdomain "github.com/fiscalia/limits/internal/snapshot/domain"
)

type Request struct {
	TenantID string  `json:"tenant_id"`
	Year     int     `json:"year"`
	Month    int     `json:"month"`
	UserID   *string `json:"-"`
}

// Result carries the rebuilt snapshot. Partial marks a committed rebuild
// whose audit emission failed.
type Result struct {
	Snapshot snapshotdomain.LimitSnapshot `json:"snapshot"`
	Partial  bool                         `json:"partial,omitempty"`
}

type Service interface {
	// Recalculate rebuilds one (tenant, year, month) snapshot from the
	// ledger. The write is authoritative and supersedes any in-flight
	// accumulation for the same key.
	Recalculate(ctx context.Context, req Request) (Result, error)

	// RecalculateYear rebuilds every month of the year that has either
	// ledger events or an existing snapshot.
	RecalculateYear(ctx context.Context, tenantID string, year int, userID *string) ([]Result, error)
}
