// Package domain defines the accumulation engine contract: apply one usage
// delta atomically to a tenant's current-month snapshot.
package domain

import (
	"context"

	snapshotdomain "github.com/fiscalia/limits/internal/snapshot/domain"
	"github.com/shopspring/decimal"
)

type ApplyRequest struct {
	TenantID string          `json:"tenant_id"`
	Year     int             `json:"year"`
	Month    int             `json:"month"`
	Delta    decimal.Decimal `json:"delta"`
	UserID   *string         `json:"-"`
}

// ApplyResult carries the committed snapshot. Partial marks a commit whose
// audit emission failed; the snapshot mutation itself is durable.
type ApplyResult struct {
	Snapshot snapshotdomain.LimitSnapshot `json:"snapshot"`
	Partial  bool                         `json:"partial,omitempty"`
}

type Service interface {
	Apply(ctx context.Context, req ApplyRequest) (ApplyResult, error)
}
