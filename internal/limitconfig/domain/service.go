package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// UpsertRequest creates or replaces the quota definition for a year.
// Zero thresholds fall back to the schema defaults (0.8 / 1.0).
type UpsertRequest struct {
	Year              int              `json:"year"`
	AnnualLimit       decimal.Decimal  `json:"annual_limit"`
	WarnThreshold     *decimal.Decimal `json:"warn_threshold"`
	CriticalThreshold *decimal.Decimal `json:"critical_threshold"`
	UserID            *string          `json:"-"`
}

type Service interface {
	// Get is the hot read path, consulted on every accumulation event.
	Get(ctx context.Context, year int) (LimitConfig, error)
	Upsert(ctx context.Context, req UpsertRequest) (LimitConfig, error)
	List(ctx context.Context) ([]LimitConfig, error)
}

type Repository interface {
	Get(ctx context.Context, year int) (LimitConfig, error)
	Upsert(ctx context.Context, cfg LimitConfig) error
	List(ctx context.Context) ([]LimitConfig, error)
}
