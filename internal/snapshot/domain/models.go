// Package domain contains the persistence model for per-tenant usage snapshots.
package domain

import (
	"fmt"
	"time"

	"github.com/fiscalia/limits/internal/limiterr"
	"github.com/shopspring/decimal"
)

// State classifies a tenant's standing against the year's quota.
type State string

const (
	StateOK       State = "OK"
	StateWarning  State = "WARNING"
	StateCritical State = "CRITICAL"
	StateExceeded State = "EXCEEDED"
)

// Key identifies one accounting period for one tenant.
type Key struct {
	TenantID string
	Year     int
	Month    int
}

func (k Key) Validate() error {
	if k.TenantID == "" {
		return limiterr.Newf(limiterr.ErrNotFound, k.TenantID, k.Year, k.Month, "tenant_id is required")
	}
	if k.Month < 1 || k.Month > 12 {
		return limiterr.Newf(limiterr.ErrInvalidDelta, k.TenantID, k.Year, k.Month, "month out of range")
	}
	return nil
}

// DocID is the audit-log identifier for this snapshot row.
func (k Key) DocID() string {
	return fmt.Sprintf("limits_snapshots/%s/%d/%02d", k.TenantID, k.Year, k.Month)
}

// LimitSnapshot is the system of record for where a tenant stands in a month.
type LimitSnapshot struct {
	TenantID    string          `gorm:"primaryKey;column:tenant_id" json:"tenant_id"`
	Year        int             `gorm:"primaryKey" json:"year"`
	Month       int             `gorm:"primaryKey" json:"month"`
	Accumulated decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"accumulated"`
	Forecast    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"forecast"`
	State       State           `gorm:"type:text;not null" json:"state"`
	// autoUpdateTime is disabled: updated_at is the CAS version token and
	// must only change through the engine's explicit writes.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
}

// TableName sets the database table name.
func (LimitSnapshot) TableName() string { return "limits_snapshots" }

func (s LimitSnapshot) Key() Key {
	return Key{TenantID: s.TenantID, Year: s.Year, Month: s.Month}
}

// Zero returns the lazily-created initial snapshot for a key.
func Zero(key Key, now time.Time) LimitSnapshot {
	return LimitSnapshot{
		TenantID:    key.TenantID,
		Year:        key.Year,
		Month:       key.Month,
		Accumulated: decimal.Zero,
		Forecast:    decimal.Zero,
		State:       StateOK,
		UpdatedAt:   WriteTime(now),
	}
}

// WriteTime normalizes a timestamp for storage. Postgres keeps microsecond
// precision, so anything finer would break updated_at equality checks on
// the read-modify-write cycle.
func WriteTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
