// Package domain defines the replayable usage ledger consumed by
// recalculation. The ledger itself is owned by the documents pipeline;
// this engine only reads it.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Event is one raw usage delta as recorded by the upstream services.
// Negative amounts are corrections.
type Event struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID   string          `gorm:"column:tenant_id;not null" json:"tenant_id"`
	Year       int             `gorm:"not null" json:"year"`
	Month      int             `gorm:"not null" json:"month"`
	DocID      *string         `gorm:"column:doc_id" json:"doc_id,omitempty"`
	Amount     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	RecordedAt time.Time       `gorm:"not null" json:"recorded_at"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "usage_events" }

// Reader streams the authoritative usage history for one period.
type Reader interface {
	Events(ctx context.Context, tenantID string, year, month int) ([]Event, error)
}

// Appender records raw events; used by ingestion adapters and tests, never
// by the recalculation path.
type Appender interface {
	Append(ctx context.Context, event Event) error
}
