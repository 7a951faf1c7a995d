// Package domain contains the append-only audit trail models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	SourceAccumulation  = "accumulation"
	SourceRecalculation = "recalculation"
	SourceManual        = "manual"
)

// FieldChange records one observed mutation of one field. Rows are written
// exactly once and never updated or deleted.
type FieldChange struct {
	ID       snowflake.ID   `gorm:"primaryKey" json:"id"`
	DocID    string         `gorm:"column:doc_id;not null" json:"doc_id"`
	UserID   *string        `gorm:"column:user_id" json:"user_id,omitempty"`
	TS       time.Time      `gorm:"column:ts;not null" json:"ts"`
	Field    string         `gorm:"not null" json:"field"`
	// The column type stays text at the gorm layer: a jsonb-typed column
	// gets numeric affinity on sqlite, which coerces bare JSON numbers to
	// integers and breaks the scan on read. Postgres uses JSONB via the
	// schema migrations.
	OldValue datatypes.JSON `gorm:"column:old_value;type:text" json:"old_value"`
	NewValue datatypes.JSON `gorm:"column:new_value;type:text" json:"new_value"`
	Source   string         `gorm:"not null" json:"source"`
}

// TableName sets the database table name.
func (FieldChange) TableName() string { return "audit_field_changes" }
