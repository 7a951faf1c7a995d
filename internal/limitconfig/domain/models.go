// Package domain holds the per-year quota definitions.
package domain

import (
	"fmt"

	"github.com/fiscalia/limits/internal/limiterr"
	"github.com/shopspring/decimal"
)

var (
	DefaultWarnThreshold     = decimal.NewFromFloat(0.8)
	DefaultCriticalThreshold = decimal.NewFromFloat(1.0)
)

// LimitConfig defines a year's annual quota and classification thresholds.
type LimitConfig struct {
	Year              int             `gorm:"primaryKey" json:"year"`
	AnnualLimit       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"annual_limit"`
	WarnThreshold     decimal.Decimal `gorm:"type:numeric(4,3);not null" json:"warn_threshold"`
	CriticalThreshold decimal.Decimal `gorm:"type:numeric(4,3);not null" json:"critical_threshold"`
}

// TableName sets the database table name.
func (LimitConfig) TableName() string { return "limit_config" }

// Validate enforces 0 < warn <= critical and a non-negative annual limit.
func (c LimitConfig) Validate() error {
	if c.AnnualLimit.IsNegative() {
		return limiterr.Newf(limiterr.ErrInvalidConfig, "", c.Year, 0, "annual_limit must be non-negative")
	}
	if !c.WarnThreshold.IsPositive() || c.WarnThreshold.GreaterThan(decimal.NewFromInt(1)) {
		return limiterr.Newf(limiterr.ErrInvalidConfig, "", c.Year, 0, "warn_threshold must be in (0,1]")
	}
	if c.CriticalThreshold.LessThan(c.WarnThreshold) {
		return limiterr.Newf(limiterr.ErrInvalidConfig, "", c.Year, 0, "critical_threshold must be >= warn_threshold")
	}
	return nil
}

// DocID is the audit-log identifier for this config row.
func (c LimitConfig) DocID() string {
	return fmt.Sprintf("limit_config/%d", c.Year)
}
