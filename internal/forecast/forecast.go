// Package forecast holds the pure run-rate projection and state
// classification math. Nothing here touches storage; the stored state
// column is only ever a cache of Classify's output.
package forecast

import (
	"time"

	configdomain "github.com/fiscalia/limits/internal/limitconfig/domain"
	snapshotdomain "github.com/fiscalia/limits/internal/snapshot/domain"
	"github.com/shopspring/decimal"
)

// epsilon is the elapsed-fraction floor: one hour of a 31-day month.
// Below it a linear projection would explode, so the forecast degrades
// to the accumulated value.
var epsilon = decimal.NewFromInt(1).Div(decimal.NewFromInt(744))

// ElapsedFraction returns how much of the accounting month has passed at
// now, clamped to (epsilon, 1].
func ElapsedFraction(now time.Time, year, month int) decimal.Decimal {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	total := decimal.NewFromInt(int64(end.Sub(start)))
	elapsed := decimal.NewFromInt(int64(now.UTC().Sub(start)))

	fraction := elapsed.Div(total)
	if fraction.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	if fraction.LessThanOrEqual(epsilon) {
		return epsilon
	}
	return fraction
}

// Project linearly extrapolates month-end usage from the accumulated value
// and the elapsed fraction. At the epsilon floor there is no meaningful
// projection yet, so the forecast equals the accumulated value.
func Project(accumulated, fraction decimal.Decimal) decimal.Decimal {
	if fraction.LessThanOrEqual(epsilon) {
		return accumulated
	}
	return accumulated.Div(fraction).Round(2)
}

// Classify derives the snapshot state from actual and projected usage.
// EXCEEDED takes priority over the projected states because it reflects
// actual, not forecast, consumption.
func Classify(accumulated, projected decimal.Decimal, cfg configdomain.LimitConfig) snapshotdomain.State {
	switch {
	case accumulated.GreaterThanOrEqual(cfg.AnnualLimit):
		return snapshotdomain.StateExceeded
	case projected.GreaterThanOrEqual(cfg.AnnualLimit.Mul(cfg.CriticalThreshold)):
		return snapshotdomain.StateCritical
	case projected.GreaterThanOrEqual(cfg.AnnualLimit.Mul(cfg.WarnThreshold)):
		return snapshotdomain.StateWarning
	default:
		return snapshotdomain.StateOK
	}
}

// Roll applies one delta and rederives forecast and state. It is the single
// computation shared by incremental accumulation and ledger replay.
func Roll(accumulated, delta decimal.Decimal, fraction decimal.Decimal, cfg configdomain.LimitConfig) (decimal.Decimal, decimal.Decimal, snapshotdomain.State) {
	next := accumulated.Add(delta)
	if next.IsNegative() {
		next = decimal.Zero
	}
	projected := Project(next, fraction)
	return next, projected, Classify(next, projected, cfg)
}
