package forecast

import (
	"testing"
	"time"

	configdomain "github.com/fiscalia/limits/internal/limitconfig/domain"
	snapshotdomain "github.com/fiscalia/limits/internal/snapshot/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testConfig() configdomain.LimitConfig {
	return configdomain.LimitConfig{
		Year:              2025,
		AnnualLimit:       decimal.NewFromInt(1000),
		WarnThreshold:     decimal.NewFromFloat(0.8),
		CriticalThreshold: decimal.NewFromFloat(1.0),
	}
}

func TestElapsedFraction(t *testing.T) {
	cases := []struct {
		name  string
		now   time.Time
		year  int
		month int
		want  string
	}{
		{"mid month", time.Date(2025, 4, 16, 0, 0, 0, 0, time.UTC), 2025, 4, "0.5"},
		{"month complete", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), 2025, 4, "1"},
		{"after month", time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC), 2025, 4, "1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ElapsedFraction(tc.now, tc.year, tc.month)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)),
				"got %s want %s", got, tc.want)
		})
	}
}

func TestElapsedFractionClampedAtFloor(t *testing.T) {
	// One second into the month is below the one-hour floor.
	now := time.Date(2025, 4, 1, 0, 0, 1, 0, time.UTC)
	got := ElapsedFraction(now, 2025, 4)
	assert.True(t, got.Equal(epsilon), "expected floor, got %s", got)

	// Before the month starts the fraction stays at the floor too.
	before := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	assert.True(t, ElapsedFraction(before, 2025, 4).Equal(epsilon))
}

func TestProjectAtFloorReturnsAccumulated(t *testing.T) {
	accumulated := decimal.NewFromInt(120)
	assert.True(t, Project(accumulated, epsilon).Equal(accumulated))
}

func TestProjectLinearRunRate(t *testing.T) {
	got := Project(decimal.NewFromInt(250), decimal.RequireFromString("0.5"))
	assert.True(t, got.Equal(decimal.NewFromInt(500)), "got %s", got)
}

func TestClassifyThresholds(t *testing.T) {
	cfg := testConfig()
	cases := []struct {
		name        string
		accumulated string
		projected   string
		want        snapshotdomain.State
	}{
		{"well under", "100", "100", snapshotdomain.StateOK},
		{"warning at 850 complete month", "850", "850", snapshotdomain.StateWarning},
		{"critical on projection", "500", "1000", snapshotdomain.StateCritical},
		{"exceeded at exactly the limit", "1000", "1000", snapshotdomain.StateExceeded},
		{"exceeded beats low forecast", "1000", "0", snapshotdomain.StateExceeded},
		{"warning boundary inclusive", "800", "800", snapshotdomain.StateWarning},
		{"just under warn", "799.99", "799.99", snapshotdomain.StateOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(
				decimal.RequireFromString(tc.accumulated),
				decimal.RequireFromString(tc.projected),
				cfg,
			)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRollFoldMatchesSequentialAddition(t *testing.T) {
	cfg := testConfig()
	fraction := decimal.RequireFromString("1")

	deltas := []string{"100", "250.50", "0", "99.50"}
	acc := decimal.Zero
	var projected decimal.Decimal
	var state snapshotdomain.State
	for _, d := range deltas {
		acc, projected, state = Roll(acc, decimal.RequireFromString(d), fraction, cfg)
	}

	assert.True(t, acc.Equal(decimal.RequireFromString("450")), "got %s", acc)
	assert.True(t, projected.Equal(acc))
	assert.Equal(t, snapshotdomain.StateOK, state)
}

func TestRollFloorsNegativeFoldAtZero(t *testing.T) {
	cfg := testConfig()
	acc, projected, state := Roll(
		decimal.NewFromInt(50),
		decimal.NewFromInt(-80),
		decimal.RequireFromString("1"),
		cfg,
	)
	assert.True(t, acc.IsZero(), "got %s", acc)
	assert.True(t, projected.IsZero())
	assert.Equal(t, snapshotdomain.StateOK, state)
}
