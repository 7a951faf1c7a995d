package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	accumulatedomain "github.com/fiscalia/limits/internal/accumulate/domain"
	auditdomain "github.com/fiscalia/limits/internal/audit/domain"
	"github.com/fiscalia/limits/internal/clock"
	"github.com/fiscalia/limits/internal/config"
	"github.com/fiscalia/limits/internal/fence"
	configdomain "github.com/fiscalia/limits/internal/limitconfig/domain"
	"github.com/fiscalia/limits/internal/limiterr"
	snapshotdomain "github.com/fiscalia/limits/internal/snapshot/domain"
	snapshotrepo "github.com/fiscalia/limits/internal/snapshot/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// -- Stubs --

type configStub struct {
	cfg     configdomain.LimitConfig
	missing bool
}

func (s *configStub) Get(_ context.Context, year int) (configdomain.LimitConfig, error) {
	if s.missing {
		return configdomain.LimitConfig{}, limiterr.New(limiterr.ErrNotFound, "", year, 0)
	}
	return s.cfg, nil
}

func (s *configStub) Upsert(context.Context, configdomain.UpsertRequest) (configdomain.LimitConfig, error) {
	return configdomain.LimitConfig{}, nil
}

func (s *configStub) List(context.Context) ([]configdomain.LimitConfig, error) { return nil, nil }

type emitterStub struct {
	mu      sync.Mutex
	changes []auditdomain.Change
	fail    error
}

func (e *emitterStub) RecordChange(_ context.Context, change auditdomain.Change) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return e.fail
	}
	e.changes = append(e.changes, change)
	return nil
}

func (e *emitterStub) recorded() []auditdomain.Change {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]auditdomain.Change, len(e.changes))
	copy(out, e.changes)
	return out
}

// -- Harness --

type harness struct {
	svc       accumulatedomain.Service
	snapshots snapshotdomain.Repository
	configs   *configStub
	emitter   *emitterStub
	fence     *fence.LocalFence
	clk       *clock.FakeClock
}

func newHarness(t *testing.T, now time.Time, maxRetries int) *harness {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(&snapshotdomain.LimitSnapshot{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clk := clock.NewFakeClock(now)
	configs := &configStub{cfg: configdomain.LimitConfig{
		Year:              now.Year(),
		AnnualLimit:       decimal.NewFromInt(1000),
		WarnThreshold:     decimal.NewFromFloat(0.8),
		CriticalThreshold: decimal.NewFromFloat(1.0),
	}}
	emitter := &emitterStub{}
	localFence := fence.NewLocalFence(clk)
	snapshots := snapshotrepo.Provide(conn, clk)

	svc := NewService(Params{
		Log:       zap.NewNop(),
		Config:    config.Config{AccumulateMaxRetries: maxRetries},
		Clock:     clk,
		Snapshots: snapshots,
		Configs:   configs,
		Emitter:   emitter,
		Fence:     localFence,
	})

	return &harness{
		svc:       svc,
		snapshots: snapshots,
		configs:   configs,
		emitter:   emitter,
		fence:     localFence,
		clk:       clk,
	}
}

// midApril is halfway through a 30-day month: the linear forecast doubles
// the accumulated value.
var midApril = time.Date(2026, time.April, 16, 0, 0, 0, 0, time.UTC)

func apply(t *testing.T, h *harness, tenant string, month int, delta float64) accumulatedomain.ApplyResult {
	t.Helper()
	result, err := h.svc.Apply(context.Background(), accumulatedomain.ApplyRequest{
		TenantID: tenant,
		Year:     2026,
		Month:    month,
		Delta:    decimal.NewFromFloat(delta),
	})
	if err != nil {
		t.Fatalf("failed to apply delta %v: %v", delta, err)
	}
	return result
}

// -- Tests --

func TestApplySequentialDeltasSum(t *testing.T) {
	h := newHarness(t, midApril, 5)

	apply(t, h, "acme", 4, 100)
	apply(t, h, "acme", 4, 200)
	result := apply(t, h, "acme", 4, 50)

	if !result.Snapshot.Accumulated.Equal(decimal.NewFromInt(350)) {
		t.Fatalf("expected 350 accumulated, got %s", result.Snapshot.Accumulated)
	}
	if !result.Snapshot.Forecast.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("expected 700 forecast, got %s", result.Snapshot.Forecast)
	}
	if result.Snapshot.State != snapshotdomain.StateOK {
		t.Fatalf("expected OK, got %s", result.Snapshot.State)
	}

	stored, err := h.snapshots.Get(context.Background(), snapshotdomain.Key{TenantID: "acme", Year: 2026, Month: 4})
	if err != nil {
		t.Fatalf("failed to read back: %v", err)
	}
	if !stored.Accumulated.Equal(result.Snapshot.Accumulated) {
		t.Fatalf("stored %s, returned %s", stored.Accumulated, result.Snapshot.Accumulated)
	}
}

func TestApplyRejectsNegativeDelta(t *testing.T) {
	h := newHarness(t, midApril, 5)

	_, err := h.svc.Apply(context.Background(), accumulatedomain.ApplyRequest{
		TenantID: "acme",
		Year:     2026,
		Month:    4,
		Delta:    decimal.NewFromInt(-10),
	})
	if !errors.Is(err, limiterr.ErrInvalidDelta) {
		t.Fatalf("expected ErrInvalidDelta, got %v", err)
	}

	// Rejection happens before any row is created.
	_, err = h.snapshots.Get(context.Background(), snapshotdomain.Key{TenantID: "acme", Year: 2026, Month: 4})
	if !errors.Is(err, limiterr.ErrNotFound) {
		t.Fatalf("expected untouched store, got %v", err)
	}
	if len(h.emitter.recorded()) != 0 {
		t.Fatalf("expected no audit records, got %d", len(h.emitter.recorded()))
	}
}

func TestApplyConfigMissing(t *testing.T) {
	h := newHarness(t, midApril, 5)
	h.configs.missing = true

	_, err := h.svc.Apply(context.Background(), accumulatedomain.ApplyRequest{
		TenantID: "acme",
		Year:     2026,
		Month:    4,
		Delta:    decimal.NewFromInt(10),
	})
	if !errors.Is(err, limiterr.ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}

	_, err = h.snapshots.Get(context.Background(), snapshotdomain.Key{TenantID: "acme", Year: 2026, Month: 4})
	if !errors.Is(err, limiterr.ErrNotFound) {
		t.Fatalf("expected untouched store, got %v", err)
	}
}

func TestApplyStateTransitions(t *testing.T) {
	h := newHarness(t, midApril, 5)

	result := apply(t, h, "acme", 4, 400)
	if result.Snapshot.State != snapshotdomain.StateWarning {
		t.Fatalf("forecast 800 of 1000 should warn, got %s", result.Snapshot.State)
	}

	result = apply(t, h, "acme", 4, 100)
	if result.Snapshot.State != snapshotdomain.StateCritical {
		t.Fatalf("forecast 1000 of 1000 should be critical, got %s", result.Snapshot.State)
	}

	result = apply(t, h, "acme", 4, 500)
	if result.Snapshot.State != snapshotdomain.StateExceeded {
		t.Fatalf("accumulated 1000 of 1000 should be exceeded, got %s", result.Snapshot.State)
	}
	if !result.Snapshot.Forecast.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("expected forecast 2000, got %s", result.Snapshot.Forecast)
	}
}

func TestApplyCompletedMonthForecastEqualsActual(t *testing.T) {
	// Browsing April from May: elapsed fraction clamps to 1.
	h := newHarness(t, time.Date(2026, time.May, 2, 0, 0, 0, 0, time.UTC), 5)

	result := apply(t, h, "acme", 4, 850)
	if !result.Snapshot.Forecast.Equal(decimal.NewFromInt(850)) {
		t.Fatalf("expected forecast 850, got %s", result.Snapshot.Forecast)
	}
	if result.Snapshot.State != snapshotdomain.StateWarning {
		t.Fatalf("850 of 1000 at warn 0.8 should warn, got %s", result.Snapshot.State)
	}

	result = apply(t, h, "globex", 4, 799.99)
	if result.Snapshot.State != snapshotdomain.StateOK {
		t.Fatalf("799.99 should stay OK, got %s", result.Snapshot.State)
	}
}

func TestApplyConcurrentDeltasSum(t *testing.T) {
	h := newHarness(t, midApril, 100)

	const workers = 8
	const perWorker = 5
	delta := decimal.NewFromInt(10)

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := h.svc.Apply(context.Background(), accumulatedomain.ApplyRequest{
					TenantID: "acme",
					Year:     2026,
					Month:    4,
					Delta:    delta,
				})
				if err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("apply failed under contention: %v", err)
	}

	stored, err := h.snapshots.Get(context.Background(), snapshotdomain.Key{TenantID: "acme", Year: 2026, Month: 4})
	if err != nil {
		t.Fatalf("failed to read back: %v", err)
	}
	want := decimal.NewFromInt(workers * perWorker * 10)
	if !stored.Accumulated.Equal(want) {
		t.Fatalf("expected %s accumulated, got %s", want, stored.Accumulated)
	}
}

func TestApplyPartialSuccessOnAuditFailure(t *testing.T) {
	h := newHarness(t, midApril, 5)
	h.emitter.fail = errors.New("audit sink down")

	result, err := h.svc.Apply(context.Background(), accumulatedomain.ApplyRequest{
		TenantID: "acme",
		Year:     2026,
		Month:    4,
		Delta:    decimal.NewFromInt(100),
	})
	if !errors.Is(err, limiterr.ErrPartialSuccess) {
		t.Fatalf("expected ErrPartialSuccess, got %v", err)
	}
	if !result.Partial {
		t.Fatalf("expected partial result")
	}

	// The mutation itself stays committed.
	stored, getErr := h.snapshots.Get(context.Background(), snapshotdomain.Key{TenantID: "acme", Year: 2026, Month: 4})
	if getErr != nil {
		t.Fatalf("failed to read back: %v", getErr)
	}
	if !stored.Accumulated.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected committed 100, got %s", stored.Accumulated)
	}
}

func TestApplyBlockedByRecalculationFence(t *testing.T) {
	h := newHarness(t, midApril, 3)

	_, ok, err := h.fence.Acquire(context.Background(), fence.Key("acme", 2026, 4), time.Minute)
	if err != nil || !ok {
		t.Fatalf("failed to acquire fence: ok=%v err=%v", ok, err)
	}

	_, err = h.svc.Apply(context.Background(), accumulatedomain.ApplyRequest{
		TenantID: "acme",
		Year:     2026,
		Month:    4,
		Delta:    decimal.NewFromInt(10),
	})
	if !errors.Is(err, limiterr.ErrTooManyConflicts) {
		t.Fatalf("expected ErrTooManyConflicts, got %v", err)
	}
}

func TestApplyAuditsChangedFieldsOnly(t *testing.T) {
	h := newHarness(t, midApril, 5)

	apply(t, h, "acme", 4, 100)

	changes := h.emitter.recorded()
	if len(changes) != 2 {
		t.Fatalf("expected accumulated and forecast changes, got %d", len(changes))
	}
	fields := map[string]bool{}
	for _, c := range changes {
		fields[c.Field] = true
		if c.Source != auditdomain.SourceAccumulation {
			t.Fatalf("expected accumulation source, got %s", c.Source)
		}
		if c.DocID != "limits_snapshots/acme/2026/04" {
			t.Fatalf("unexpected doc id %s", c.DocID)
		}
	}
	if !fields["accumulated"] || !fields["forecast"] {
		t.Fatalf("expected accumulated and forecast, got %v", fields)
	}
	if fields["state"] {
		t.Fatalf("state did not change and must not be audited")
	}
}
