package scheduler

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/fiscalia/limits/internal/clock"
	"github.com/fiscalia/limits/internal/limiterr"
	recalcdomain "github.com/fiscalia/limits/internal/recalc/domain"
	snapshotdomain "github.com/fiscalia/limits/internal/snapshot/domain"
	snapshotrepo "github.com/fiscalia/limits/internal/snapshot/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recalcStub struct {
	mu       sync.Mutex
	requests []recalcdomain.Request
	failFor  map[string]error
}

func (s *recalcStub) Recalculate(_ context.Context, req recalcdomain.Request) (recalcdomain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if err, ok := s.failFor[req.TenantID]; ok {
		return recalcdomain.Result{}, err
	}
	return recalcdomain.Result{}, nil
}

func (s *recalcStub) RecalculateYear(context.Context, string, int, *string) ([]recalcdomain.Result, error) {
	return nil, nil
}

func (s *recalcStub) recorded() []recalcdomain.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recalcdomain.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func newTestScheduler(t *testing.T, stub *recalcStub) (*Scheduler, snapshotdomain.Repository, *clock.FakeClock) {
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

	clk := clock.NewFakeClock(time.Date(2026, time.April, 16, 0, 0, 0, 0, time.UTC))
	snapshots := snapshotrepo.Provide(conn, clk)

	s, err := New(Params{
		Log:       zap.NewNop(),
		Clock:     clk,
		Snapshots: snapshots,
		RecalcSvc: stub,
	})
	if err != nil {
		t.Fatalf("failed to build scheduler: %v", err)
	}
	return s, snapshots, clk
}

func seed(t *testing.T, snapshots snapshotdomain.Repository, clk *clock.FakeClock, tenant string, month int) {
	t.Helper()
	snap := snapshotdomain.Zero(snapshotdomain.Key{TenantID: tenant, Year: 2026, Month: month}, clk.Now())
	if err := snapshots.Overwrite(context.Background(), snap); err != nil {
		t.Fatalf("failed to seed %s: %v", tenant, err)
	}
}

func TestRunOnceSweepsCurrentPeriod(t *testing.T) {
	stub := &recalcStub{}
	s, snapshots, clk := newTestScheduler(t, stub)

	seed(t, snapshots, clk, "acme", 4)
	seed(t, snapshots, clk, "globex", 4)
	// A past month must not be swept.
	seed(t, snapshots, clk, "stale", 3)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	requests := stub.recorded()
	if len(requests) != 2 {
		t.Fatalf("expected 2 recalculations, got %d", len(requests))
	}
	tenants := []string{requests[0].TenantID, requests[1].TenantID}
	sort.Strings(tenants)
	if tenants[0] != "acme" || tenants[1] != "globex" {
		t.Fatalf("unexpected tenants %v", tenants)
	}
	for _, req := range requests {
		if req.Year != 2026 || req.Month != 4 {
			t.Fatalf("expected current period, got %d-%d", req.Year, req.Month)
		}
	}
}

func TestRunOnceToleratesTenantFailures(t *testing.T) {
	stub := &recalcStub{failFor: map[string]error{
		"broken": limiterr.New(limiterr.ErrConflict, "broken", 2026, 4),
	}}
	s, snapshots, clk := newTestScheduler(t, stub)

	seed(t, snapshots, clk, "acme", 4)
	seed(t, snapshots, clk, "broken", 4)
	seed(t, snapshots, clk, "globex", 4)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("per-tenant failures must not abort the sweep: %v", err)
	}
	if len(stub.recorded()) != 3 {
		t.Fatalf("expected all tenants attempted, got %d", len(stub.recorded()))
	}
}

func TestRunOncePartialSuccessCountsAsRepaired(t *testing.T) {
	stub := &recalcStub{failFor: map[string]error{
		"acme": limiterr.New(limiterr.ErrPartialSuccess, "acme", 2026, 4),
	}}
	s, snapshots, clk := newTestScheduler(t, stub)

	seed(t, snapshots, clk, "acme", 4)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("partial success must not fail the sweep: %v", err)
	}
}

func TestRunOnceEmptyPeriod(t *testing.T) {
	stub := &recalcStub{}
	s, _, _ := newTestScheduler(t, stub)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("empty sweep failed: %v", err)
	}
	if len(stub.recorded()) != 0 {
		t.Fatalf("expected no recalculations, got %d", len(stub.recorded()))
	}
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	if err == nil {
		t.Fatalf("expected error for missing dependencies")
	}
}
