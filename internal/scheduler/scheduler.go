// Package scheduler runs the periodic drift-repair sweep: every tenant
// holding a snapshot for the current period is recalculated from the
// ledger, correcting snapshots that diverged through lost events or bugs.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/fiscalia/limits/internal/clock"
	"github.com/fiscalia/limits/internal/limiterr"
	recalcdomain "github.com/fiscalia/limits/internal/recalc/domain"
	snapshotdomain "github.com/fiscalia/limits/internal/snapshot/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Snapshots snapshotdomain.Repository
	RecalcSvc recalcdomain.Service
	Config    Config `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	clock     clock.Clock
	snapshots snapshotdomain.Repository
	recalcsvc recalcdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Snapshots == nil || p.RecalcSvc == nil {
		return nil, errors.New("scheduler dependencies missing")
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler"),
		cfg:       p.Config.withDefaults(),
		clock:     p.Clock,
		snapshots: p.Snapshots,
		recalcsvc: p.RecalcSvc,
	}, nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sweep run failed", zap.Error(err))
		}
	}
}

// RunOnce sweeps the current period. Per-tenant failures are logged and
// counted but never abort the rest of the sweep.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	now := s.clock.Now()
	year, month := now.Year(), int(now.Month())

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.SweepTimeout)
	defer cancel()

	tenants, err := s.snapshots.TenantsForPeriod(runCtx, year, month)
	if err != nil {
		return err
	}

	repaired, failed := 0, 0
	for _, tenantID := range tenants {
		_, err := s.recalcsvc.Recalculate(runCtx, recalcdomain.Request{
			TenantID: tenantID,
			Year:     year,
			Month:    month,
		})
		if err != nil && !errors.Is(err, limiterr.ErrPartialSuccess) {
			failed++
			s.log.Warn("sweep recalculation failed",
				zap.String("tenant_id", tenantID),
				zap.Int("year", year),
				zap.Int("month", month),
				zap.Error(err),
			)
			continue
		}
		repaired++
	}

	s.log.Info("sweep completed",
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Int("tenants", len(tenants)),
		zap.Int("repaired", repaired),
		zap.Int("failed", failed),
	)
	return nil
}
