package service

import (
	"context"
	"errors"
	"time"

	auditdomain "github.com/fiscalia/limits/internal/audit/domain"
	"github.com/fiscalia/limits/internal/clock"
	"github.com/fiscalia/limits/internal/config"
	"github.com/fiscalia/limits/internal/fence"
	"github.com/fiscalia/limits/internal/forecast"
	ledgerdomain "github.com/fiscalia/limits/internal/ledger/domain"
	configdomain "github.com/fiscalia/limits/internal/limitconfig/domain"
	"github.com/fiscalia/limits/internal/limiterr"
	"github.com/fiscalia/limits/internal/metrics"
	recalcdomain "github.com/fiscalia/limits/internal/recalc/domain"
	snapshotdomain "github.com/fiscalia/limits/internal/snapshot/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Config    config.Config
	Clock     clock.Clock
	Snapshots snapshotdomain.Repository
	Configs   configdomain.Service
	Ledger    ledgerdomain.Reader
	Emitter   auditdomain.Emitter
	Fence     fence.Fence
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	clock     clock.Clock
	snapshots snapshotdomain.Repository
	configs   configdomain.Service
	ledger    ledgerdomain.Reader
	emitter   auditdomain.Emitter
	fence     fence.Fence
	metrics   *metrics.Metrics
	lockTTL   time.Duration
}

func NewService(p Params) recalcdomain.Service {
	lockTTL := p.Config.RecalcLockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Service{
		log:       p.Log.Named("recalc.service"),
		clock:     p.Clock,
		snapshots: p.Snapshots,
		configs:   p.Configs,
		ledger:    p.Ledger,
		emitter:   p.Emitter,
		fence:     p.Fence,
		metrics:   p.Metrics,
		lockTTL:   lockTTL,
	}
}

// Recalculate folds the period's ledger through the same projection math
// as incremental accumulation, starting from zero, then overwrites the
// snapshot unconditionally. The per-key fence keeps concurrent
// accumulations from committing against the row mid-rebuild.
func (s *Service) Recalculate(ctx context.Context, req recalcdomain.Request) (recalcdomain.Result, error) {
	key := snapshotdomain.Key{TenantID: req.TenantID, Year: req.Year, Month: req.Month}
	if err := key.Validate(); err != nil {
		return recalcdomain.Result{}, err
	}

	cfg, err := s.configs.Get(ctx, req.Year)
	if err != nil {
		if errors.Is(err, limiterr.ErrNotFound) {
			return recalcdomain.Result{}, limiterr.New(limiterr.ErrConfigMissing, req.TenantID, req.Year, req.Month)
		}
		return recalcdomain.Result{}, err
	}

	fenceKey := fence.Key(req.TenantID, req.Year, req.Month)
	token, ok, err := s.fence.Acquire(ctx, fenceKey, s.lockTTL)
	if err != nil {
		return recalcdomain.Result{}, limiterr.FromContext(ctx, err, req.TenantID, req.Year, req.Month)
	}
	if !ok {
		s.countResult("conflict")
		return recalcdomain.Result{}, limiterr.Newf(limiterr.ErrConflict,
			req.TenantID, req.Year, req.Month, "recalculation already in progress")
	}
	defer func() {
		if releaseErr := s.fence.Release(context.WithoutCancel(ctx), fenceKey, token); releaseErr != nil {
			s.log.Warn("fence release failed", zap.String("key", fenceKey), zap.Error(releaseErr))
		}
	}()

	events, err := s.ledger.Events(ctx, req.TenantID, req.Year, req.Month)
	if err != nil {
		// Existing snapshot stays untouched.
		s.countResult("ledger_unavailable")
		return recalcdomain.Result{}, err
	}

	prev, err := s.snapshots.Get(ctx, key)
	existed := err == nil
	if err != nil && !errors.Is(err, limiterr.ErrNotFound) {
		return recalcdomain.Result{}, err
	}

	now := s.clock.Now()
	fraction := forecast.ElapsedFraction(now, req.Year, req.Month)

	accumulated := decimal.Zero
	projected := decimal.Zero
	state := snapshotdomain.StateOK
	for _, event := range events {
		accumulated, projected, state = forecast.Roll(accumulated, event.Amount, fraction, cfg)
	}

	next := snapshotdomain.LimitSnapshot{
		TenantID:    req.TenantID,
		Year:        req.Year,
		Month:       req.Month,
		Accumulated: accumulated,
		Forecast:    projected,
		State:       state,
		UpdatedAt:   snapshotdomain.WriteTime(now),
	}
	if existed && !next.UpdatedAt.After(prev.UpdatedAt) {
		next.UpdatedAt = prev.UpdatedAt.Add(time.Microsecond)
	}

	if err := s.snapshots.Overwrite(ctx, next); err != nil {
		s.countResult("error")
		return recalcdomain.Result{}, err
	}
	s.countResult("ok")

	partial := s.emitSummary(ctx, prev, next, existed, len(events), req.UserID)

	s.log.Info("snapshot recalculated",
		zap.String("tenant_id", req.TenantID),
		zap.Int("year", req.Year),
		zap.Int("month", req.Month),
		zap.Int("events", len(events)),
		zap.String("accumulated", accumulated.String()),
		zap.String("state", string(state)),
	)

	result := recalcdomain.Result{Snapshot: next, Partial: partial}
	if partial {
		return result, limiterr.New(limiterr.ErrPartialSuccess, req.TenantID, req.Year, req.Month)
	}
	return result, nil
}

func (s *Service) RecalculateYear(ctx context.Context, tenantID string, year int, userID *string) ([]recalcdomain.Result, error) {
	existing, err := s.snapshots.ListYear(ctx, tenantID, year)
	if err != nil {
		return nil, err
	}
	hasSnapshot := make(map[int]bool, len(existing))
	for _, snap := range existing {
		hasSnapshot[snap.Month] = true
	}

	var results []recalcdomain.Result
	for month := 1; month <= 12; month++ {
		if !hasSnapshot[month] {
			events, err := s.ledger.Events(ctx, tenantID, year, month)
			if err != nil {
				return results, err
			}
			if len(events) == 0 {
				continue
			}
		}
		result, err := s.Recalculate(ctx, recalcdomain.Request{
			TenantID: tenantID,
			Year:     year,
			Month:    month,
			UserID:   userID,
		})
		if err != nil && !errors.Is(err, limiterr.ErrPartialSuccess) {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// emitSummary reports the whole rebuild as a single before/after record,
// not one per folded event.
func (s *Service) emitSummary(ctx context.Context, prev, next snapshotdomain.LimitSnapshot, existed bool, eventCount int, userID *string) bool {
	var oldValue any
	if existed {
		oldValue = snapshotSummary(prev, -1)
	}
	err := s.emitter.RecordChange(ctx, auditdomain.Change{
		DocID:    next.Key().DocID(),
		UserID:   userID,
		Field:    "snapshot",
		OldValue: oldValue,
		NewValue: snapshotSummary(next, eventCount),
		Source:   auditdomain.SourceRecalculation,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.AuditFailures.Inc()
			s.metrics.PartialSuccesses.Inc()
		}
		s.log.Warn("recalculation committed but not audited",
			zap.String("doc_id", next.Key().DocID()),
			zap.Error(err),
		)
		return true
	}
	return false
}

func snapshotSummary(snap snapshotdomain.LimitSnapshot, eventCount int) map[string]any {
	summary := map[string]any{
		"accumulated": snap.Accumulated,
		"forecast":    snap.Forecast,
		"state":       snap.State,
	}
	if eventCount >= 0 {
		summary["events"] = eventCount
	}
	return summary
}

func (s *Service) countResult(result string) {
	if s.metrics != nil {
		s.metrics.Recalculations.WithLabelValues(result).Inc()
	}
}
