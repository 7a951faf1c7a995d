package service

import (
	"context"
	"errors"
	"time"

	accumulatedomain "github.com/fiscalia/limits/internal/accumulate/domain"
	auditdomain "github.com/fiscalia/limits/internal/audit/domain"
	"github.com/fiscalia/limits/internal/clock"
	"github.com/fiscalia/limits/internal/config"
	"github.com/fiscalia/limits/internal/fence"
	"github.com/fiscalia/limits/internal/forecast"
	configdomain "github.com/fiscalia/limits/internal/limitconfig/domain"
	"github.com/fiscalia/limits/internal/limiterr"
	"github.com/fiscalia/limits/internal/metrics"
	snapshotdomain "github.com/fiscalia/limits/internal/snapshot/domain"
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
	Emitter   auditdomain.Emitter
	Fence     fence.Fence
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	clock      clock.Clock
	snapshots  snapshotdomain.Repository
	configs    configdomain.Service
	emitter    auditdomain.Emitter
	fence      fence.Fence
	metrics    *metrics.Metrics
	maxRetries int
}

func NewService(p Params) accumulatedomain.Service {
	maxRetries := p.Config.AccumulateMaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Service{
		log:        p.Log.Named("accumulate.service"),
		clock:      p.Clock,
		snapshots:  p.Snapshots,
		configs:    p.Configs,
		emitter:    p.Emitter,
		fence:      p.Fence,
		metrics:    p.Metrics,
		maxRetries: maxRetries,
	}
}

// Apply runs one read-modify-conditional-write cycle with bounded retry.
// Validation happens before any store is touched; the stored state column
// is always rederived, never read as an input.
func (s *Service) Apply(ctx context.Context, req accumulatedomain.ApplyRequest) (accumulatedomain.ApplyResult, error) {
	key := snapshotdomain.Key{TenantID: req.TenantID, Year: req.Year, Month: req.Month}
	if err := key.Validate(); err != nil {
		return accumulatedomain.ApplyResult{}, err
	}
	if req.Delta.IsNegative() {
		return accumulatedomain.ApplyResult{}, limiterr.Newf(limiterr.ErrInvalidDelta,
			req.TenantID, req.Year, req.Month, "delta must be non-negative")
	}

	cfg, err := s.configs.Get(ctx, req.Year)
	if err != nil {
		if errors.Is(err, limiterr.ErrNotFound) {
			return accumulatedomain.ApplyResult{}, limiterr.New(limiterr.ErrConfigMissing,
				req.TenantID, req.Year, req.Month)
		}
		return accumulatedomain.ApplyResult{}, err
	}

	now := s.clock.Now()
	fraction := forecast.ElapsedFraction(now, req.Year, req.Month)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		held, err := s.fence.Held(ctx, fence.Key(req.TenantID, req.Year, req.Month))
		if err != nil {
			return accumulatedomain.ApplyResult{}, limiterr.FromContext(ctx, err, req.TenantID, req.Year, req.Month)
		}
		if held {
			// A recalculation owns the key; its overwrite will bump
			// updated_at, so treat this round as a lost CAS.
			s.countConflict()
			continue
		}

		prev, err := s.snapshots.GetOrCreate(ctx, key)
		if err != nil {
			return accumulatedomain.ApplyResult{}, err
		}

		accumulated, projected, state := forecast.Roll(prev.Accumulated, req.Delta, fraction, cfg)

		next := prev
		next.Accumulated = accumulated
		next.Forecast = projected
		next.State = state
		next.UpdatedAt = snapshotdomain.WriteTime(s.clock.Now())
		if !next.UpdatedAt.After(prev.UpdatedAt) {
			// Same-microsecond commits must still advance the version.
			next.UpdatedAt = prev.UpdatedAt.Add(time.Microsecond)
		}

		err = s.snapshots.CompareAndSwap(ctx, next, prev.UpdatedAt)
		if err != nil {
			if errors.Is(err, limiterr.ErrConflict) {
				s.countConflict()
				continue
			}
			return accumulatedomain.ApplyResult{}, err
		}

		if s.metrics != nil {
			s.metrics.AccumulationsApplied.Inc()
		}

		partial := s.emitChanges(ctx, prev, next, req.UserID)
		result := accumulatedomain.ApplyResult{Snapshot: next, Partial: partial}
		if partial {
			return result, limiterr.New(limiterr.ErrPartialSuccess, req.TenantID, req.Year, req.Month)
		}
		return result, nil
	}

	if s.metrics != nil {
		s.metrics.RetriesExhausted.Inc()
	}
	return accumulatedomain.ApplyResult{}, limiterr.Newf(limiterr.ErrTooManyConflicts,
		req.TenantID, req.Year, req.Month, "gave up after %d attempts", s.maxRetries)
}

func (s *Service) countConflict() {
	if s.metrics != nil {
		s.metrics.CASConflicts.Inc()
	}
}

// emitChanges reports one AuditFieldChange per changed field. Emission is
// best-effort: the snapshot commit is already durable, so failures degrade
// to a partial success instead of a rollback.
func (s *Service) emitChanges(ctx context.Context, prev, next snapshotdomain.LimitSnapshot, userID *string) bool {
	docID := next.Key().DocID()
	changes := []struct {
		field    string
		old, new any
		changed  bool
	}{
		{"accumulated", prev.Accumulated, next.Accumulated, !prev.Accumulated.Equal(next.Accumulated)},
		{"forecast", prev.Forecast, next.Forecast, !prev.Forecast.Equal(next.Forecast)},
		{"state", prev.State, next.State, prev.State != next.State},
	}

	partial := false
	for _, c := range changes {
		if !c.changed {
			continue
		}
		err := s.emitter.RecordChange(ctx, auditdomain.Change{
			DocID:    docID,
			UserID:   userID,
			Field:    c.field,
			OldValue: c.old,
			NewValue: c.new,
			Source:   auditdomain.SourceAccumulation,
		})
		if err != nil {
			partial = true
			if s.metrics != nil {
				s.metrics.AuditFailures.Inc()
			}
			s.log.Warn("snapshot committed but not audited",
				zap.String("doc_id", docID),
				zap.String("field", c.field),
				zap.Error(err),
			)
		}
	}
	if partial && s.metrics != nil {
		s.metrics.PartialSuccesses.Inc()
	}
	return partial
}
