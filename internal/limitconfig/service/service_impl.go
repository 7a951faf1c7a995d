package service

import (
	"context"
	"errors"
	"sync"
	"time"

	auditdomain "github.com/fiscalia/limits/internal/audit/domain"
	"github.com/fiscalia/limits/internal/clock"
	"github.com/fiscalia/limits/internal/config"
	"github.com/fiscalia/limits/internal/limitconfig/domain"
	"github.com/fiscalia/limits/internal/limiterr"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Config  config.Config
	Clock   clock.Clock
	Repo    domain.Repository
	Emitter auditdomain.Emitter
}

type Service struct {
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	emitter auditdomain.Emitter

	cacheTTL time.Duration
	mu       sync.RWMutex
	cache    map[int]cacheEntry
}

type cacheEntry struct {
	cfg       domain.LimitConfig
	expiresAt time.Time
}

func NewService(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("limitconfig.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		emitter:  p.Emitter,
		cacheTTL: p.Config.ConfigCacheTTL,
		cache:    make(map[int]cacheEntry),
	}
}

// Get serves from a small in-process cache because the config is consulted
// on every accumulation event. A missing row is not cached; misconfigured
// years should recover immediately once the row is created.
func (s *Service) Get(ctx context.Context, year int) (domain.LimitConfig, error) {
	now := s.clock.Now()

	s.mu.RLock()
	entry, ok := s.cache[year]
	s.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.cfg, nil
	}

	cfg, err := s.repo.Get(ctx, year)
	if err != nil {
		return domain.LimitConfig{}, err
	}

	s.mu.Lock()
	s.cache[year] = cacheEntry{cfg: cfg, expiresAt: now.Add(s.cacheTTL)}
	s.mu.Unlock()
	return cfg, nil
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertRequest) (domain.LimitConfig, error) {
	cfg := domain.LimitConfig{
		Year:              req.Year,
		AnnualLimit:       req.AnnualLimit,
		WarnThreshold:     domain.DefaultWarnThreshold,
		CriticalThreshold: domain.DefaultCriticalThreshold,
	}
	if req.WarnThreshold != nil {
		cfg.WarnThreshold = *req.WarnThreshold
	}
	if req.CriticalThreshold != nil {
		cfg.CriticalThreshold = *req.CriticalThreshold
	}

	if err := cfg.Validate(); err != nil {
		return domain.LimitConfig{}, err
	}

	prev, err := s.repo.Get(ctx, req.Year)
	existed := err == nil
	if err != nil && !errors.Is(err, limiterr.ErrNotFound) {
		return domain.LimitConfig{}, err
	}

	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return domain.LimitConfig{}, err
	}

	s.mu.Lock()
	delete(s.cache, req.Year)
	s.mu.Unlock()

	partial := s.emitConfigChanges(ctx, prev, cfg, existed, req.UserID)

	s.log.Info("limit config upserted",
		zap.Int("year", cfg.Year),
		zap.String("annual_limit", cfg.AnnualLimit.String()),
	)
	if partial {
		return cfg, limiterr.New(limiterr.ErrPartialSuccess, "", req.Year, 0)
	}
	return cfg, nil
}

func (s *Service) List(ctx context.Context) ([]domain.LimitConfig, error) {
	return s.repo.List(ctx)
}

// emitConfigChanges reports one record per changed field. Like the snapshot
// paths, emission failures degrade the committed write to a partial success
// instead of a rollback.
func (s *Service) emitConfigChanges(ctx context.Context, prev, next domain.LimitConfig, existed bool, userID *string) bool {
	changes := []struct {
		field    string
		old, new any
		changed  bool
	}{
		{"annual_limit", prev.AnnualLimit, next.AnnualLimit, !existed || !prev.AnnualLimit.Equal(next.AnnualLimit)},
		{"warn_threshold", prev.WarnThreshold, next.WarnThreshold, !existed || !prev.WarnThreshold.Equal(next.WarnThreshold)},
		{"critical_threshold", prev.CriticalThreshold, next.CriticalThreshold, !existed || !prev.CriticalThreshold.Equal(next.CriticalThreshold)},
	}
	partial := false
	for _, c := range changes {
		if !c.changed {
			continue
		}
		var oldValue any
		if existed {
			oldValue = c.old
		}
		change := auditdomain.Change{
			DocID:    next.DocID(),
			UserID:   userID,
			Field:    c.field,
			OldValue: oldValue,
			NewValue: c.new,
			Source:   auditdomain.SourceManual,
		}
		if err := s.emitter.RecordChange(ctx, change); err != nil {
			partial = true
			s.log.Warn("config change not audited",
				zap.Int("year", next.Year),
				zap.String("field", c.field),
				zap.Error(err),
			)
		}
	}
	return partial
}
