package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fiscalia/limits/internal/clock"
	"github.com/fiscalia/limits/internal/limiterr"
	"github.com/fiscalia/limits/internal/snapshot/domain"
	"github.com/fiscalia/limits/pkg/db"
	"gorm.io/gorm"
)

type repo struct {
	db    *gorm.DB
	clock clock.Clock
}

func Provide(conn *gorm.DB, clk clock.Clock) domain.Repository {
	return &repo{db: conn, clock: clk}
}

func (r *repo) Get(ctx context.Context, key domain.Key) (domain.LimitSnapshot, error) {
	var snap domain.LimitSnapshot
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND year = ? AND month = ?", key.TenantID, key.Year, key.Month).
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.LimitSnapshot{}, limiterr.New(limiterr.ErrNotFound, key.TenantID, key.Year, key.Month)
		}
		return domain.LimitSnapshot{}, limiterr.FromContext(ctx, err, key.TenantID, key.Year, key.Month)
	}
	return snap, nil
}

func (r *repo) GetOrCreate(ctx context.Context, key domain.Key) (domain.LimitSnapshot, error) {
	snap, err := r.Get(ctx, key)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, limiterr.ErrNotFound) {
		return domain.LimitSnapshot{}, err
	}

	zero := domain.Zero(key, r.clock.Now())
	createErr := r.db.WithContext(ctx).Create(&zero).Error
	if createErr == nil {
		return zero, nil
	}
	if db.IsDuplicateKeyErr(createErr) {
		// Lost the insert race; the winner's row is the snapshot.
		return r.Get(ctx, key)
	}
	return domain.LimitSnapshot{}, limiterr.FromContext(ctx, createErr, key.TenantID, key.Year, key.Month)
}

func (r *repo) CompareAndSwap(ctx context.Context, snap domain.LimitSnapshot, expectedUpdatedAt time.Time) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE limits_snapshots
		 SET accumulated = ?, forecast = ?, state = ?, updated_at = ?
		 WHERE tenant_id = ? AND year = ? AND month = ? AND updated_at = ?`,
		snap.Accumulated,
		snap.Forecast,
		snap.State,
		snap.UpdatedAt,
		snap.TenantID,
		snap.Year,
		snap.Month,
		expectedUpdatedAt,
	)
	if result.Error != nil {
		return limiterr.FromContext(ctx, result.Error, snap.TenantID, snap.Year, snap.Month)
	}
	if result.RowsAffected == 0 {
		return limiterr.New(limiterr.ErrConflict, snap.TenantID, snap.Year, snap.Month)
	}
	return nil
}

func (r *repo) Overwrite(ctx context.Context, snap domain.LimitSnapshot) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE limits_snapshots
		 SET accumulated = ?, forecast = ?, state = ?, updated_at = ?
		 WHERE tenant_id = ? AND year = ? AND month = ?`,
		snap.Accumulated,
		snap.Forecast,
		snap.State,
		snap.UpdatedAt,
		snap.TenantID,
		snap.Year,
		snap.Month,
	)
	if result.Error != nil {
		return limiterr.FromContext(ctx, result.Error, snap.TenantID, snap.Year, snap.Month)
	}
	if result.RowsAffected == 0 {
		if err := r.db.WithContext(ctx).Create(&snap).Error; err != nil {
			return limiterr.FromContext(ctx, err, snap.TenantID, snap.Year, snap.Month)
		}
	}
	return nil
}

func (r *repo) ListYear(ctx context.Context, tenantID string, year int) ([]domain.LimitSnapshot, error) {
	var snaps []domain.LimitSnapshot
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND year = ?", tenantID, year).
		Order("month asc").
		Find(&snaps).Error
	if err != nil {
		return nil, limiterr.FromContext(ctx, err, tenantID, year, 0)
	}
	return snaps, nil
}

func (r *repo) TenantsForPeriod(ctx context.Context, year, month int) ([]string, error) {
	var tenants []string
	err := r.db.WithContext(ctx).
		Model(&domain.LimitSnapshot{}).
		Where("year = ? AND month = ?", year, month).
		Distinct().
		Pluck("tenant_id", &tenants).Error
	if err != nil {
		return nil, limiterr.FromContext(ctx, err, "", year, month)
	}
	return tenants, nil
}
