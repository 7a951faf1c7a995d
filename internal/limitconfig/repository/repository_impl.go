package repository

import (
	"context"
	"errors"

	"github.com/fiscalia/limits/internal/limitconfig/domain"
	"github.com/fiscalia/limits/internal/limiterr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db *gorm.DB
}

func Provide(conn *gorm.DB) domain.Repository {
	return &repo{db: conn}
}

func (r *repo) Get(ctx context.Context, year int) (domain.LimitConfig, error) {
	var cfg domain.LimitConfig
	err := r.db.WithContext(ctx).Where("year = ?", year).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.LimitConfig{}, limiterr.New(limiterr.ErrNotFound, "", year, 0)
		}
		return domain.LimitConfig{}, limiterr.FromContext(ctx, err, "", year, 0)
	}
	return cfg, nil
}

func (r *repo) Upsert(ctx context.Context, cfg domain.LimitConfig) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "year"}},
		DoUpdates: clause.AssignmentColumns([]string{"annual_limit", "warn_threshold", "critical_threshold"}),
	}).Create(&cfg).Error
	if err != nil {
		return limiterr.FromContext(ctx, err, "", cfg.Year, 0)
	}
	return nil
}

func (r *repo) List(ctx context.Context) ([]domain.LimitConfig, error) {
	var configs []domain.LimitConfig
	if err := r.db.WithContext(ctx).Order("year asc").Find(&configs).Error; err != nil {
		return nil, limiterr.FromContext(ctx, err, "", 0, 0)
	}
	return configs, nil
}
