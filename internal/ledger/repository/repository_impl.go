package repository

import (
	"context"

	"github.com/fiscalia/limits/internal/ledger/domain"
	"github.com/fiscalia/limits/internal/limiterr"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

// Provide returns the gorm-backed ledger binding. Deployments with an
// external ledger service swap this out at the fx layer.
func Provide(conn *gorm.DB) domain.Reader {
	return &repo{db: conn}
}

// ProvideAppender exposes the same table for ingestion adapters.
func ProvideAppender(conn *gorm.DB) domain.Appender {
	return &repo{db: conn}
}

func (r *repo) Events(ctx context.Context, tenantID string, year, month int) ([]domain.Event, error) {
	var events []domain.Event
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND year = ? AND month = ?", tenantID, year, month).
		Order("recorded_at asc, id asc").
		Find(&events).Error
	if err != nil {
		return nil, limiterr.Wrap(limiterr.ErrLedgerUnavailable, err, tenantID, year, month)
	}
	return events, nil
}

func (r *repo) Append(ctx context.Context, event domain.Event) error {
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		return limiterr.Wrap(limiterr.ErrLedgerUnavailable, err, event.TenantID, event.Year, event.Month)
	}
	return nil
}
