package repository

import (
	"context"
	"strings"

	"github.com/fiscalia/limits/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(conn *gorm.DB) domain.Repository {
	return &repo{db: conn}
}

func (r *repo) Insert(ctx context.Context, entry *domain.FieldChange) error {
	if entry == nil {
		return nil
	}
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO audit_field_changes (
			id, doc_id, user_id, ts, field, old_value, new_value, source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.DocID,
		entry.UserID,
		entry.TS,
		entry.Field,
		entry.OldValue,
		entry.NewValue,
		entry.Source,
	).Error
}

func (r *repo) List(ctx context.Context, req domain.ListRequest) ([]domain.FieldChange, error) {
	var entries []domain.FieldChange
	stmt := r.db.WithContext(ctx).Model(&domain.FieldChange{})

	if docID := strings.TrimSpace(req.DocID); docID != "" {
		stmt = stmt.Where("doc_id = ?", docID)
	}
	if source := strings.TrimSpace(req.Source); source != "" {
		stmt = stmt.Where("source = ?", source)
	}
	if req.StartAt != nil {
		stmt = stmt.Where("ts >= ?", req.StartAt.UTC())
	}
	if req.EndAt != nil {
		stmt = stmt.Where("ts <= ?", req.EndAt.UTC())
	}

	stmt = stmt.Order("ts desc, id desc")
	if req.Limit > 0 {
		stmt = stmt.Limit(req.Limit)
	}

	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
