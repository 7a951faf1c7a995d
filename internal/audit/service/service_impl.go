package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/fiscalia/limits/internal/audit/domain"
	"github.com/fiscalia/limits/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) RecordChange(ctx context.Context, change auditdomain.Change) error {
	field := strings.TrimSpace(change.Field)
	if field == "" {
		return auditdomain.ErrInvalidField
	}
	source := strings.TrimSpace(change.Source)
	if source == "" {
		return auditdomain.ErrInvalidSource
	}

	oldValue, err := marshalValue(change.OldValue)
	if err != nil {
		return err
	}
	newValue, err := marshalValue(change.NewValue)
	if err != nil {
		return err
	}

	entry := auditdomain.FieldChange{
		ID:       s.genID.Generate(),
		DocID:    change.DocID,
		UserID:   change.UserID,
		TS:       s.clock.Now(),
		Field:    field,
		OldValue: oldValue,
		NewValue: newValue,
		Source:   source,
	}

	if err := s.repo.Insert(ctx, &entry); err != nil {
		s.log.Warn("failed to write audit record",
			zap.String("doc_id", change.DocID),
			zap.String("field", field),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) ([]auditdomain.FieldChange, error) {
	return s.repo.List(ctx, req)
}

func marshalValue(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
