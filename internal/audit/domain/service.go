package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidField  = errors.New("invalid_field")
	ErrInvalidSource = errors.New("invalid_source")
)

// Change is the capability payload reported for every mutation. Old and new
// values are structured values, marshaled by the sink.
type Change struct {
	DocID    string
	UserID   *string
	Field    string
	OldValue any
	NewValue any
	Source   string
}

// Emitter is the audit side-channel consumed by the mutating components.
// It is best-effort: a failed emission never rolls back the mutation it
// describes, but the failure is surfaced to the caller.
type Emitter interface {
	RecordChange(ctx context.Context, change Change) error
}

type ListRequest struct {
	DocID   string
	Source  string
	StartAt *time.Time
	EndAt   *time.Time
	Limit   int
}

type Service interface {
	Emitter
	List(ctx context.Context, req ListRequest) ([]FieldChange, error)
}

type Repository interface {
	Insert(ctx context.Context, entry *FieldChange) error
	List(ctx context.Context, req ListRequest) ([]FieldChange, error)
}
