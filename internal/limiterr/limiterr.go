// Package limiterr defines the error taxonomy shared by the limits engine.
// Every error carries its kind plus the tenant/period it relates to, so
// callers can match with errors.Is instead of parsing strings.
package limiterr

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig     = errors.New("invalid_config")
	ErrInvalidDelta      = errors.New("invalid_delta")
	ErrConfigMissing     = errors.New("config_missing")
	ErrConflict          = errors.New("conflict")
	ErrTooManyConflicts  = errors.New("too_many_conflicts")
	ErrLedgerUnavailable = errors.New("ledger_unavailable")
	ErrTimeout           = errors.New("timeout")
	ErrPartialSuccess    = errors.New("partial_success")
	ErrNotFound          = errors.New("not_found")
)

// Error attaches tenant/period context to one of the kind sentinels above.
type Error struct {
	Kind     error
	TenantID string
	Year     int
	Month    int
	Detail   string
	Cause    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.TenantID != "" {
		msg = fmt.Sprintf("%s: tenant=%s year=%d month=%d", msg, e.TenantID, e.Year, e.Month)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// New builds a contextualized error of the given kind.
func New(kind error, tenantID string, year, month int) *Error {
	return &Error{Kind: kind, TenantID: tenantID, Year: year, Month: month}
}

// Newf is New with a free-form detail message.
func Newf(kind error, tenantID string, year, month int, format string, args ...any) *Error {
	return &Error{Kind: kind, TenantID: tenantID, Year: year, Month: month, Detail: fmt.Sprintf(format, args...)}
}

// Wrap preserves an underlying cause behind a kind.
func Wrap(kind error, cause error, tenantID string, year, month int) *Error {
	return &Error{Kind: kind, TenantID: tenantID, Year: year, Month: month, Cause: cause}
}

// Retryable reports whether the caller may retry the failed operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrLedgerUnavailable)
}

// FromContext maps a context cancellation observed during a store or
// emitter call onto the Timeout kind, keeping it distinct from Conflict.
func FromContext(ctx context.Context, err error, tenantID string, year, month int) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return Wrap(ErrTimeout, err, tenantID, year, month)
	}
	return err
}
