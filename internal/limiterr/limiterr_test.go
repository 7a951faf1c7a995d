package limiterr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMatchesKind(t *testing.T) {
	err := New(ErrConflict, "tenant-a", 2025, 3)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict kind, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("conflict should not match not_found")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Wrap(ErrLedgerUnavailable, cause, "tenant-a", 2025, 3)
	if !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("expected ledger_unavailable kind")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to survive wrapping")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		kind error
		want bool
	}{
		{ErrConflict, true},
		{ErrTimeout, true},
		{ErrLedgerUnavailable, true},
		{ErrInvalidDelta, false},
		{ErrInvalidConfig, false},
		{ErrConfigMissing, false},
		{ErrTooManyConflicts, false},
		{ErrNotFound, false},
	}
	for _, tc := range cases {
		if got := Retryable(New(tc.kind, "t", 2025, 1)); got != tc.want {
			t.Fatalf("Retryable(%v) = %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestFromContextDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := FromContext(ctx, fmt.Errorf("query: %w", context.DeadlineExceeded), "t", 2025, 1)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout kind, got %v", err)
	}
	if errors.Is(err, ErrConflict) {
		t.Fatalf("timeout must stay distinct from conflict")
	}
}

func TestErrorStringCarriesContext(t *testing.T) {
	err := New(ErrConfigMissing, "tenant-b", 2026, 7)
	msg := err.Error()
	for _, want := range []string{"config_missing", "tenant-b", "2026", "7"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q missing %q", msg, want)
		}
	}
}

