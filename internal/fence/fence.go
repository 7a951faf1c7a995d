// Package fence serializes recalculation against concurrent accumulation
// for one (tenant, year, month) key. Distinct keys never contend.
package fence

import (
	"context"
	"fmt"
	"time"
)

// Key builds the fence key for one snapshot period.
func Key(tenantID string, year, month int) string {
	return fmt.Sprintf("limits:recalc:%s:%d:%d", tenantID, year, month)
}

// Fence is an advisory per-key lock with a safety TTL. Tokens guard against
// releasing a lock that has expired and been re-acquired by someone else.
type Fence interface {
	// Acquire takes the lock. ok=false means another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// Release frees the lock if token still owns it.
	Release(ctx context.Context, key, token string) error

	// Held reports whether any holder currently owns the key.
	Held(ctx context.Context, key string) (bool, error)
}
