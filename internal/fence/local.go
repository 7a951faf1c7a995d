package fence

import (
	"context"
	"sync"
	"time"

	"github.com/fiscalia/limits/internal/clock"
	"github.com/google/uuid"
)

// LocalFence fences within a single process. Correct for single-instance
// deployments; multi-instance deployments need the Redis fence.
type LocalFence struct {
	clock clock.Clock

	mu    sync.Mutex
	locks map[string]localLock
}

type localLock struct {
	token     string
	expiresAt time.Time
}

func NewLocalFence(clk clock.Clock) *LocalFence {
	return &LocalFence{
		clock: clk,
		locks: make(map[string]localLock),
	}
}

func (f *LocalFence) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	now := f.clock.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	if held, ok := f.locks[key]; ok && now.Before(held.expiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	f.locks[key] = localLock{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (f *LocalFence) Release(_ context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if held, ok := f.locks[key]; ok && held.token == token {
		delete(f.locks, key)
	}
	return nil
}

func (f *LocalFence) Held(_ context.Context, key string) (bool, error) {
	now := f.clock.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	held, ok := f.locks[key]
	return ok && now.Before(held.expiresAt), nil
}
