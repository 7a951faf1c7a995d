package fence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisFence fences across processes using SetNX with a token and a Lua
// compare-and-delete release.
type RedisFence struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisFence(client *redis.Client) *RedisFence {
	if client == nil {
		return nil
	}
	return &RedisFence{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (f *RedisFence) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if f == nil || f.client == nil {
		return "", false, errors.New("fence client not configured")
	}
	if key == "" {
		return "", false, errors.New("fence key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("fence ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := f.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (f *RedisFence) Release(ctx context.Context, key, token string) error {
	if f == nil || f.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return f.script.Run(ctx, f.client, []string{key}, token).Err()
}

func (f *RedisFence) Held(ctx context.Context, key string) (bool, error) {
	if f == nil || f.client == nil {
		return false, nil
	}
	n, err := f.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
