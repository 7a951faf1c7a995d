package fence

import (
	"github.com/fiscalia/limits/internal/clock"
	"github.com/fiscalia/limits/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func provide(cfg config.Config, clk clock.Clock, log *zap.Logger) Fence {
	if cfg.RedisAddr == "" {
		log.Named("fence").Info("redis not configured, using in-process fence")
		return NewLocalFence(clk)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	return NewRedisFence(client)
}

var Module = fx.Module("fence",
	fx.Provide(provide),
)
