package ratelimit

import (
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/storefront/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the optional redis-backed guards. Every consumer treats a
// nil Locker, TokenBucket or CheckoutLimiter as "redis not configured".
var Module = fx.Module("rate.limit",
	fx.Provide(newRedisClient),
	fx.Provide(NewLocker),
	fx.Provide(NewTokenBucket),
	fx.Provide(NewCheckoutLimiter),
)

func newRedisClient(cfg config.Config, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Named("rate.limit").Info("redis not configured, fast-path guards disabled")
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
