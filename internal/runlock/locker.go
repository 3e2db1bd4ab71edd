package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/septivank/water-metering-sync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// ErrNotAcquired is returned when another run holds the lock
var ErrNotAcquired = errors.New("lock held by another run")

// Locker is a Redis SET NX lock keyed by job name. A nil *Locker grants every
// lock, which is how locking is disabled when REDIS_ADDR is empty.
type Locker struct {
	client *redis.Client
	script *redis.Script
	prefix string
	ttl    time.Duration
}

// NewLocker wraps a Redis client. A nil client yields a nil Locker.
func NewLocker(client *redis.Client, prefix string, ttl time.Duration) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		prefix: prefix,
		ttl:    ttl,
	}
}

// NewClient creates the Redis client from config, or returns nil when no
// address is configured. The client is closed on application stop.
func NewClient(lc fx.Lifecycle, logger *zap.Logger, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		logger.Info("REDIS_ADDR not set, run locking disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("[REDIS CONNECTION FAILED] cannot reach %s: %w", cfg.Addr, err)
			}
			logger.Info("redis connection established successfully")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client
}

// Acquire takes the lock for job and returns its release function
func (l *Locker) Acquire(ctx context.Context, job string) (func(context.Context) error, error) {
	if l == nil {
		return func(context.Context) error { return nil }, nil
	}
	if job == "" {
		return nil, errors.New("lock key is empty")
	}
	if l.ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}

	key := l.prefix + job
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return func(ctx context.Context) error {
		return l.script.Run(ctx, l.client, []string{key}, token).Err()
	}, nil
}
