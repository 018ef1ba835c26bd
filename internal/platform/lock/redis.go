package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

// Only the holder's token may delete the key.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisConfig struct {
	Prefix string
	TTL    time.Duration
	Retry  time.Duration
}

// Redis is a lease lock: SET NX PX with a random token, released by a
// compare-and-delete script. A crashed holder loses the lease after TTL.
type Redis struct {
	log *logger.Logger
	rdb goredis.UniversalClient
	cfg RedisConfig
}

func NewRedis(log *logger.Logger, rdb goredis.UniversalClient, cfg RedisConfig) (*Redis, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "fitprogram:lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Minute
	}
	if cfg.Retry <= 0 {
		cfg.Retry = 50 * time.Millisecond
	}
	return &Redis{log: log.With("service", "RedisLocker"), rdb: rdb, cfg: cfg}, nil
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	k := r.cfg.Prefix + key
	token := uuid.NewString()
	wait := r.cfg.Retry
	for {
		ok, err := r.rdb.SetNX(ctx, k, token, r.cfg.TTL).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("redis setnx %s: %w", k, err)
		}
		if ok {
			break
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-t.C:
		}
		if wait < time.Second {
			wait *= 2
		}
	}
	return func() {
		// Released on a fresh context so a canceled caller still frees the lease.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, r.rdb, []string{k}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
			r.log.Warn("redis lock release failed", "key", k, "error", err)
		}
	}, nil
}
