package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"comic-edge/internal/store"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "comic-edge:cache:"

type RedisConfig struct {
	Addr     string
	DB       int
	Password string
	Prefix   string
}

// Redis stores each entry as a JSON record under Prefix+key with a native
// expiry equal to the entry's remaining lifetime, so Redis does its own sweep.
type Redis struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedis(cfg RedisConfig) *Redis {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			DB:       cfg.DB,
			Password: cfg.Password,
		}),
		prefix: prefix,
		now:    time.Now,
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) Load(ctx context.Context, key string) (store.Entry, bool, error) {
	b, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.Entry{}, false, nil
	}
	if err != nil {
		return store.Entry{}, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	var e store.Entry
	if err := json.Unmarshal(b, &e); err != nil {
		// unreadable record: drop it and report a miss
		_ = r.rdb.Del(ctx, r.prefix+key).Err()
		return store.Entry{}, false, nil
	}
	return e, true, nil
}

func (r *Redis) Save(ctx context.Context, e store.Entry) error {
	remaining := e.ExpiresAt().Sub(r.now())
	if remaining <= 0 {
		return r.Remove(ctx, e.Key)
	}

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis encode %q: %w", e.Key, err)
	}
	if err := r.rdb.Set(ctx, r.prefix+e.Key, b, remaining).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", e.Key, err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// RemoveExpired is a no-op: Redis expires keys on its own.
func (r *Redis) RemoveExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
