package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pilot/internal/config"
	"pilot/internal/types"
)

// keyPrefix namespaces pilot entries inside a shared Redis instance.
const keyPrefix = "pilot:step:"

// Redis is a networked backend for sharing memoized decisions across
// agent installations. Per-key SET/DEL are atomic, which is all the
// contract requires.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the configured Redis instance and verifies the
// connection with a ping.
func NewRedis(cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	return &Redis{client: client}, nil
}

// Get returns the instruction for key, or ErrMiss.
func (r *Redis) Get(ctx context.Context, key string) (types.Instruction, error) {
	raw, err := r.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return types.Instruction{}, ErrMiss
	}
	if err != nil {
		return types.Instruction{}, fmt.Errorf("redis get: %w", err)
	}
	var in types.Instruction
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return types.Instruction{}, fmt.Errorf("decode cached instruction: %w", err)
	}
	return in, nil
}

// Put stores the instruction under key with no expiry; invalidation is
// explicit, driven by the repair loop.
func (r *Redis) Put(ctx context.Context, key string, in types.Instruction) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode instruction: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

// Invalidate removes key; DEL on a missing key is already a no-op.
func (r *Redis) Invalidate(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

// Count reports the number of pilot entries.
func (r *Redis) Count(ctx context.Context) (int, error) {
	var n int
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis count: %w", err)
	}
	return n, nil
}

// Clear removes every pilot entry, leaving other keyspaces untouched.
func (r *Redis) Clear(ctx context.Context) (int, error) {
	var removed int
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("redis clear: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan: %w", err)
	}
	return removed, nil
}

// Close closes the client connection pool.
func (r *Redis) Close() error { return r.client.Close() }
