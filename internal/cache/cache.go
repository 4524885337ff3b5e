// Package cache memoizes oracle decisions keyed by fingerprints of
// (step description, URL, DOM snapshot). Backends are interchangeable
// and shared across concurrent test-case workers.
package cache

import (
	"context"
	"errors"
	"fmt"

	"pilot/internal/config"
	"pilot/internal/types"
)

// ErrMiss is returned by Get when the key has no entry.
var ErrMiss = errors.New("cache miss")

// Provider is the pluggable backend contract. Implementations must be
// safe for concurrent Get/Put/Invalidate from multiple workers; a
// read-modify-write race on Put resolves last-write-wins. Invalidate on
// a missing key is a no-op.
type Provider interface {
	Get(ctx context.Context, key string) (types.Instruction, error)
	Put(ctx context.Context, key string, in types.Instruction) error
	Invalidate(ctx context.Context, key string) error
	Close() error
}

// Counter is implemented by backends that can report their entry count.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Count reports the number of entries in the backend.
func Count(ctx context.Context, p Provider) (int, error) {
	c, ok := p.(Counter)
	if !ok {
		return 0, fmt.Errorf("backend %T does not support counting", p)
	}
	return c.Count(ctx)
}

// Clearer is implemented by backends that can drop every entry at once.
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}

// Clear empties the backend and reports how many entries were removed.
func Clear(ctx context.Context, p Provider) (int, error) {
	c, ok := p.(Clearer)
	if !ok {
		return 0, fmt.Errorf("backend %T does not support clearing", p)
	}
	return c.Clear(ctx)
}

// Open constructs the backend selected by configuration.
func Open(cfg config.CacheConfig) (Provider, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(cfg.FilePath)
	case "sqlite":
		return NewSQLite(cfg.SQLitePath)
	case "redis":
		return NewRedis(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
