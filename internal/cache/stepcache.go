package cache

import (
	"context"
	"errors"

	"pilot/internal/fingerprint"
	"pilot/internal/logging"
	"pilot/internal/types"
)

// StepCache combines fingerprinting with a Provider and downgrades every
// infrastructure failure to a miss: a broken backend or hashing error must
// cost an extra oracle call, never the run.
type StepCache struct {
	provider Provider
}

// NewStepCache wraps a backend provider.
func NewStepCache(p Provider) *StepCache {
	return &StepCache{provider: p}
}

// Lookup fingerprints the triple and queries the backend. The DOM is
// normalized first so cosmetic whitespace churn does not defeat the
// cache. The returned key is valid whenever non-empty; an empty key
// means fingerprinting itself failed and neither Store nor Invalidate
// can target this step.
func (c *StepCache) Lookup(ctx context.Context, description, url, dom string) (types.Instruction, string, bool) {
	key, err := fingerprint.Key(description, url, fingerprint.Normalize(dom))
	if err != nil {
		logging.CacheWarn("fingerprint failed for step %q: %v", description, err)
		return types.Instruction{}, "", false
	}

	in, err := c.provider.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			logging.CacheWarn("backend get failed, treating as miss: %v", err)
		} else {
			logging.CacheDebug("MISS %s (%s)", key[:12], description)
		}
		return types.Instruction{}, key, false
	}
	logging.CacheDebug("HIT %s (%s)", key[:12], description)
	return in, key, true
}

// Store memoizes an oracle decision under a key produced by Lookup.
// Backend failures are absorbed; the decision is simply not memoized.
func (c *StepCache) Store(ctx context.Context, key string, in types.Instruction) {
	if key == "" {
		return
	}
	if err := c.provider.Put(ctx, key, in); err != nil {
		logging.CacheWarn("backend put failed, decision not memoized: %v", err)
	}
}

// Invalidate removes every given key. Used after an exhausted repair to
// stop unreliable decisions from poisoning future runs. Failures are
// logged, not propagated.
func (c *StepCache) Invalidate(ctx context.Context, keys []string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := c.provider.Invalidate(ctx, key); err != nil {
			logging.CacheWarn("invalidate %s failed: %v", key[:12], err)
			continue
		}
		logging.Cache("invalidated %s", key[:12])
	}
}

// Close flushes and releases the backend.
func (c *StepCache) Close() error { return c.provider.Close() }
