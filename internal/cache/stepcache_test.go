package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pilot/internal/config"
	"pilot/internal/types"
)

func configFor(backend, dir string) config.CacheConfig {
	return config.CacheConfig{
		Backend:    backend,
		FilePath:   filepath.Join(dir, backend+".json"),
		SQLitePath: filepath.Join(dir, backend+".db"),
	}
}

// brokenProvider fails every operation, simulating a dead backend.
type brokenProvider struct{}

func (brokenProvider) Get(context.Context, string) (types.Instruction, error) {
	return types.Instruction{}, errors.New("backend down")
}
func (brokenProvider) Put(context.Context, string, types.Instruction) error {
	return errors.New("backend down")
}
func (brokenProvider) Invalidate(context.Context, string) error {
	return errors.New("backend down")
}
func (brokenProvider) Close() error { return nil }

func TestStepCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	sc := NewStepCache(NewMemory())

	_, key, ok := sc.Lookup(ctx, "click login", "https://example.com", "<button>")
	assert.False(t, ok)
	require.NotEmpty(t, key)

	sc.Store(ctx, key, testInstruction)

	got, key2, ok := sc.Lookup(ctx, "click login", "https://example.com", "<button>")
	assert.True(t, ok)
	assert.Equal(t, key, key2)
	assert.Equal(t, testInstruction, got)
}

func TestStepCacheMissOnDifferentState(t *testing.T) {
	ctx := context.Background()
	sc := NewStepCache(NewMemory())

	_, key, _ := sc.Lookup(ctx, "click login", "https://example.com", "<button>")
	sc.Store(ctx, key, testInstruction)

	_, _, ok := sc.Lookup(ctx, "click login", "https://example.com", "<button disabled>")
	assert.False(t, ok, "a changed DOM must not hit")
}

func TestStepCacheBrokenBackendDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	sc := NewStepCache(brokenProvider{})

	_, key, ok := sc.Lookup(ctx, "click login", "https://example.com", "<button>")
	assert.False(t, ok)
	assert.NotEmpty(t, key, "fingerprinting succeeded, so the key is usable")

	// Store and Invalidate must absorb backend failures.
	sc.Store(ctx, key, testInstruction)
	sc.Invalidate(ctx, []string{key})
}

func TestStepCacheStoreSkipsEmptyKey(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	sc := NewStepCache(mem)

	sc.Store(ctx, "", testInstruction)
	assert.Equal(t, 0, mem.Len())
}

func TestStepCacheInvalidateRemovesKeys(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	sc := NewStepCache(mem)

	_, k1, _ := sc.Lookup(ctx, "step one", "u", "d")
	_, k2, _ := sc.Lookup(ctx, "step two", "u", "d")
	sc.Store(ctx, k1, testInstruction)
	sc.Store(ctx, k2, testInstruction)
	require.Equal(t, 2, mem.Len())

	sc.Invalidate(ctx, []string{k1, k2, ""})
	assert.Equal(t, 0, mem.Len())
}
