package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pilot/internal/logging"
	"pilot/internal/types"
)

// File is an in-process map with a durable JSON snapshot. The whole
// mapping document is loaded at startup and rewritten on every mutation;
// acceptable for moderate cache sizes.
type File struct {
	mu      sync.Mutex
	path    string
	entries map[string]types.Instruction
}

// NewFile loads (or creates) a file-backed cache at path.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("file cache path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	f := &File{path: path, entries: make(map[string]types.Instruction)}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read cache file: %w", err)
		}
		return f, nil
	}
	if err := json.Unmarshal(data, &f.entries); err != nil {
		// A corrupt snapshot should not brick the agent; start fresh.
		logging.CacheWarn("cache file %s unreadable, starting empty: %v", path, err)
		f.entries = make(map[string]types.Instruction)
		return f, nil
	}
	logging.Cache("loaded %d entries from %s", len(f.entries), path)
	return f, nil
}

// Get returns the instruction for key, or ErrMiss.
func (f *File) Get(_ context.Context, key string) (types.Instruction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.entries[key]
	if !ok {
		return types.Instruction{}, ErrMiss
	}
	return in, nil
}

// Put stores the instruction and flushes the snapshot immediately so a
// crash cannot lose paid-for oracle decisions.
func (f *File) Put(_ context.Context, key string, in types.Instruction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = in
	return f.saveLocked()
}

// Invalidate removes key and flushes; missing keys are a no-op.
func (f *File) Invalidate(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[key]; !ok {
		return nil
	}
	delete(f.entries, key)
	return f.saveLocked()
}

// Count reports the number of entries.
func (f *File) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries), nil
}

// Clear drops every entry and flushes the empty snapshot.
func (f *File) Clear(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.entries)
	f.entries = make(map[string]types.Instruction)
	return n, f.saveLocked()
}

// Close flushes the snapshot.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveLocked()
}

// saveLocked rewrites the snapshot atomically. Caller holds f.mu.
func (f *File) saveLocked() error {
	data, err := json.MarshalIndent(f.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache snapshot: %w", err)
	}
	return os.Rename(tmp, f.path)
}
