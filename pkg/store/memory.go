package store

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/matzehuels/stacksolve/pkg/io"
)

// MemoryBackend keeps records in memory. It backs the HTTP server when no
// database is configured, and tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]io.Record
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]io.Record)}
}

func (b *MemoryBackend) Put(ctx context.Context, records []io.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range records {
		b.records[r.Hash] = r
	}
	return nil
}

func (b *MemoryBackend) Match(ctx context.Context, prefix string) ([]io.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []io.Record
	for _, h := range slices.Sorted(maps.Keys(b.records)) {
		if strings.HasPrefix(h, prefix) {
			out = append(out, b.records[h])
		}
	}
	return out, nil
}

func (b *MemoryBackend) Delete(ctx context.Context, hash string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.records, hash)
	return nil
}

func (b *MemoryBackend) Close() error { return nil }

var _ Backend = (*MemoryBackend)(nil)
