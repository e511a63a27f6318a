package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/matzehuels/stacksolve/pkg/io"
)

// FileBackend stores one JSON file per node in a directory.
type FileBackend struct {
	mu  sync.RWMutex
	dir string
}

// NewFileBackend creates a file backend. If dir is empty, it defaults to
// ~/.local/share/stacksolve/store/.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		dir = filepath.Join(home, ".local", "share", "stacksolve", "store")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(hash string) string {
	return filepath.Join(b.dir, hash+".json")
}

func (b *FileBackend) Put(ctx context.Context, records []io.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range records {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", r.Hash, err)
		}
		if err := os.WriteFile(b.path(r.Hash), data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", r.Hash, err)
		}
	}
	return nil
}

func (b *FileBackend) Match(ctx context.Context, prefix string) ([]io.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}
	var out []io.Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || !strings.HasPrefix(name, prefix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(b.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var r io.Record
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (b *FileBackend) Delete(ctx context.Context, hash string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.path(hash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", hash, err)
	}
	return nil
}

func (b *FileBackend) Close() error { return nil }

// Path returns the store directory.
func (b *FileBackend) Path() string { return b.dir }

var _ Backend = (*FileBackend)(nil)
