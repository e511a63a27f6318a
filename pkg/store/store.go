package store

import (
	"context"
	"slices"
	"strings"

	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/io"
	"github.com/matzehuels/stacksolve/pkg/spec"
)

// Backend persists node records keyed by hash.
type Backend interface {
	// Put inserts or replaces records.
	Put(ctx context.Context, records []io.Record) error

	// Match returns the records whose hash starts with prefix. An empty
	// prefix matches every record.
	Match(ctx context.Context, prefix string) ([]io.Record, error)

	// Delete removes the record with the given hash. Deleting a missing
	// record is not an error.
	Delete(ctx context.Context, hash string) error

	Close() error
}

// Store is the database of installed specs. It keeps whole DAGs: adding a
// spec records every node below it, and lookups return specs with their
// dependencies wired.
type Store struct {
	backend Backend
}

// New returns a store over backend.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Add records the hashed DAGs under roots.
func (s *Store) Add(ctx context.Context, roots []*spec.Spec) error {
	l, err := io.Encode(roots)
	if err != nil {
		return err
	}
	return s.backend.Put(ctx, l.Nodes)
}

// Lookup returns the installed spec whose hash starts with prefix. No match
// is a NOT_FOUND error; more than one is a [*spec.AmbiguousSpecError].
func (s *Store) Lookup(ctx context.Context, prefix string) (*spec.Spec, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	if err := errors.ValidateHash(prefix); err != nil {
		return nil, err
	}
	recs, err := s.backend.Match(ctx, prefix)
	if err != nil {
		return nil, err
	}
	switch len(recs) {
	case 0:
		return nil, errors.New(errors.ErrCodeNotFound, "no installed spec matches /%s", prefix)
	case 1:
	default:
		cands := make([]string, len(recs))
		for i, r := range recs {
			cands[i] = r.String()
		}
		slices.Sort(cands)
		return nil, &spec.AmbiguousSpecError{Input: "/" + prefix, Token: prefix, Candidates: cands}
	}
	all, err := s.backend.Match(ctx, "")
	if err != nil {
		return nil, err
	}
	out, err := io.Decode([]string{recs[0].Hash}, all)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// All returns every installed node, newest version first within a package
// name. Nodes shared between DAGs are returned once.
func (s *Store) All(ctx context.Context) ([]*spec.Spec, error) {
	recs, err := s.backend.Match(ctx, "")
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(recs))
	for i, r := range recs {
		hashes[i] = r.Hash
	}
	out, err := io.Decode(hashes, recs)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b *spec.Spec) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		va, _ := a.Version()
		vb, _ := b.Version()
		if c := vb.Compare(va); c != 0 {
			return c
		}
		return strings.Compare(a.Hash, b.Hash)
	})
	return out, nil
}

// Find returns the installed nodes satisfying c, in [Store.All] order.
func (s *Store) Find(ctx context.Context, c *spec.Spec) ([]*spec.Spec, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(n *spec.Spec) bool { return !n.Satisfies(c) }), nil
}

// Remove deletes an installed node. A node another installed node depends
// on cannot be removed.
func (s *Store) Remove(ctx context.Context, hash string) error {
	recs, err := s.backend.Match(ctx, "")
	if err != nil {
		return err
	}
	for _, r := range recs {
		for _, d := range r.Dependencies {
			if d.Hash == hash {
				return errors.New(errors.ErrCodeInvalidInput, "%s is needed by %s", hash, r)
			}
		}
	}
	return s.backend.Delete(ctx, hash)
}

// Close releases the backend.
func (s *Store) Close() error { return s.backend.Close() }
