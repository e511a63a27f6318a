package cache

import (
	"context"
	"time"
)

// Default TTLs. Solutions depend on the installed store, which changes
// between runs, so they expire sooner than rendered artifacts.
const (
	TTLSolution = 24 * time.Hour
	TTLArtifact = 7 * 24 * time.Hour
)

// Cache stores opaque byte values under string keys with an optional TTL.
//
// Implementations must be safe for concurrent use. A zero TTL means the
// entry does not expire.
type Cache interface {
	// Get returns the value and true on a hit. A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Keyer derives cache keys. Every input that can change the cached value
// must be part of the key.
type Keyer interface {
	// SolutionKey keys a materialized solution.
	SolutionKey(opts SolutionKeyOpts) string
	// ArtifactKey keys a rendered graph of a solution.
	ArtifactKey(solutionKey string, opts ArtifactKeyOpts) string
}

// SolutionKeyOpts lists the inputs of a concretization.
type SolutionKeyOpts struct {
	// Roots are the request specs in canonical form.
	Roots []string `json:"roots"`
	// RepoDigest identifies the package universe.
	RepoDigest string `json:"repo"`
	// Policy is any JSON-encodable value holding the solver policy.
	Policy any `json:"policy"`
	// Installed are the hashes available for reuse and splicing.
	Installed []string `json:"installed,omitempty"`
	Splice    bool     `json:"splice,omitempty"`
}

// ArtifactKeyOpts lists the rendering inputs of a graph artifact.
type ArtifactKeyOpts struct {
	Format   string `json:"format"`
	Detailed bool   `json:"detailed,omitempty"`
}

// DefaultKeyer hashes key inputs with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) SolutionKey(opts SolutionKeyOpts) string {
	return hashKey("solution", opts)
}

func (DefaultKeyer) ArtifactKey(solutionKey string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", solutionKey, opts)
}

var _ Keyer = DefaultKeyer{}
