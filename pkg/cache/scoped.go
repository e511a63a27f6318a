package cache

// ScopedKeyer wraps a Keyer with a prefix, so several deployments (or a
// CLI and a server) can share one Redis without seeing each other's
// entries.
//
//	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "site-a:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer means the
// default keyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) SolutionKey(opts SolutionKeyOpts) string {
	return k.prefix + k.inner.SolutionKey(opts)
}

func (k *ScopedKeyer) ArtifactKey(solutionKey string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(solutionKey, opts)
}
