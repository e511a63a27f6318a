package config

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stacksolve/pkg/cache"
	"github.com/matzehuels/stacksolve/pkg/pipeline"
	"github.com/matzehuels/stacksolve/pkg/repo"
	"github.com/matzehuels/stacksolve/pkg/store"
)

// LoadRepo loads the recipe directories and applies version overrides.
func (c *Config) LoadRepo() (*repo.Repository, error) {
	r, err := repo.Load(c.Repo.Paths...)
	if err != nil {
		return nil, err
	}
	if c.Repo.Versions == "" {
		return r, nil
	}
	o, err := repo.LoadVersionOverrides(c.Repo.Versions)
	if err != nil {
		return nil, err
	}
	return r.WithVersionOverrides(o)
}

// LoadSplicePolicy reads the configured splice policy, or returns nil when
// none is set.
func (c *Config) LoadSplicePolicy() (*repo.SplicePolicy, error) {
	if c.Splice.Policy == "" {
		return nil, nil
	}
	return repo.LoadSplicePolicy(c.Splice.Policy)
}

// OpenStore opens the installed-spec store. It returns nil for backend none.
func (c *Config) OpenStore(ctx context.Context) (*store.Store, error) {
	switch c.Store.Backend {
	case BackendFile:
		b, err := store.NewFileBackend(c.Store.Path)
		if err != nil {
			return nil, err
		}
		return store.New(b), nil
	case BackendMongo:
		b, err := store.NewMongoBackend(ctx, store.MongoConfig{
			URI:      c.Store.MongoURI,
			Database: c.Store.MongoDatabase,
		})
		if err != nil {
			return nil, err
		}
		return store.New(b), nil
	}
	return nil, nil
}

// OpenCache opens the solution cache. Backend none, or noCache, yields a
// NullCache.
func (c *Config) OpenCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch c.Cache.Backend {
	case BackendFile:
		return cache.NewFileCache(c.Cache.Dir)
	case BackendRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.Cache.RedisAddr,
			Password: c.Cache.RedisPassword,
			DB:       c.Cache.RedisDB,
		})
	}
	return cache.NewNullCache(), nil
}

// Keyer returns the cache keyer, scoped by the configured namespace.
func (c *Config) Keyer() cache.Keyer {
	if c.Cache.Namespace == "" {
		return cache.NewDefaultKeyer()
	}
	return cache.NewScopedKeyer(nil, c.Cache.Namespace+":")
}

// Options returns request options carrying the configured solver policy.
func (c *Config) Options() pipeline.Options {
	return pipeline.Options{
		Reuse:        c.Solver.Reuse,
		Compilers:    c.Solver.Compilers,
		Arch:         c.Solver.Arch,
		Providers:    c.Solver.Providers,
		VersionOrder: c.Solver.VersionOrder,
		Criteria:     c.Solver.Criteria,
		MaxSteps:     c.Solver.MaxSteps,
		Splice:       c.Splice.Enabled,
		Timeout:      c.Solver.Timeout,
	}
}

// NewRunner wires a pipeline runner from the settings.
func (c *Config) NewRunner(ctx context.Context, noCache bool, logger *log.Logger) (*pipeline.Runner, error) {
	r, err := c.LoadRepo()
	if err != nil {
		return nil, err
	}
	policy, err := c.LoadSplicePolicy()
	if err != nil {
		return nil, err
	}
	st, err := c.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	ch, err := c.OpenCache(ctx, noCache)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}
	runner := pipeline.NewRunner(r, st, ch, c.Keyer(), logger)
	runner.SplicePolicy = policy
	runner.Workers = c.Solver.Workers
	runner.SolutionTTL = c.Cache.TTL
	return runner, nil
}
