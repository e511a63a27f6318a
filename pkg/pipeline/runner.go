package pipeline

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stacksolve/pkg/cache"
	"github.com/matzehuels/stacksolve/pkg/facts"
	"github.com/matzehuels/stacksolve/pkg/materialize"
	"github.com/matzehuels/stacksolve/pkg/observability"
	"github.com/matzehuels/stacksolve/pkg/repo"
	"github.com/matzehuels/stacksolve/pkg/solver"
	"github.com/matzehuels/stacksolve/pkg/spec"
	"github.com/matzehuels/stacksolve/pkg/splice"
	"github.com/matzehuels/stacksolve/pkg/store"
)

// factCacheSize bounds the compiled packages kept across extractions.
const factCacheSize = 4096

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use it to avoid duplicating caching logic.
//
// The fact table is extracted once and shared; everything else is per
// request, so multiple goroutines can use the same Runner with different
// options.
type Runner struct {
	Repo *repo.Repository
	// Store holds installed specs for reuse and splicing. Nil means none.
	Store *store.Store
	// SplicePolicy holds explicit splices. Nil means can_splice rules only.
	SplicePolicy *repo.SplicePolicy

	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	// SolutionTTL overrides cache.TTLSolution when set.
	SolutionTTL time.Duration

	// Workers bounds parallel fact extraction. Zero means GOMAXPROCS.
	Workers int

	mu         sync.Mutex
	table      *facts.Table
	digest     string
	factsCache *facts.Cache
}

// NewRunner creates a runner over a repository.
// If keyer is nil, a DefaultKeyer is used.
// If c is nil, a NullCache is used (caching disabled).
func NewRunner(r *repo.Repository, installed *store.Store, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Repo:   r,
		Store:  installed,
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := r.logger(opts)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	result, err := r.Concretize(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(opts.Formats) == 0 {
		return result, nil
	}

	renderStart := time.Now()
	artifacts, hit, err := r.RenderWithCacheInfo(ctx, result.Solution, result.SolutionKey, opts)
	if err != nil {
		return nil, err
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = hit

	logger.Info("rendered outputs",
		"formats", opts.Formats,
		"cached", hit,
		"duration", result.Stats.RenderTime)
	return result, nil
}

// Concretize runs the extract, solve, splice and materialize stages. The
// solved and materialized graph is cached under the solution key.
func (r *Runner) Concretize(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := r.logger(opts)
	result := &Result{Artifacts: make(map[string][]byte)}

	extractStart := time.Now()
	table, digest, err := r.Facts(ctx)
	if err != nil {
		return nil, err
	}
	result.Stats.ExtractTime = time.Since(extractStart)
	result.Stats.Excluded = len(table.Excluded())

	installed, err := r.installed(ctx)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(installed))
	for i, s := range installed {
		hashes[i] = s.Hash
	}
	slices.Sort(hashes)
	result.SolutionKey = r.Keyer.SolutionKey(opts.solutionKeyOpts(digest, hashes))

	solveStart := time.Now()
	if !opts.Refresh {
		if p, ok := r.cachedSolution(ctx, result.SolutionKey, logger); ok {
			res, err := p.result(ctx)
			if err == nil {
				result.Solution = res
				result.Splices = p.Splices
				result.Stats.Steps = p.Steps
				result.CacheInfo.SolutionHit = true
				r.finish(result, solveStart, logger)
				return result, nil
			}
			logger.Warn("discarding cached solution", "key", result.SolutionKey, "error", err)
		}
	}

	sol, err := solver.Solve(ctx, &solver.Problem{
		Roots:    opts.Roots(),
		Facts:    table,
		Reusable: installed,
		Policy:   opts.Policy(),
	})
	if err != nil {
		return nil, err
	}
	if !sol.Optimal {
		logger.Warn("search stopped early; solution may not be optimal", "steps", sol.Steps)
	}

	spliced, err := splice.Resolve(ctx, sol, table, splice.Options{
		Enabled:    opts.Splice,
		Candidates: installed,
		Policy:     r.SplicePolicy,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	for _, d := range spliced.Applied() {
		logger.Debug(d.String())
	}

	res, err := materialize.Materialize(ctx, spliced.Solution)
	if err != nil {
		return nil, err
	}
	result.Solution = res
	result.Splices = spliced.Decisions
	result.Stats.Steps = sol.Steps

	if sol.Optimal {
		r.storeSolution(ctx, result, logger)
	}
	r.finish(result, solveStart, logger)
	return result, nil
}

func (r *Runner) finish(result *Result, start time.Time, logger *log.Logger) {
	result.Stats.SolveTime = time.Since(start)
	result.Stats.NodeCount = len(result.Solution.Nodes)
	result.Stats.ReusedCount = len(result.Solution.Reused)
	logger.Info("concretized",
		"nodes", result.Stats.NodeCount,
		"reused", result.Stats.ReusedCount,
		"steps", result.Stats.Steps,
		"cached", result.CacheInfo.SolutionHit,
		"duration", result.Stats.SolveTime)
}

// Facts returns the fact table of the repository and a digest of its
// recipes, extracting them on first use.
func (r *Runner) Facts(ctx context.Context) (*facts.Table, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.table != nil {
		return r.table, r.digest, nil
	}
	if r.factsCache == nil {
		c, err := facts.NewCache(factCacheSize)
		if err != nil {
			return nil, "", err
		}
		r.factsCache = c
	}

	start := time.Now()
	table, err := facts.Extract(ctx, r.Repo, facts.Options{
		Workers: r.Workers,
		Cache:   r.factsCache,
		Logger:  r.Logger,
	})
	if err != nil {
		return nil, "", err
	}
	r.table, r.digest = table, repoDigest(r.Repo)
	r.Logger.Info("extracted facts",
		"packages", len(table.Names()),
		"excluded", len(table.Excluded()),
		"duration", time.Since(start))
	return r.table, r.digest, nil
}

// Reload drops the extracted fact table so the next request re-reads repo.
// Unchanged recipes are served from the fact cache.
func (r *Runner) Reload(repository *repo.Repository) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Repo = repository
	r.table, r.digest = nil, ""
}

func (r *Runner) installed(ctx context.Context) ([]*spec.Spec, error) {
	if r.Store == nil {
		return nil, nil
	}
	return r.Store.All(ctx)
}

func (r *Runner) cachedSolution(ctx context.Context, key string, logger *log.Logger) (*payload, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache read failed", "error", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "solution")
		return nil, false
	}
	p, err := decodePayload(data)
	if err != nil {
		logger.Warn("discarding cached solution", "key", key, "error", err)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "solution")
	return p, true
}

func (r *Runner) storeSolution(ctx context.Context, result *Result, logger *log.Logger) {
	p, err := newPayload(result)
	if err != nil {
		logger.Warn("encode solution for cache", "error", err)
		return
	}
	data, err := p.encode()
	if err != nil {
		logger.Warn("encode solution for cache", "error", err)
		return
	}
	ttl := r.SolutionTTL
	if ttl <= 0 {
		ttl = cache.TTLSolution
	}
	if err := r.Cache.Set(ctx, result.SolutionKey, data, ttl); err != nil {
		logger.Warn("cache write failed", "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "solution", len(data))
}

// RenderWithCacheInfo generates artifacts with caching and reports whether
// all of them came from the cache.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, res *materialize.Result, solutionKey string, opts Options) (map[string][]byte, bool, error) {
	if err := ValidateFormats(opts.Formats); err != nil {
		return nil, false, err
	}

	artifacts := make(map[string][]byte)
	var missing []string
	for _, format := range opts.Formats {
		if !opts.Refresh && solutionKey != "" {
			key := r.Keyer.ArtifactKey(solutionKey, opts.artifactKeyOpts(format))
			if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
				observability.Cache().OnCacheHit(ctx, "artifact")
				artifacts[format] = data
				continue
			}
			observability.Cache().OnCacheMiss(ctx, "artifact")
		}
		missing = append(missing, format)
	}
	if len(missing) == 0 {
		return artifacts, true, nil
	}

	rendered, err := Render(ctx, res, missing, opts.Detailed)
	if err != nil {
		return nil, false, err
	}
	for _, format := range slices.Sorted(maps.Keys(rendered)) {
		data := rendered[format]
		artifacts[format] = data
		if solutionKey == "" {
			continue
		}
		key := r.Keyer.ArtifactKey(solutionKey, opts.artifactKeyOpts(format))
		if err := r.Cache.Set(ctx, key, data, cache.TTLArtifact); err == nil {
			observability.Cache().OnCacheSet(ctx, "artifact", len(data))
		}
	}
	return artifacts, false, nil
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	var err error
	if r.Cache != nil {
		err = r.Cache.Close()
	}
	if r.Store != nil {
		if serr := r.Store.Close(); err == nil {
			err = serr
		}
	}
	return err
}

func (r *Runner) logger(opts Options) *log.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return r.Logger
}

// repoDigest combines the per-recipe digests of a repository.
func repoDigest(r *repo.Repository) string {
	var buf []byte
	for _, name := range r.Names() {
		buf = append(buf, name...)
		buf = append(buf, ' ')
		buf = append(buf, r.Digest(name)...)
		buf = append(buf, '\n')
	}
	return cache.Hash(buf)
}
