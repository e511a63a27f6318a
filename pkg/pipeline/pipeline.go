// Package pipeline runs a concretization request end to end.
//
// This package implements the extract → solve → splice → materialize →
// render pipeline shared by the CLI and the HTTP server, so both entry points
// cache, log and fail the same way.
//
// # Architecture
//
// The pipeline consists of five stages:
//
//  1. Extract: compile the repository recipes into a [facts.Table]
//  2. Solve: search for the best concrete graph for all requested specs
//  3. Splice: replace nodes with compatible installed builds
//  4. Materialize: hash and freeze every node
//  5. Render: produce artifacts (lock JSON, graph JSON, DOT, SVG, PNG, PDF)
//
// Stages 2 to 4 are cached together under one solution key; artifacts are
// cached per format under a key derived from it.
//
// # Usage
//
//	runner := pipeline.NewRunner(repository, installed, cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Specs:   []string{"hdf5+mpi ^mpich"},
//	    Formats: []string{"json"},
//	})
//	lock := result.Artifacts["json"]
//
// [facts.Table]: github.com/matzehuels/stacksolve/pkg/facts.Table
package pipeline

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stacksolve/pkg/cache"
	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/materialize"
	"github.com/matzehuels/stacksolve/pkg/solver"
	"github.com/matzehuels/stacksolve/pkg/spec"
	"github.com/matzehuels/stacksolve/pkg/splice"
)

// DefaultTimeout bounds a request when Options.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// Format constants for output artifacts.
const (
	FormatJSON  = "json"  // lock file
	FormatGraph = "graph" // dag JSON with rows and metadata
	FormatDOT   = "dot"
	FormatSVG   = "svg"
	FormatPNG   = "png"
	FormatPDF   = "pdf"
)

// ValidFormats is the set of supported artifact formats.
var ValidFormats = map[string]bool{
	FormatJSON:  true,
	FormatGraph: true,
	FormatDOT:   true,
	FormatSVG:   true,
	FormatPNG:   true,
	FormatPDF:   true,
}

// =============================================================================
// Options - Request Configuration
// =============================================================================

// Options contains all configuration for one concretization request.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Specs are the requested root specs. All are solved together.
	Specs []string `json:"specs"`

	// Solver policy
	Reuse        bool                `json:"reuse,omitempty"`
	Tests        bool                `json:"tests,omitempty"`
	Compilers    []string            `json:"compilers,omitempty"`
	Arch         string              `json:"arch,omitempty"`
	Providers    map[string][]string `json:"providers,omitempty"`
	VersionOrder string              `json:"version_order,omitempty"`
	Criteria     []string            `json:"criteria,omitempty"`
	MaxSteps     int                 `json:"max_steps,omitempty"`

	Splice bool `json:"splice,omitempty"`

	// Render options
	Formats  []string `json:"formats,omitempty"`
	Detailed bool     `json:"detailed,omitempty"`

	// Refresh bypasses cached solutions and artifacts.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Timeout time.Duration `json:"-"`
	Logger  *log.Logger   `json:"-"`

	roots     []*spec.Spec
	policy    solver.Policy
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Solution is the materialized graph.
	Solution *materialize.Result
	// Splices lists every splice decision, applied or not.
	Splices []splice.Decision
	// SolutionKey is the cache key of Solution. It identifies the request.
	SolutionKey string
	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount   int
	ReusedCount int
	Excluded    int
	Steps       int

	ExtractTime time.Duration
	SolveTime   time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	SolutionHit bool `json:"solution_hit"`
	RenderHit   bool `json:"render_hit"` // all artifacts came from cache
}

// =============================================================================
// Validation
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidInput, "invalid format: %q (must be one of: %s)",
			format, strings.Join(formatNames(), ", "))
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

func formatNames() []string {
	names := make([]string, 0, len(ValidFormats))
	for f := range ValidFormats {
		names = append(names, f)
	}
	slices.Sort(names)
	return names
}

// ValidateAndSetDefaults parses the specs and the policy and applies
// defaults. It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if len(o.Specs) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "at least one spec is required")
	}

	o.roots = o.roots[:0]
	for _, s := range o.Specs {
		parsed, err := spec.ParseAll(s)
		if err != nil {
			return err
		}
		o.roots = append(o.roots, parsed...)
	}

	policy, err := o.buildPolicy()
	if err != nil {
		return err
	}
	o.policy = policy

	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	o.validated = true
	return nil
}

func (o *Options) buildPolicy() (solver.Policy, error) {
	p := solver.Policy{
		DefaultArch:  o.Arch,
		Providers:    o.Providers,
		Reuse:        o.Reuse,
		Tests:        o.Tests,
		VersionOrder: solver.VersionOrder(o.VersionOrder),
		MaxSteps:     o.MaxSteps,
	}
	for _, c := range o.Compilers {
		cs, err := spec.ParseCompiler(c)
		if err != nil {
			return p, err
		}
		p.Compilers = append(p.Compilers, cs)
	}
	crit, err := solver.ParseCriteria(o.Criteria)
	if err != nil {
		return p, err
	}
	p.Criteria = crit
	return p, nil
}

// Roots returns the parsed root specs. Valid after ValidateAndSetDefaults.
func (o *Options) Roots() []*spec.Spec { return o.roots }

// Policy returns the solver policy. Valid after ValidateAndSetDefaults.
func (o *Options) Policy() solver.Policy { return o.policy }

// solutionKeyOpts lists every input that changes the solution.
func (o *Options) solutionKeyOpts(repoDigest string, installed []string) cache.SolutionKeyOpts {
	roots := make([]string, len(o.roots))
	for i, r := range o.roots {
		roots[i] = r.String()
	}
	var compilers []string
	for _, c := range o.policy.Compilers {
		compilers = append(compilers, c.String())
	}
	return cache.SolutionKeyOpts{
		Roots:      roots,
		RepoDigest: repoDigest,
		Policy: map[string]any{
			"compilers":     compilers,
			"arch":          o.Arch,
			"providers":     o.Providers,
			"reuse":         o.Reuse,
			"tests":         o.Tests,
			"version_order": o.VersionOrder,
			"criteria":      o.policy.Criteria,
			"max_steps":     o.MaxSteps,
		},
		Installed: installed,
		Splice:    o.Splice,
	}
}

func (o *Options) artifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{Format: format, Detailed: o.Detailed}
}

func (o *Options) String() string {
	return fmt.Sprintf("%s (reuse=%t splice=%t)", strings.Join(o.Specs, " "), o.Reuse, o.Splice)
}
