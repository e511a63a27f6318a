// Package observability provides hooks for metrics, tracing, and logging.
//
// Library packages never import a metrics backend. They call the registered
// hooks, which default to no-ops; the CLI and the server register a backend
// such as [Prometheus] at startup.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetConcretizeHooks(observability.NewPrometheus(prometheus.DefaultRegisterer))
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Concretize().OnSolveStart(ctx, roots)
//	// ... solve ...
//	observability.Concretize().OnSolveComplete(ctx, nodes, steps, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Concretize Hooks
// =============================================================================

// ConcretizeHooks receives events from the concretization phases.
type ConcretizeHooks interface {
	// Fact extraction events
	OnExtractStart(ctx context.Context, packages int)
	OnExtractComplete(ctx context.Context, packages, excluded int, duration time.Duration, err error)

	// Solve events
	OnSolveStart(ctx context.Context, roots []string)
	OnSolveComplete(ctx context.Context, nodes, steps int, duration time.Duration, err error)

	// Splice events
	OnSplice(ctx context.Context, pkg string, transitive bool)

	// Materialize events
	OnMaterialize(ctx context.Context, nodes, reused int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP server.
type HTTPHooks interface {
	// OnRequest records an incoming request.
	OnRequest(ctx context.Context, method, route string)

	// OnResponse records a completed response.
	OnResponse(ctx context.Context, method, route string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopConcretizeHooks is a no-op implementation of ConcretizeHooks.
type NoopConcretizeHooks struct{}

func (NoopConcretizeHooks) OnExtractStart(context.Context, int) {}
func (NoopConcretizeHooks) OnExtractComplete(context.Context, int, int, time.Duration, error) {
}
func (NoopConcretizeHooks) OnSolveStart(context.Context, []string)                          {}
func (NoopConcretizeHooks) OnSolveComplete(context.Context, int, int, time.Duration, error) {}
func (NoopConcretizeHooks) OnSplice(context.Context, string, bool)                          {}
func (NoopConcretizeHooks) OnMaterialize(context.Context, int, int, time.Duration, error)   {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	concretizeHooks ConcretizeHooks = NoopConcretizeHooks{}
	cacheHooks      CacheHooks      = NoopCacheHooks{}
	httpHooks       HTTPHooks       = NoopHTTPHooks{}
	hooksMu         sync.RWMutex
)

// SetConcretizeHooks registers custom concretization hooks.
// This should be called once at application startup.
func SetConcretizeHooks(h ConcretizeHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		concretizeHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Concretize returns the registered concretization hooks.
func Concretize() ConcretizeHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return concretizeHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	concretizeHooks = NoopConcretizeHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
