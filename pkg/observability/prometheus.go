package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/stacksolve/pkg/errors"
)

// Prometheus implements every hook interface on top of a prometheus registry.
type Prometheus struct {
	extractDuration prometheus.Histogram
	excluded        prometheus.Gauge
	solveTotal      *prometheus.CounterVec
	solveDuration   prometheus.Histogram
	solveSteps      prometheus.Histogram
	splicesTotal    *prometheus.CounterVec
	materialized    *prometheus.CounterVec
	cacheTotal      *prometheus.CounterVec
	cacheBytes      *prometheus.CounterVec
	httpTotal       *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

var (
	_ ConcretizeHooks = (*Prometheus)(nil)
	_ CacheHooks      = (*Prometheus)(nil)
	_ HTTPHooks       = (*Prometheus)(nil)
)

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		extractDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stacksolve_extract_duration_seconds",
			Help:    "Time taken to extract package facts.",
			Buckets: prometheus.DefBuckets,
		}),
		excluded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stacksolve_excluded_packages",
			Help: "Number of malformed packages excluded by the last extraction.",
		}),
		solveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stacksolve_solve_total",
			Help: "Number of solver runs by outcome.",
		}, []string{"outcome"}),
		solveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stacksolve_solve_duration_seconds",
			Help:    "Time taken to solve a concretization problem.",
			Buckets: prometheus.DefBuckets,
		}),
		solveSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stacksolve_solve_steps",
			Help:    "Search steps taken per solver run.",
			Buckets: prometheus.ExponentialBuckets(16, 4, 10),
		}),
		splicesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stacksolve_splices_total",
			Help: "Number of splices applied by kind.",
		}, []string{"kind"}),
		materialized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stacksolve_materialized_nodes_total",
			Help: "Number of nodes materialized, split by reuse.",
		}, []string{"reused"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stacksolve_cache_requests_total",
			Help: "Cache lookups by key type and result.",
		}, []string{"key_type", "result"}),
		cacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stacksolve_cache_written_bytes_total",
			Help: "Bytes written to the cache by key type.",
		}, []string{"key_type"}),
		httpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stacksolve_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stacksolve_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(
		p.extractDuration,
		p.excluded,
		p.solveTotal,
		p.solveDuration,
		p.solveSteps,
		p.splicesTotal,
		p.materialized,
		p.cacheTotal,
		p.cacheBytes,
		p.httpTotal,
		p.httpDuration,
	)
	return p
}

// Register installs p as the concretize, cache and HTTP hooks.
func (p *Prometheus) Register() {
	SetConcretizeHooks(p)
	SetCacheHooks(p)
	SetHTTPHooks(p)
}

func (p *Prometheus) OnExtractStart(context.Context, int) {}

func (p *Prometheus) OnExtractComplete(_ context.Context, _, excluded int, d time.Duration, err error) {
	if err != nil {
		return
	}
	p.extractDuration.Observe(d.Seconds())
	p.excluded.Set(float64(excluded))
}

func (p *Prometheus) OnSolveStart(context.Context, []string) {}

func (p *Prometheus) OnSolveComplete(_ context.Context, _, steps int, d time.Duration, err error) {
	p.solveTotal.WithLabelValues(outcome(err)).Inc()
	p.solveDuration.Observe(d.Seconds())
	p.solveSteps.Observe(float64(steps))
}

func (p *Prometheus) OnSplice(_ context.Context, _ string, transitive bool) {
	kind := "intransitive"
	if transitive {
		kind = "transitive"
	}
	p.splicesTotal.WithLabelValues(kind).Inc()
}

func (p *Prometheus) OnMaterialize(_ context.Context, nodes, reused int, _ time.Duration, err error) {
	if err != nil {
		return
	}
	p.materialized.WithLabelValues("false").Add(float64(nodes - reused))
	p.materialized.WithLabelValues("true").Add(float64(reused))
}

func (p *Prometheus) OnCacheHit(_ context.Context, keyType string) {
	p.cacheTotal.WithLabelValues(keyType, "hit").Inc()
}

func (p *Prometheus) OnCacheMiss(_ context.Context, keyType string) {
	p.cacheTotal.WithLabelValues(keyType, "miss").Inc()
}

func (p *Prometheus) OnCacheSet(_ context.Context, keyType string, size int) {
	p.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (p *Prometheus) OnRequest(context.Context, string, string) {}

func (p *Prometheus) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	p.httpTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// outcome labels a solver result by error code.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errors.ErrCodeUnsatisfiable):
		return "unsat"
	case errors.Is(err, errors.ErrCodeTimeout):
		return "timeout"
	}
	return "error"
}
