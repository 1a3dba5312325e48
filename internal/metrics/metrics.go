package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FetchOutcome captures how a query fetch round trip ended.
type FetchOutcome string

const (
	// FetchSuccess indicates the fetch resolved and the entry was updated.
	FetchSuccess FetchOutcome = "success"
	// FetchError indicates the fetch failed; the entry keeps its last value.
	FetchError FetchOutcome = "error"
	// FetchDiscarded indicates the result landed after a newer generation
	// superseded it and was dropped.
	FetchDiscarded FetchOutcome = "discarded"
)

// MutationOutcome captures how a mutation invocation ended.
type MutationOutcome string

const (
	// MutationSuccess indicates the write resolved and invalidation ran.
	MutationSuccess MutationOutcome = "success"
	// MutationError indicates the write failed; no invalidation occurred.
	MutationError MutationOutcome = "error"
)

// Recorder publishes Prometheus metrics for query engine activity. All
// methods are nil-safe so wiring without metrics stays a one-line change.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	fetches      *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec
	dedupJoins   *prometheus.CounterVec
	cacheServes  *prometheus.CounterVec

	invalidatedEntries prometheus.Counter

	mutations       *prometheus.CounterVec
	mutationLatency *prometheus.HistogramVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a
// dedicated registry is created so multiple recorders can coexist without
// conflicting with the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ghlkit",
		Subsystem: "query",
		Name:      "fetches_total",
		Help:      "Fetch round trips executed by the query engine.",
	}, []string{"resource", "result"})

	fetchLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ghlkit",
		Subsystem: "query",
		Name:      "fetch_duration_seconds",
		Help:      "Latency distribution for completed fetch round trips.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"resource", "result"})

	dedupJoins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ghlkit",
		Subsystem: "query",
		Name:      "dedup_joins_total",
		Help:      "Requests that attached to an already in-flight fetch for the same key.",
	}, []string{"resource"})

	cacheServes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ghlkit",
		Subsystem: "query",
		Name:      "cache_serves_total",
		Help:      "Subscriptions answered synchronously from a cached value.",
	}, []string{"resource", "state"})

	invalidatedEntries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ghlkit",
		Subsystem: "query",
		Name:      "invalidated_entries_total",
		Help:      "Cache entries marked stale by invalidation cascades.",
	})

	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ghlkit",
		Subsystem: "mutation",
		Name:      "invocations_total",
		Help:      "Mutation invocations executed by the mutation engine.",
	}, []string{"resource", "result"})

	mutationLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ghlkit",
		Subsystem: "mutation",
		Name:      "duration_seconds",
		Help:      "Latency distribution for mutation invocations.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"resource"})

	reg.MustRegister(fetches, fetchLatency, dedupJoins, cacheServes, invalidatedEntries, mutations, mutationLatency)

	return &Recorder{
		gatherer:           reg,
		handler:            promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		fetches:            fetches,
		fetchLatency:       fetchLatency,
		dedupJoins:         dedupJoins,
		cacheServes:        cacheServes,
		invalidatedEntries: invalidatedEntries,
		mutations:          mutations,
		mutationLatency:    mutationLatency,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveFetch records the outcome and latency of a fetch round trip.
func (r *Recorder) ObserveFetch(resource string, outcome FetchOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	resourceLabel := normalizeLabel(resource)
	resultLabel := string(outcome)
	if resultLabel == "" {
		resultLabel = string(FetchError)
	}
	r.fetches.WithLabelValues(resourceLabel, resultLabel).Inc()
	r.fetchLatency.WithLabelValues(resourceLabel, resultLabel).Observe(duration.Seconds())
}

// ObserveDedup records a request that joined an in-flight fetch.
func (r *Recorder) ObserveDedup(resource string) {
	if r == nil {
		return
	}
	r.dedupJoins.WithLabelValues(normalizeLabel(resource)).Inc()
}

// ObserveServe records a subscription answered from cache, fresh or stale.
func (r *Recorder) ObserveServe(resource string, stale bool) {
	if r == nil {
		return
	}
	state := "fresh"
	if stale {
		state = "stale"
	}
	r.cacheServes.WithLabelValues(normalizeLabel(resource), state).Inc()
}

// ObserveInvalidation records how many entries an invalidation cascade
// marked stale.
func (r *Recorder) ObserveInvalidation(entries int) {
	if r == nil || entries <= 0 {
		return
	}
	r.invalidatedEntries.Add(float64(entries))
}

// ObserveMutation records the outcome and latency of a mutation invocation.
func (r *Recorder) ObserveMutation(resource string, outcome MutationOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	resourceLabel := normalizeLabel(resource)
	resultLabel := string(outcome)
	if resultLabel == "" {
		resultLabel = string(MutationError)
	}
	r.mutations.WithLabelValues(resourceLabel, resultLabel).Inc()
	r.mutationLatency.WithLabelValues(resourceLabel).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
