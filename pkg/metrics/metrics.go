package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LookupOutcome captures how the offline cache answered an intercepted request.
type LookupOutcome string

const (
	// LookupHit indicates the response came from the current namespace.
	LookupHit LookupOutcome = "hit"
	// LookupMiss indicates the request went to the network.
	LookupMiss LookupOutcome = "miss"
	// LookupBypass indicates the request was not eligible for caching.
	LookupBypass LookupOutcome = "bypass"
	// LookupError indicates the cache store failed during lookup.
	LookupError LookupOutcome = "error"
)

// StoreOutcome captures the result of a background cache write.
type StoreOutcome string

const (
	StoreStored  StoreOutcome = "stored"
	StoreSkipped StoreOutcome = "skipped"
	StoreError   StoreOutcome = "error"
)

// Recorder publishes Prometheus metrics for generation calls and the offline cache.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	generations       *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec

	lookups           *prometheus.CounterVec
	stores            *prometheus.CounterVec
	installs          *prometheus.CounterVec
	namespacesDeleted prometheus.Counter
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a dedicated
// registry is created so multiple recorders can coexist without conflicting with
// the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	generations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centelha",
		Subsystem: "generation",
		Name:      "requests_total",
		Help:      "Generation calls by outcome kind.",
	}, []string{"outcome"})

	generationLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "centelha",
		Subsystem: "generation",
		Name:      "duration_seconds",
		Help:      "Latency distribution for generation calls.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"outcome"})

	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centelha",
		Subsystem: "offline",
		Name:      "lookups_total",
		Help:      "Intercepted requests by cache outcome.",
	}, []string{"outcome"})

	stores := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centelha",
		Subsystem: "offline",
		Name:      "stores_total",
		Help:      "Background cache writes by result.",
	}, []string{"outcome"})

	installs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centelha",
		Subsystem: "offline",
		Name:      "installs_total",
		Help:      "Offline cache install attempts by result.",
	}, []string{"outcome"})

	namespacesDeleted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "centelha",
		Subsystem: "offline",
		Name:      "namespaces_deleted_total",
		Help:      "Superseded cache namespaces deleted during activation.",
	})

	reg.MustRegister(generations, generationLatency, lookups, stores, installs, namespacesDeleted)

	return &Recorder{
		gatherer:          reg,
		handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		generations:       generations,
		generationLatency: generationLatency,
		lookups:           lookups,
		stores:            stores,
		installs:          installs,
		namespacesDeleted: namespacesDeleted,
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

// Gatherer returns the underlying Prometheus gatherer for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveGeneration records the outcome and latency of one generation call.
func (r *Recorder) ObserveGeneration(outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	label := normalizeLabel(outcome)
	r.generations.WithLabelValues(label).Inc()
	r.generationLatency.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveLookup records how an intercepted request was answered.
func (r *Recorder) ObserveLookup(outcome LookupOutcome) {
	if r == nil {
		return
	}
	r.lookups.WithLabelValues(normalizeLabel(string(outcome))).Inc()
}

// ObserveStore records the result of a cache write.
func (r *Recorder) ObserveStore(outcome StoreOutcome) {
	if r == nil {
		return
	}
	r.stores.WithLabelValues(normalizeLabel(string(outcome))).Inc()
}

// ObserveInstall records an install attempt.
func (r *Recorder) ObserveInstall(ok bool) {
	if r == nil {
		return
	}
	label := "failed"
	if ok {
		label = "installed"
	}
	r.installs.WithLabelValues(label).Inc()
}

// ObserveNamespacesDeleted adds n deleted namespaces.
func (r *Recorder) ObserveNamespacesDeleted(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.namespacesDeleted.Add(float64(n))
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
