package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the embedding and chat collectors.
const (
	OutcomeSuccess      = "success"
	OutcomeFailure      = "failure"
	OutcomeEmpty        = "empty"
	OutcomeFunctionCall = "function_call"
	OutcomeRetryable    = "retryable"
	OutcomeAuth         = "auth"
)

// Config controls how collectors are registered.
type Config struct {
	// Namespace prefixes every metric name.
	Namespace string
	// ServiceName is attached as a constant "service" label.
	ServiceName string
	// EnableDefaultCollectors registers Go runtime and process collectors.
	EnableDefaultCollectors bool
}

// Metrics owns a private registry and the collectors for embedding and chat
// calls. All Observe methods are safe on a nil receiver so callers can leave
// metrics unset.
type Metrics struct {
	Registry *prometheus.Registry

	embedRequests  *prometheus.CounterVec
	embedGroups    *prometheus.CounterVec
	embedDuration  prometheus.Histogram
	chatRequests   *prometheus.CounterVec
	repairs        prometheus.Counter
	cacheLookups   *prometheus.CounterVec
	breakerChanges *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New(cfg Config) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "azurellm"
	}
	registry := prometheus.NewRegistry()
	var reg prometheus.Registerer = registry
	if cfg.ServiceName != "" {
		reg = prometheus.WrapRegistererWith(prometheus.Labels{"service": cfg.ServiceName}, registry)
	}

	if cfg.EnableDefaultCollectors {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		Registry: registry,
		embedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Embed calls by outcome.",
		}, []string{"outcome"}),
		embedGroups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "embedding",
			Name:      "groups_total",
			Help:      "Remote embedding group calls by outcome.",
		}, []string{"outcome"}),
		embedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "embedding",
			Name:      "duration_seconds",
			Help:      "Wall time of Embed calls including all groups.",
			Buckets:   prometheus.DefBuckets,
		}),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Chat completion calls by outcome.",
		}, []string{"outcome"}),
		repairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "chat",
			Name:      "function_call_repairs_total",
			Help:      "Re-asks issued after malformed function call arguments.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "embedding_cache",
			Name:      "lookups_total",
			Help:      "Embedding cache lookups by result.",
		}, []string{"result"}),
		breakerChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "circuit_breaker",
			Name:      "state_changes_total",
			Help:      "Circuit breaker transitions by breaker name and target state.",
		}, []string{"name", "to"}),
	}

	reg.MustRegister(
		m.embedRequests,
		m.embedGroups,
		m.embedDuration,
		m.chatRequests,
		m.repairs,
		m.cacheLookups,
		m.breakerChanges,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveEmbedding records one Embed call.
func (m *Metrics) ObserveEmbedding(outcome string, okGroups, failedGroups int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.embedRequests.WithLabelValues(outcome).Inc()
	m.embedGroups.WithLabelValues(OutcomeSuccess).Add(float64(okGroups))
	m.embedGroups.WithLabelValues(OutcomeFailure).Add(float64(failedGroups))
	m.embedDuration.Observe(elapsed.Seconds())
}

// ObserveChat records one chat completion call.
func (m *Metrics) ObserveChat(outcome string) {
	if m == nil {
		return
	}
	m.chatRequests.WithLabelValues(outcome).Inc()
}

// ObserveRepair records one function call re-ask.
func (m *Metrics) ObserveRepair() {
	if m == nil {
		return
	}
	m.repairs.Inc()
}

// ObserveCache records cache hits and misses for one lookup batch.
func (m *Metrics) ObserveCache(hits, misses int) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Add(float64(hits))
	m.cacheLookups.WithLabelValues("miss").Add(float64(misses))
}

// ObserveBreaker records a circuit breaker state transition.
func (m *Metrics) ObserveBreaker(name, to string) {
	if m == nil {
		return
	}
	m.breakerChanges.WithLabelValues(name, to).Inc()
}
