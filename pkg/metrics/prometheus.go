// Package metrics provides Prometheus metrics for the crawl planning service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every Prometheus collector the service exposes.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Sessions
	sessionsActive  prometheus.Gauge
	sessionsCreated prometheus.Counter
	sessionsExpired prometheus.Counter
	sessionsClosed  prometheus.Counter

	// Planning state machines
	selectionMutations *prometheus.CounterVec
	selectionSize      prometheus.Histogram
	drags              *prometheus.CounterVec
	routeRequests      *prometheus.CounterVec
	discoveryRequests  *prometheus.CounterVec
	venuesDiscovered   prometheus.Histogram
	locationFallbacks  prometheus.Counter
	idempotentReplays  prometheus.Counter

	// Collaborators
	collaboratorLatency *prometheus.HistogramVec
	collaboratorErrors  *prometheus.CounterVec
	breakerState        *prometheus.GaugeVec
	geocodeCollapsed    prometheus.Counter

	// Mailbox and event loop
	mailboxCapacity  prometheus.Gauge
	mailboxDepth     prometheus.Gauge
	mailboxEnqueued  prometheus.Counter
	mailboxRejected  *prometheus.CounterVec
	messageLatency   *prometheus.HistogramVec
	messageProcessed *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "crawlplan",
		subsystem:        "planner",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.sessionsActive = m.gauge("sessions_active", "Number of live planning sessions")
	m.sessionsCreated = m.counter("sessions_created_total", "Total planning sessions created")
	m.sessionsExpired = m.counter("sessions_expired_total", "Planning sessions closed after idling")
	m.sessionsClosed = m.counter("sessions_closed_total", "Planning sessions closed explicitly")

	m.selectionMutations = m.counterVec("selection_mutations_total",
		"Successful selection mutations by operation", "op")
	m.selectionSize = m.histogram("selection_size",
		"Selection size observed after each mutation", []float64{0, 1, 2, 3, 4, 5, 6, 8, 10, 15, 20})
	m.drags = m.counterVec("drags_total", "Drag gestures by result", "result")
	m.routeRequests = m.counterVec("route_requests_total",
		"Route requests by outcome (applied, superseded, outdated, failed, rejected)", "outcome")
	m.discoveryRequests = m.counterVec("discovery_requests_total",
		"Discovery requests by outcome", "outcome")
	m.venuesDiscovered = m.histogram("venues_discovered",
		"Venues returned per discovery batch", []float64{0, 1, 2, 5, 10, 20, 40, 60})
	m.locationFallbacks = m.counter("location_fallbacks_total",
		"Times the default origin was used because the position was unavailable")
	m.idempotentReplays = m.counter("idempotent_replays_total",
		"Commands skipped because their idempotency key was already seen")

	m.collaboratorLatency = m.histogramVec("collaborator_latency_milliseconds",
		"Latency of external collaborator calls in milliseconds", "collaborator")
	m.collaboratorErrors = m.counterVec("collaborator_errors_total",
		"External collaborator failures", "collaborator", "reason")
	m.breakerState = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("circuit_breaker_state"),
		Help:        "Circuit breaker state per collaborator (0=closed, 1=half-open, 2=open)",
		ConstLabels: m.customLabels,
	}, []string{"collaborator"})
	m.geocodeCollapsed = m.counter("geocode_collapsed_total",
		"Geocode lookups answered by an identical in-flight lookup")

	m.mailboxCapacity = m.gauge("mailbox_capacity", "Per-session mailbox capacity")
	m.mailboxDepth = m.gauge("mailbox_depth", "Depth of the most recently touched mailbox")
	m.mailboxEnqueued = m.counter("mailbox_enqueued_total", "Messages accepted into session mailboxes")
	m.mailboxRejected = m.counterVec("mailbox_rejected_total", "Messages refused by session mailboxes", "reason")
	m.messageLatency = m.histogramVec("message_latency_milliseconds",
		"Event loop handling latency per message kind", "kind")
	m.messageProcessed = m.counterVec("messages_processed_total",
		"Messages handled by session event loops", "kind")

	m.httpRequests = m.counterVec("http_requests_total", "Total HTTP requests",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"HTTP errors by endpoint and error code", "endpoint", "method", "code")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Sessions.

// UpdateSessionsActive sets the number of live sessions.
func UpdateSessionsActive(n int) { globalManager.sessionsActive.Set(float64(n)) }

// RecordSessionCreated counts a new session.
func RecordSessionCreated() { globalManager.sessionsCreated.Inc() }

// RecordSessionExpired counts an idle expiry.
func RecordSessionExpired() { globalManager.sessionsExpired.Inc() }

// RecordSessionClosed counts an explicit close.
func RecordSessionClosed() { globalManager.sessionsClosed.Inc() }

// Planning state machines.

// RecordSelectionMutation counts a successful selection mutation and the resulting size.
func RecordSelectionMutation(op string, size int) {
	globalManager.selectionMutations.WithLabelValues(op).Inc()
	globalManager.selectionSize.Observe(float64(size))
}

// RecordDrag counts a drag gesture by result (committed, noop, ignored, aborted).
func RecordDrag(result string) { globalManager.drags.WithLabelValues(result).Inc() }

// RecordRouteRequest counts a route request outcome.
func RecordRouteRequest(outcome string) { globalManager.routeRequests.WithLabelValues(outcome).Inc() }

// RecordDiscovery counts a discovery outcome and, when applied, the batch size.
func RecordDiscovery(outcome string, venues int) {
	globalManager.discoveryRequests.WithLabelValues(outcome).Inc()
	if outcome == "applied" {
		globalManager.venuesDiscovered.Observe(float64(venues))
	}
}

// RecordLocationFallback counts use of the default origin.
func RecordLocationFallback() { globalManager.locationFallbacks.Inc() }

// RecordIdempotentReplay counts a command skipped as a duplicate.
func RecordIdempotentReplay() { globalManager.idempotentReplays.Inc() }

// Collaborators.

// RecordCollaboratorLatency records how long an external call took.
func RecordCollaboratorLatency(collaborator string, latencyMs float64) {
	globalManager.collaboratorLatency.WithLabelValues(collaborator).Observe(latencyMs)
}

// RecordCollaboratorError counts an external call failure.
func RecordCollaboratorError(collaborator, reason string) {
	globalManager.collaboratorErrors.WithLabelValues(collaborator, reason).Inc()
}

// UpdateBreakerState publishes a circuit breaker state.
func UpdateBreakerState(collaborator string, state float64) {
	globalManager.breakerState.WithLabelValues(collaborator).Set(state)
}

// RecordGeocodeCollapsed counts a geocode answered by a shared flight.
func RecordGeocodeCollapsed() { globalManager.geocodeCollapsed.Inc() }

// Mailbox and event loop.

// UpdateMailboxCapacity sets the configured mailbox capacity.
func UpdateMailboxCapacity(capacity int) { globalManager.mailboxCapacity.Set(float64(capacity)) }

// UpdateMailboxDepth sets the observed mailbox depth.
func UpdateMailboxDepth(depth int) { globalManager.mailboxDepth.Set(float64(depth)) }

// RecordMailboxEnqueue counts an accepted message.
func RecordMailboxEnqueue() { globalManager.mailboxEnqueued.Inc() }

// RecordMailboxRejected counts a refused message.
func RecordMailboxRejected(reason string) {
	globalManager.mailboxRejected.WithLabelValues(reason).Inc()
}

// RecordMessageHandled records event loop handling for one message kind.
func RecordMessageHandled(kind string, latencyMs float64) {
	globalManager.messageProcessed.WithLabelValues(kind).Inc()
	globalManager.messageLatency.WithLabelValues(kind).Observe(latencyMs)
}

// HTTP.

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint counts an error response by code.
func RecordErrorByEndpoint(endpoint, method, code string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, code).Inc()
}

// System.

// UpdateSystemMemoryUsage sets heap bytes allocated.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
