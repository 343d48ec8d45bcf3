package api

import (
	"net/http"
	"strings"

	"github.com/okian/crawlplan/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker reports readiness.
type HealthChecker interface {
	Healthy() bool
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler creates a new health handler. A nil checker is always healthy.
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

type healthResponse struct {
	Status string `json:"status"`
}

// HandleHealth handles GET /healthz requests.
// If the Accept header asks for text/plain it returns Prometheus metrics,
// otherwise a JSON status.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if wantsMetrics(r.Header.Get("Accept")) {
		MetricsHandler().ServeHTTP(w, r)
		return
	}
	if h.checker != nil && !h.checker.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// MetricsHandler serves the service registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}

func wantsMetrics(accept string) bool {
	accept = strings.ToLower(accept)
	return strings.Contains(accept, "application/openmetrics-text") || strings.Contains(accept, "text/plain")
}
