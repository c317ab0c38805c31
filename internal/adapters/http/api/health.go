package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeply/tidyboard/pkg/metrics"
)

// HealthHandler serves liveness and the metrics exposition.
type HealthHandler struct {
	exposition http.Handler
}

// NewHealthHandler builds the exposition handler once, up front.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		exposition: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz requests by serving the prometheus
// exposition for the service registry. A scrape that succeeds doubles as
// the liveness signal.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.exposition.ServeHTTP(w, r)
}
