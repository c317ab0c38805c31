package api

import (
	"net/http"
)

// StatsSource exposes a point-in-time snapshot of service counters.
type StatsSource interface {
	GetStats() map[string]any
}

// StatsHandler serves the operational counters endpoint.
type StatsHandler struct {
	src StatsSource
}

// NewStatsHandler wraps a provider for the /stats route.
func NewStatsHandler(src StatsSource) *StatsHandler {
	return &StatsHandler{src: src}
}

// HandleStats answers GET /stats with the provider's current snapshot.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	respondJSON(w, http.StatusOK, h.src.GetStats())
}
