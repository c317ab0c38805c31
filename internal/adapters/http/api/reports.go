package api

import (
	"encoding/json"
	"net/http"

	"github.com/sweeply/tidyboard/internal/ratelimit"
)

// ReportsHandler handles report submissions.
type ReportsHandler struct {
	deps    Backend
	limiter *ratelimit.KeyedRateLimiter
}

// ReportsOption configures the reports handler.
type ReportsOption func(*ReportsHandler)

// WithRateLimiter sets a per-device rate limiter. A nil limiter leaves
// rate limiting disabled.
func WithRateLimiter(l *ratelimit.KeyedRateLimiter) ReportsOption {
	return func(h *ReportsHandler) {
		if l != nil {
			h.limiter = l
		}
	}
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(deps Backend, opts ...ReportsOption) *ReportsHandler {
	h := &ReportsHandler{deps: deps}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandlePostReport handles POST /reports requests.
func (h *ReportsHandler) HandlePostReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_report"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	// Per-device throttle, checked before the dedupe store so a rejected
	// submission leaves no state behind.
	if h.limiter != nil && !h.limiter.Allow(req.DeviceID) {
		respondError(w, http.StatusTooManyRequests, "rate_limited", NewKind(op, ErrRateLimited))
		return
	}

	// Idempotency check - mark as seen first
	if h.deps.SeenAndRecord(r.Context(), req.ReportID) {
		respondJSON(w, http.StatusOK, ackBody{Status: "duplicate", Duplicate: true})
		return
	}

	// Try to enqueue for async processing
	if ok := h.deps.Enqueue(r.Context(), req.toModel()); !ok {
		// Rollback the "seen" status since enqueue failed
		h.deps.Unrecord(r.Context(), req.ReportID)
		respondError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	respondJSON(w, http.StatusAccepted, ackBody{Status: "accepted", Duplicate: false})
}
