package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/sweeply/tidyboard/internal/domain/types"
)

// BoardReader is the slice of the service the listing endpoint reads from.
type BoardReader interface {
	TopN(ctx context.Context, scope types.Scope, area string, n int) ([]Entry, error)
}

// LeaderboardHandler serves the top-N board listing.
type LeaderboardHandler struct {
	boards   BoardReader
	maxLimit int
}

// NewLeaderboardHandler wires the query dependency and the limit cap.
func NewLeaderboardHandler(boards BoardReader, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		boards:   boards,
		maxLimit: maxLimit,
	}
}

// HandleGetLeaderboard handles GET /leaderboard?scope=S&area=A&limit=N requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	scope, area, err := parseScope(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		respondError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if n > h.maxLimit {
		respondError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	entries, err := h.boards.TopN(r.Context(), scope, area, n)
	if err != nil {
		if isInvalidInput(err) {
			respondError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
