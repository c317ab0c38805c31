package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/sweeply/tidyboard/internal/domain/types"
)

// RankReader is the slice of the service the rank endpoint reads from.
type RankReader interface {
	Rank(ctx context.Context, scope types.Scope, area, deviceID string) (Entry, error)
}

// RankHandler serves per-device rank lookups.
type RankHandler struct {
	ranks RankReader
}

// NewRankHandler wires the lookup dependency.
func NewRankHandler(ranks RankReader) *RankHandler {
	return &RankHandler{ranks: ranks}
}

// HandleGetRank handles GET /rank/{device_id} requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.rank"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// The device id rides the path after /rank/.
	deviceID := strings.TrimPrefix(r.URL.Path, "/rank/")
	if deviceID == "" || strings.Contains(deviceID, "/") {
		respondError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	scope, area, err := parseScope(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	entry, err := h.ranks.Rank(r.Context(), scope, area, deviceID)
	if err != nil {
		if isNotFound(err) {
			respondError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		if isInvalidInput(err) {
			respondError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	respondJSON(w, http.StatusOK, entry)
}
