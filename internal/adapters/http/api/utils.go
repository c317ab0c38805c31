package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sweeply/tidyboard/internal/adapters/repository"
	"github.com/sweeply/tidyboard/internal/domain/types"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	respondJSON(w, status, errorBody{Code: code, Message: msg})
}

// parseScope reads the scope and area query parameters. A missing scope
// means the city board; scope=area requires a non-empty area code.
func parseScope(r *http.Request) (types.Scope, string, error) {
	area := strings.TrimSpace(r.URL.Query().Get("area"))

	scopeStr := r.URL.Query().Get("scope")
	if scopeStr == "" {
		return types.ScopeCity, area, nil
	}

	scope := types.Scope(scopeStr)
	if !scope.Valid() {
		return "", "", errors.New("invalid scope; must be city or area")
	}
	if scope == types.ScopeArea && area == "" {
		return "", "", errors.New("scope=area requires an area code")
	}
	return scope, area, nil
}

// isNotFound reports whether an upstream error should map to a 404.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrUnknownArea)
}

// isInvalidInput reports whether an upstream error should map to a 400.
func isInvalidInput(err error) bool {
	return errors.Is(err, repository.ErrInvalidScope) || errors.Is(err, repository.ErrInvalidLimit)
}
