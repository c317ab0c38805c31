package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sweeply/tidyboard/internal/domain/types"
)

// defaultRequestTimeout bounds a single leaderboard fetch.
const defaultRequestTimeout = 10 * time.Second

// Provider supplies leaderboard entries for a scope. The screen renders
// whatever order the provider returns; it never sorts.
type Provider interface {
	Fetch(ctx context.Context, scope types.Scope, area string, limit int) ([]types.Entry, error)
}

// HTTPProvider fetches entries from the service's GET /leaderboard endpoint.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a provider pointed at the service base URL,
// e.g. "http://localhost:9080".
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}
}

// Fetch requests the top entries for the given scope.
func (p *HTTPProvider) Fetch(ctx context.Context, scope types.Scope, area string, limit int) ([]types.Entry, error) {
	q := url.Values{}
	q.Set("scope", string(scope))
	if area != "" {
		q.Set("area", area)
	}
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/leaderboard?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build leaderboard request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiErrorFrom(resp)
	}

	var entries []types.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode leaderboard response: %w", err)
	}
	return entries, nil
}

// apiErrorFrom turns a non-200 response into an error carrying the
// service's message when one is present.
func apiErrorFrom(resp *http.Response) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Message == "" {
		return fmt.Errorf("leaderboard request failed: %s", resp.Status)
	}
	return fmt.Errorf("leaderboard request failed: %s", body.Message)
}
