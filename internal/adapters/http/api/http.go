// Package api implements the leaderboard HTTP handlers and their routing.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sweeply/tidyboard/internal/domain/dedupe"
	"github.com/sweeply/tidyboard/internal/domain/model"
	"github.com/sweeply/tidyboard/internal/domain/types"
)

// Backend is everything the handlers need from the service layer,
// bundled so the API package never imports a concrete implementation.
type Backend interface {
	dedupe.Deduper

	// Enqueue pushes a report for async processing. Returns false on backpressure.
	Enqueue(ctx context.Context, r model.Report) bool

	// Board reads.
	TopN(ctx context.Context, scope types.Scope, area string, n int) ([]Entry, error)
	Rank(ctx context.Context, scope types.Scope, area, deviceID string) (Entry, error)
}

// Entry is the read shape board queries return.
type Entry = types.Entry

// Server groups the handlers behind one Register call.
type Server struct {
	health    *HealthHandler
	stats     *StatsHandler
	reports   *ReportsHandler
	board     *LeaderboardHandler
	rank      *RankHandler
	dashboard *dashboardHandler
}

// NewServer builds every handler. Options apply to the reports handler
// (rate limiting).
func NewServer(deps Backend, stats StatsSource, maxLimit int, opts ...ReportsOption) *Server {
	return &Server{
		health:    NewHealthHandler(),
		stats:     NewStatsHandler(stats),
		reports:   NewReportsHandler(deps, opts...),
		board:     NewLeaderboardHandler(deps, maxLimit),
		rank:      NewRankHandler(deps),
		dashboard: newDashboardHandler(),
	}
}

// Register hangs every route off mux, most specific path first.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.health.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboard.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.stats.HandleStats, "stats"))
	mux.HandleFunc("/reports", MetricsMiddleware(s.reports.HandlePostReport, "reports"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.board.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rank.HandleGetRank, "rank"))
}

// reportRequest mirrors the OpenAPI schema for POST /reports.
type reportRequest struct {
	ReportID  string  `json:"report_id"`
	DeviceID  string  `json:"device_id"`
	Area      string  `json:"area"`
	Kind      string  `json:"kind"`
	Severity  int     `json:"severity"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	TS        string  `json:"ts"`
}

func (r reportRequest) validate() error {
	switch {
	case strings.TrimSpace(r.ReportID) == "":
		return errors.New("missing report_id")
	case strings.TrimSpace(r.DeviceID) == "":
		return errors.New("missing device_id")
	case strings.TrimSpace(r.Kind) == "":
		return errors.New("missing kind")
	case strings.TrimSpace(r.TS) == "":
		return errors.New("missing ts")
	}
	if r.Severity < 1 || r.Severity > 5 {
		return errors.New("severity must be between 1 and 5")
	}
	if _, err := time.Parse(time.RFC3339, r.TS); err != nil {
		return errors.New("ts is not valid RFC3339")
	}
	return nil
}

// toModel converts a validated request. TS has already been checked.
func (r reportRequest) toModel() model.Report {
	ts, _ := time.Parse(time.RFC3339, r.TS)
	return model.Report{
		ReportID:  r.ReportID,
		DeviceID:  r.DeviceID,
		Area:      strings.TrimSpace(r.Area),
		Kind:      r.Kind,
		Severity:  r.Severity,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		TS:        ts,
	}
}

type ackBody struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
