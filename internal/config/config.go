// Package config declares the service settings and how they are loaded.
//
// Conventions:
// - Defaults live in New; Load layers file and environment on top.
// - External errors must be wrapped via this package's sentinel errors.
package config

import (
	"runtime"
)

// Config is everything the process reads at startup.
type Config struct {
	// LogLevel sets the log verbosity, debug through error.
	LogLevel string `koanf:"log_level"`

	// Addr is the HTTP listen address, host part optional (":9080").
	Addr string `koanf:"addr"`

	// ReportQueueSize bounds the in-memory report queue.
	ReportQueueSize int `koanf:"queue_size"`

	// WorkerCount is how many workers drain the report queue.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the report-id deduplication window.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps the limit parameter on board listings.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// KindWeights maps litter kinds to their scoring weights.
	KindWeights map[string]float64 `koanf:"kind_weights"`

	// DefaultKindWeight is used for unknown kinds.
	DefaultKindWeight float64 `koanf:"default_kind_weight"`

	// ArchivePath points at the SQLite report journal. Empty disables
	// journaling and replay.
	ArchivePath string `koanf:"archive_path"`

	// ReportRPS and ReportBurst bound report submissions per device.
	// A non-positive rate disables the limiter.
	ReportRPS   float64 `koanf:"report_rps"`
	ReportBurst int     `koanf:"report_burst"`
}

// New returns the default Config that Load layers file and environment
// values onto.
func New() *Config {
	c := &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		ReportQueueSize:     100_000,
		WorkerCount:         runtime.NumCPU() * 10,
		DedupeSize:          500_000,
		MaxLeaderboardLimit: 100,
		KindWeights: map[string]float64{
			"litter":      10,
			"dumping":     40,
			"overflow":    15,
			"hazard":      30,
			"graffiti":    8,
			"dog_fouling": 12,
		},
		DefaultKindWeight: 10,
		ArchivePath:       "",
		ReportRPS:         5,
		ReportBurst:       10,
	}
	return c
}
