// Package model holds the report type shared by every layer.
package model

import "time"

// Report represents a cleanup report submitted by a device.
// Fields mirror the OpenAPI schema for /reports.
type Report struct {
	ReportID  string    // unique id for idempotency
	DeviceID  string    // reporting device identifier
	Area      string    // area code the report belongs to
	Kind      string    // litter kind, e.g., "litter", "dumping"
	Severity  int       // reporter-assessed severity, 1..5
	Latitude  float64   // report location
	Longitude float64   // report location
	TS        time.Time // report timestamp
}

// Tally captures a device's accumulated report count and points.
type Tally struct {
	DeviceID string
	Reports  int
	Points   float64
}
