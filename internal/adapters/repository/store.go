// Package repository stores the boards and answers rank queries.
package repository

import (
	"context"

	"github.com/sweeply/tidyboard/internal/domain/model"
	"github.com/sweeply/tidyboard/internal/domain/types"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank     int
	DeviceID string
	Reports  int
	Points   float64
}

// Store provides read/write access to the ranking state.
type Store interface {
	// Apply accumulates points and one report for a device, on the city
	// board and on the board of the report's area. Returns the device's
	// new city totals.
	Apply(ctx context.Context, deviceID, area string, points float64) (model.Tally, error)

	// Rank returns the current rank and totals for a device within a scope.
	// Returns ErrNotFound if the device is unknown on that board, and
	// ErrUnknownArea if scope is area and no such area is tracked.
	Rank(ctx context.Context, scope types.Scope, area, deviceID string) (Entry, error)

	// TopN returns the top-N entries of a scope ordered by points desc.
	// An area nobody has reported in yet yields an empty slice, not an error.
	TopN(ctx context.Context, scope types.Scope, area string, n int) ([]Entry, error)

	// Count returns the number of devices tracked on a board. Unknown
	// areas count zero.
	Count(ctx context.Context, scope types.Scope, area string) int

	// Areas returns the area codes with at least one report, sorted.
	Areas(ctx context.Context) []string
}
