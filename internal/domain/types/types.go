// Package types holds small shared types for scopes and board entries
package types

// Scope selects which leaderboard a query runs against.
type Scope string

const (
	// ScopeCity ranks devices across the whole city.
	ScopeCity Scope = "city"
	// ScopeArea ranks devices within a single area.
	ScopeArea Scope = "area"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopeCity || s == ScopeArea
}

// Entry represents a leaderboard entry
type Entry struct {
	Rank     int     `json:"rank"`
	DeviceID string  `json:"device_id"`
	Reports  int     `json:"reports"`
	Points   float64 `json:"points"`
}
