// Package dedupe remembers which report ids have already been accepted.
package dedupe

// Option adjusts a deduper at construction.
type Option func(*memDeduper)

// WithMaxSize bounds how many ids the deduper remembers; at the bound the
// oldest id is evicted first. Zero or negative keeps every id for the life
// of the process.
func WithMaxSize(maxSize int) Option {
	return func(d *memDeduper) {
		d.maxSize = maxSize
	}
}
