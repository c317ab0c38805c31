// Package repository stores the boards and answers rank queries.
package repository

import "time"

// Option tunes a TreapStore at construction.
type Option func(*TreapStore)

// WithMetricsUpdateInterval changes how often the store refreshes its gauges.
func WithMetricsUpdateInterval(every time.Duration) Option {
	return func(s *TreapStore) {
		if every > 0 {
			s.metricsUpdateInterval = every
		}
	}
}
