// Package worker defines worker contracts for asynchronous scoring and board updates.
package worker

import (
	"sync/atomic"

	"github.com/sweeply/tidyboard/pkg/logger"
)

// Option adjusts a single worker at construction.
type Option func(*ScoringWorker)

// WithName labels the worker in logs.
func WithName(name string) Option {
	return func(w *ScoringWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger routes the worker's logging through the given logger.
func WithLogger(l logger.Logger) Option {
	return func(w *ScoringWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithArchiver sets the journal the worker appends scored reports to.
func WithArchiver(archiver Archiver) Option {
	return func(w *ScoringWorker) {
		if archiver != nil {
			w.archiver = archiver
		}
	}
}

// withProcessedCounter shares the pool's processed counter with a worker.
func withProcessedCounter(counter *atomic.Int64) Option {
	return func(w *ScoringWorker) {
		if counter != nil {
			w.processed = counter
		}
	}
}
