// Package archive journals scored reports in SQLite so the in-memory boards
// can be rebuilt after a restart.
package archive

import (
	"time"

	"github.com/sweeply/tidyboard/pkg/logger"
)

// Option applies a configuration option to the SQLiteArchive.
type Option func(*SQLiteArchive)

// WithBusyTimeout sets how long writes wait on a locked database.
func WithBusyTimeout(timeout time.Duration) Option {
	return func(a *SQLiteArchive) {
		if timeout > 0 {
			a.busyTimeout = timeout
		}
	}
}

// WithLogger sets a custom logger for the archive.
func WithLogger(logger logger.Logger) Option {
	return func(a *SQLiteArchive) {
		if logger != nil {
			a.logger = logger
		}
	}
}
