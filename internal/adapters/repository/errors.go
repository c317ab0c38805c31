package repository

import "errors"

// Error kinds the store hands back; callers match them with errors.Is.
var (
	ErrNotFound     = errors.New("device not found")
	ErrInvalidLimit = errors.New("limit out of range")
	ErrUnknownArea  = errors.New("unknown area")
	ErrInvalidScope = errors.New("invalid scope")
)
