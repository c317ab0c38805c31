// Package queue defines the contract for enqueuing and consuming reports.
package queue

// Option adjusts an InMemoryQueue at construction.
type Option func(*InMemoryQueue)

// WithCapacity bounds how many reports the queue will hold.
func WithCapacity(n int) Option {
	return func(q *InMemoryQueue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithBufferSize sizes the channel behind the queue, normally set
// alongside WithCapacity.
func WithBufferSize(n int) Option {
	return func(q *InMemoryQueue) {
		if n > 0 {
			q.bufferSize = n
		}
	}
}
