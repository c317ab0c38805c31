// Package queue defines the contract for enqueuing and consuming reports.
//
// The in-memory implementation is a bounded channel; other transports can
// sit behind the same interface.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/sweeply/tidyboard/internal/domain/model"
	"github.com/sweeply/tidyboard/pkg/metrics"
)

// Capacity defaults, overridable through options.
const (
	defaultCapacity = 100000
	defaultBuffer   = 100000
)

// Report is the payload type flowing through the queue.
type Report = model.Report

// Queue accepts reports without blocking and serves them out over a channel.
type Queue interface {
	// Enqueue adds a report to the queue.
	// Returns false if the queue is full and the report was not enqueued.
	Enqueue(ctx context.Context, r Report) bool

	// Dequeue returns a channel fed with reports as they arrive.
	// The channel closes when the queue does.
	Dequeue(ctx context.Context) <-chan Report

	// Len returns the current number of queued reports.
	Len(ctx context.Context) int

	// Close shuts down the queue. No report is accepted afterward; the
	// dequeue channel drains what remains, then closes.
	Close() error

	// IsClosed reports whether Close has been called.
	IsClosed() bool
}

// InMemoryQueue implements Queue on top of a buffered channel.
type InMemoryQueue struct {
	reports    chan Report
	capacity   int
	bufferSize int
	mu         sync.RWMutex
	closed     bool
}

// NewInMemoryQueue creates an in-memory queue, applying any options over
// the defaults.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:   defaultCapacity,
		bufferSize: defaultBuffer,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.reports = make(chan Report, q.bufferSize)

	metrics.SetQueueCapacity(q.capacity)
	metrics.SetQueueDepth(0)
	metrics.SetQueueFill(0.0)

	return q
}

// publishDepth pushes the current backlog and fill ratio to the gauges.
func (q *InMemoryQueue) publishDepth() int {
	size := len(q.reports)
	metrics.SetQueueDepth(size)
	metrics.SetQueueFill(float64(size) / float64(q.capacity))
	return size
}

// Enqueue adds a report to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r Report) bool { //nolint:gocritic // hugeParam: Report must be passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.ObserveEnqueueLatency(float64(time.Since(start).Milliseconds()))
	}()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.IncEnqueueRejected()
		metrics.IncComponentError("queue", "closed")
		return false
	}

	// capacity can be tighter than the channel buffer
	if len(q.reports) >= q.capacity {
		metrics.IncEnqueueRejected()
		metrics.IncComponentError("queue", "capacity_exceeded")
		return false
	}

	select {
	case q.reports <- r:
		metrics.IncEnqueued()
		q.publishDepth()
		return true
	case <-ctx.Done():
		metrics.IncEnqueueRejected()
		metrics.IncComponentError("queue", "context_cancelled")
		return false
	default:
		metrics.IncEnqueueRejected()
		metrics.IncComponentError("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel fed with queued reports. The channel closes
// once the queue is closed and drained, or when ctx is done.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Report {
	out := make(chan Report)
	go func() {
		defer close(out)
		for report := range q.reports {
			select {
			case out <- report:
				metrics.IncDequeued()
				q.publishDepth()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued reports.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return q.publishDepth()
}

// Close shuts down the queue. Safe to call once; later calls are no-ops.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.reports)
	q.closed = true

	return nil
}

// IsClosed reports whether Close has been called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
