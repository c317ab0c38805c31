// Package dedupe remembers which report ids have already been accepted.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen report IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord marks id as seen and reports whether it had been
	// seen before. Check and record happen under one lock, so two
	// concurrent calls for the same id cannot both get false.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so it can be submitted again. Meant for the
	// case where an id was marked seen but its report never made it
	// into the pipeline, such as on queue backpressure.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// memDeduper implements Deduper with FIFO eviction.
// Bounded (maxSize > 0): a ring of ids plus an id->slot map; once full,
// each new id overwrites the oldest slot.
// Unbounded (maxSize <= 0): the map alone carries the set, nothing is
// ever evicted.
type memDeduper struct {
	mu      sync.Mutex
	seen    map[string]int // id -> ring slot when bounded, -1 otherwise
	ring    []string       // bounded mode only, write order is age order
	next    int            // next ring slot to write
	maxSize int            // 0 or negative means unbounded
	size    atomic.Int64   // live entry count
}

// NewInMemoryDeduper builds a deduper with the default bound; options
// adjust it.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &memDeduper{
		seen:    make(map[string]int),
		maxSize: 50000, // default bound
	}
	for _, opt := range opts {
		opt(d)
	}

	// The ring is sized once; WithMaxSize after construction would not work.
	if d.maxSize > 0 {
		d.ring = make([]string, d.maxSize)
	}

	return d
}

func (d *memDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if d.maxSize > 0 {
		// Bounded: overwrite the oldest slot. A slot is live only while
		// the map still points at it; Unrecord leaves stale slots behind
		// and the cursor reclaims them without evicting anything.
		slot := d.next
		if s, ok := d.seen[d.ring[slot]]; ok && s == slot {
			delete(d.seen, d.ring[slot])
			d.size.Add(-1)
		}
		d.ring[slot] = id
		d.seen[id] = slot
		d.next = (slot + 1) % d.maxSize
	} else {
		d.seen[id] = -1
	}
	d.size.Add(1)
	return false
}

func (d *memDeduper) Unrecord(ctx context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		// The ring slot (if any) goes stale and is reclaimed when the
		// write cursor passes it again.
		delete(d.seen, id)
		d.size.Add(-1)
	}
}

// Size reports how many ids are currently held.
func (d *memDeduper) Size() int64 {
	return d.size.Load()
}
