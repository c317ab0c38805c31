// Package repository stores the boards and answers rank queries.
package repository

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/sweeply/tidyboard/internal/domain/model"
	"github.com/sweeply/tidyboard/internal/domain/types"
	"github.com/sweeply/tidyboard/pkg/metrics"
)

// Each board is a treap keyed on (points, deviceID): the comparator puts
// more points first and breaks ties on ascending id, so an in-order walk
// reads the board best to worst. Random heap priorities keep writes at
// expected O(log n).

// pointsScale controls fixed-point scaling from float64.
const pointsScale = 1_000_000_000 // 9 decimal places, leaves headroom for large totals

type pointsFP int64

func toFixedPoint(x float64) pointsFP {
	if math.IsNaN(x) {
		return 0
	}
	if math.IsInf(x, 1) {
		return pointsFP(math.MaxInt64)
	}
	if math.IsInf(x, -1) {
		return pointsFP(math.MinInt64)
	}

	v := x * pointsScale
	if v > float64(math.MaxInt64) {
		return pointsFP(math.MaxInt64)
	}
	if v < float64(math.MinInt64) {
		return pointsFP(math.MinInt64)
	}
	return pointsFP(math.Round(v))
}

func toFloat(x pointsFP) float64 {
	return float64(x) / pointsScale
}

// add sums two fixed-point values, saturating instead of wrapping.
func (a pointsFP) add(b pointsFP) pointsFP {
	if b > 0 && a > pointsFP(math.MaxInt64)-b {
		return pointsFP(math.MaxInt64)
	}
	if b < 0 && a < pointsFP(math.MinInt64)-b {
		return pointsFP(math.MinInt64)
	}
	return a + b
}

// record stores the fixed-point running total plus the report count for a device.
type record struct {
	points  pointsFP
	reports int
}

// node is one board position in the treap.
type node struct {
	id     string
	points pointsFP
	prio   uint64
	left   *node
	right  *node
	size   int
}

func (n *node) treeSize() int {
	if n == nil {
		return 0
	}
	return n.size
}

func (n *node) recount() {
	if n != nil {
		n.size = 1 + n.left.treeSize() + n.right.treeSize()
	}
}

// ranksBefore reports whether (p, id) sits above (q, qid) on a board.
func ranksBefore(p pointsFP, id string, q pointsFP, qid string) bool {
	if p != q {
		return p > q
	}
	return id < qid
}

// rotateRight lifts the left child above n; rotateLeft mirrors it.

func (n *node) rotateRight() *node {
	l := n.left
	n.left = l.right
	l.right = n
	n.recount()
	l.recount()
	return l
}

func (n *node) rotateLeft() *node {
	r := n.right
	n.right = r.left
	r.left = n
	n.recount()
	r.recount()
	return r
}

func (n *node) insert(id string, points pointsFP) *node {
	if n == nil {
		return &node{id: id, points: points, prio: rand.Uint64(), size: 1}
	}
	if ranksBefore(points, id, n.points, n.id) {
		n.left = n.left.insert(id, points)
		if n.prio < n.left.prio {
			n = n.rotateRight()
		}
	} else {
		n.right = n.right.insert(id, points)
		if n.prio < n.right.prio {
			n = n.rotateLeft()
		}
	}
	n.recount()
	return n
}

func (n *node) remove(id string, points pointsFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case points == n.points && id == n.id:
		// Rotate the higher-priority child up until the target is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.right.prio < n.left.prio {
			n = n.rotateRight()
			n.right = n.right.remove(id, points)
		} else {
			n = n.rotateLeft()
			n.left = n.left.remove(id, points)
		}
	case ranksBefore(points, id, n.points, n.id):
		n.left = n.left.remove(id, points)
	default:
		n.right = n.right.remove(id, points)
	}
	n.recount()
	return n
}

// appendTop walks in order, which yields (points desc, id asc) directly,
// and stops as soon as out reaches limit.
func (n *node) appendTop(limit int, byID map[string]record, out *[]Entry) {
	if len(*out) >= limit || n == nil {
		return
	}

	n.left.appendTop(limit, byID, out)

	if len(*out) < limit {
		if r, ok := byID[n.id]; ok {
			*out = append(*out, Entry{DeviceID: n.id, Reports: r.reports, Points: toFloat(r.points)})
		}
	}

	if len(*out) < limit {
		n.right.appendTop(limit, byID, out)
	}
}

// board is a single ranked leaderboard: one treap plus a device index.
type board struct {
	mu   sync.RWMutex
	root *node
	byID map[string]record
}

func newBoard() *board {
	return &board{byID: make(map[string]record)}
}

// apply accumulates points and one report for a device, reinserting it at
// its new position. Returns the new tally and whether the device is new
// to this board.
func (b *board) apply(deviceID string, points float64) (model.Tally, bool) {
	delta := toFixedPoint(points)

	b.mu.Lock()
	old, existed := b.byID[deviceID]
	if existed {
		b.root = b.root.remove(deviceID, old.points)
	}
	next := record{points: old.points.add(delta), reports: old.reports + 1}
	b.byID[deviceID] = next
	b.root = b.root.insert(deviceID, next.points)
	b.mu.Unlock()

	return model.Tally{DeviceID: deviceID, Reports: next.reports, Points: toFloat(next.points)}, !existed
}

// topN returns up to limit entries in rank order with tie-aware ranks.
func (b *board) topN(limit int) []Entry {
	b.mu.RLock()
	out := make([]Entry, 0, limit)
	b.root.appendTop(limit, b.byID, &out)
	b.mu.RUnlock()

	rankTies(out)
	return out
}

// rankOf walks the board in order, counting distinct point totals until it
// reaches the device. Devices with equal points share a rank.
func (b *board) rankOf(deviceID string) (Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.byID[deviceID]
	if !ok {
		return Entry{}, ErrNotFound
	}

	rank := 0
	var prev pointsFP
	stack := make([]*node, 0, 64)
	cur := b.root
	for cur != nil || len(stack) > 0 {
		for cur != nil {
			stack = append(stack, cur)
			cur = cur.left
		}
		cur = stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if rank == 0 || cur.points != prev {
			rank++
			prev = cur.points
		}
		if cur.id == deviceID {
			return Entry{Rank: rank, DeviceID: deviceID, Reports: rec.reports, Points: toFloat(rec.points)}, nil
		}
		cur = cur.right
	}

	// The index and the treap disagree; treat as missing.
	return Entry{}, ErrNotFound
}

func (b *board) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}

// rankTies stamps ranks onto entries already sorted best to worst. Equal
// totals share a rank and the next distinct total takes the one after.
func rankTies(entries []Entry) {
	rank := 0
	var prev float64
	for i := range entries {
		if rank == 0 || entries[i].Points != prev {
			rank++
			prev = entries[i].Points
		}
		entries[i].Rank = rank
	}
}

// TreapStore tracks one city-wide board plus a lazily created board per area.
type TreapStore struct {
	mu    sync.RWMutex
	city  *board
	areas map[string]*board

	metricsUpdateInterval time.Duration

	wg   sync.WaitGroup
	quit chan struct{}
}

// NewTreapStore builds an empty store and starts its gauge refresher.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		city:                  newBoard(),
		areas:                 make(map[string]*board),
		metricsUpdateInterval: 5 * time.Second, // gauge refresh cadence
	}
	for _, opt := range opts {
		opt(s)
	}

	s.quit = make(chan struct{})
	metrics.SetBoardCount(1) // city board only, until areas appear
	s.runGaugeRefresher(ctx)

	return s
}

// Close stops the gauge refresher. Closing twice is fine.
func (s *TreapStore) Close() error {
	select {
	case <-s.quit:
	default:
		close(s.quit)
	}
	s.wg.Wait()
	return nil
}

// areaBoard returns the board for an area, creating it on first use.
func (s *TreapStore) areaBoard(area string) *board {
	s.mu.RLock()
	b, ok := s.areas[area]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.areas[area]; ok {
		return b
	}
	b = newBoard()
	s.areas[area] = b
	metrics.SetBoardCount(1 + len(s.areas))
	return b
}

// Apply implements Store.Apply with O(log n) expected time per board.
func (s *TreapStore) Apply(ctx context.Context, deviceID, area string, points float64) (model.Tally, error) {
	start := time.Now()
	defer func() {
		metrics.ObserveStoreWriteLatency(float64(time.Since(start).Milliseconds()))
	}()

	tally, isNewDevice := s.city.apply(deviceID, points)

	// The area board accumulates independently; a report with no area only
	// moves the city board.
	if area != "" {
		s.areaBoard(area).apply(deviceID, points)
	}

	// Gauges move outside the board locks
	if isNewDevice {
		metrics.SetStoreDevices(s.city.count())
	}

	return tally, nil
}

// Rank returns the current rank and totals for a device in a scope.
func (s *TreapStore) Rank(ctx context.Context, scope types.Scope, area, deviceID string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.ObserveStoreReadLatency(float64(time.Since(start).Milliseconds()))
	}()

	b, err := s.boardFor(scope, area)
	if err != nil {
		metrics.IncComponentError("store", "unknown_area")
		return Entry{}, err
	}

	entry, err := b.rankOf(deviceID)
	if err != nil {
		metrics.IncComponentError("store", "not_found")
		return Entry{}, err
	}
	return entry, nil
}

// TopN returns the top N entries of a scope ordered by points desc.
func (s *TreapStore) TopN(ctx context.Context, scope types.Scope, area string, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.ObserveStoreReadLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.IncComponentError("store", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	switch scope {
	case types.ScopeCity:
		return s.city.topN(n), nil
	case types.ScopeArea:
		if area == "" {
			metrics.IncComponentError("store", "unknown_area")
			return nil, ErrUnknownArea
		}
		s.mu.RLock()
		b, ok := s.areas[area]
		s.mu.RUnlock()
		if !ok {
			// Nobody has reported in this area yet; an empty leaderboard,
			// not an error.
			return []Entry{}, nil
		}
		return b.topN(n), nil
	default:
		metrics.IncComponentError("store", "invalid_scope")
		return nil, ErrInvalidScope
	}
}

// Count returns the number of devices tracked on a board.
func (s *TreapStore) Count(ctx context.Context, scope types.Scope, area string) int {
	switch scope {
	case types.ScopeCity:
		return s.city.count()
	case types.ScopeArea:
		s.mu.RLock()
		b, ok := s.areas[area]
		s.mu.RUnlock()
		if !ok {
			return 0
		}
		return b.count()
	default:
		return 0
	}
}

// Areas returns the tracked area codes in sorted order.
func (s *TreapStore) Areas(ctx context.Context) []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.areas))
	for code := range s.areas {
		out = append(out, code)
	}
	s.mu.RUnlock()

	sort.Strings(out)
	return out
}

// boardFor resolves a scope/area pair to a board for rank queries.
func (s *TreapStore) boardFor(scope types.Scope, area string) (*board, error) {
	switch scope {
	case types.ScopeCity:
		return s.city, nil
	case types.ScopeArea:
		if area == "" {
			return nil, ErrUnknownArea
		}
		s.mu.RLock()
		b, ok := s.areas[area]
		s.mu.RUnlock()
		if !ok {
			return nil, ErrUnknownArea
		}
		return b, nil
	default:
		return nil, ErrInvalidScope
	}
}

func (s *TreapStore) runGaugeRefresher(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.quit:
				return
			case <-ticker.C:
				s.publishGauges()
			}
		}
	}()
}

// publishGauges snapshots per-board device counts under the read lock,
// then publishes outside it.
func (s *TreapStore) publishGauges() {
	cityCount := s.city.count()

	s.mu.RLock()
	areaCounts := make(map[string]int, len(s.areas))
	for code, b := range s.areas {
		areaCounts[code] = b.count()
	}
	s.mu.RUnlock()

	metrics.SetStoreDevices(cityCount)
	metrics.SetBoardCount(1 + len(areaCounts))
	metrics.SetBoardDevices("city", cityCount)
	for code, n := range areaCounts {
		metrics.SetBoardDevices("area:"+code, n)
	}
}
