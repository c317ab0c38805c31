package repository

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/sweeply/tidyboard/internal/domain/model"
	"github.com/sweeply/tidyboard/internal/domain/types"
)

// almostEqual absorbs float64 rounding when comparing awarded points.
func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func mustApply(t *testing.T, ctx context.Context, s *TreapStore, device, area string, points float64) model.Tally {
	t.Helper()
	totals, err := s.Apply(ctx, device, area, points)
	if err != nil {
		t.Fatalf("Apply(%s, %q, %v): %v", device, area, points, err)
	}
	return totals
}

func TestTreapStoreBasics(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	if count := store.Count(ctx, types.ScopeCity, ""); count != 0 {
		t.Errorf("Count on fresh store = %d, want 0", count)
	}

	totals := mustApply(t, ctx, store, "device1", "a-01", 85.5)
	if totals.Reports != 1 {
		t.Errorf("Reports = %d, want 1", totals.Reports)
	}
	if totals.Points != 85.5 {
		t.Errorf("Points = %f, want 85.5", totals.Points)
	}

	if count := store.Count(ctx, types.ScopeCity, ""); count != 1 {
		t.Errorf("city Count = %d, want 1", count)
	}
	if count := store.Count(ctx, types.ScopeArea, "a-01"); count != 1 {
		t.Errorf("area Count = %d, want 1", count)
	}

	entry, err := store.Rank(ctx, types.ScopeCity, "", "device1")
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if entry.Rank != 1 {
		t.Errorf("Rank = %d, want 1", entry.Rank)
	}
	if entry.Points != 85.5 {
		t.Errorf("Points = %f, want 85.5", entry.Points)
	}
	if entry.Reports != 1 {
		t.Errorf("Reports = %d, want 1", entry.Reports)
	}

	entries, err := store.TopN(ctx, types.ScopeCity, "", 10)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("TopN returned %d entries, want 1", len(entries))
	}
	if entries[0].DeviceID != "device1" {
		t.Errorf("top device = %s, want device1", entries[0].DeviceID)
	}
}

func TestTreapStoreAccumulation(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	totals := mustApply(t, ctx, store, "device1", "a-01", 50.0)
	if totals.Points != 50.0 || totals.Reports != 1 {
		t.Errorf("after first apply: (%f, %d), want (50.0, 1)", totals.Points, totals.Reports)
	}

	// The second report adds on top, it never replaces
	totals = mustApply(t, ctx, store, "device1", "a-01", 30.0)
	if totals.Points != 80.0 || totals.Reports != 2 {
		t.Errorf("after second apply: (%f, %d), want (80.0, 2)", totals.Points, totals.Reports)
	}

	// A smaller award still accumulates
	totals = mustApply(t, ctx, store, "device1", "a-01", 10.0)
	if totals.Points != 90.0 || totals.Reports != 3 {
		t.Errorf("after third apply: (%f, %d), want (90.0, 3)", totals.Points, totals.Reports)
	}

	entry, err := store.Rank(ctx, types.ScopeCity, "", "device1")
	if err != nil {
		t.Fatalf("city Rank: %v", err)
	}
	if entry.Points != 90.0 || entry.Reports != 3 {
		t.Errorf("city sees (%f, %d), want (90.0, 3)", entry.Points, entry.Reports)
	}

	entry, err = store.Rank(ctx, types.ScopeArea, "a-01", "device1")
	if err != nil {
		t.Fatalf("area Rank: %v", err)
	}
	if entry.Points != 90.0 || entry.Reports != 3 {
		t.Errorf("area sees (%f, %d), want (90.0, 3)", entry.Points, entry.Reports)
	}
}

func TestTreapStoreFixedPoint(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	// 0.1 cannot be represented exactly in binary floating point; the
	// fixed-point totals must still come out exact.
	for range 10 {
		mustApply(t, ctx, store, "device1", "a-01", 0.1)
	}

	entry, err := store.Rank(ctx, types.ScopeCity, "", "device1")
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if entry.Points != 1.0 {
		t.Errorf("ten applies of 0.1 total %.17f, want exactly 1.0", entry.Points)
	}
	if entry.Reports != 10 {
		t.Errorf("Reports = %d, want 10", entry.Reports)
	}
}

func TestTreapStoreOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	awards := []struct {
		id     string
		points float64
	}{
		{"device1", 85.0},
		{"device2", 95.0},
		{"device3", 75.0},
		{"device4", 100.0},
		{"device5", 80.0},
	}
	for _, a := range awards {
		mustApply(t, ctx, store, a.id, "a-01", a.points)
	}

	entries, err := store.TopN(ctx, types.ScopeCity, "", 10)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("TopN returned %d entries, want 5", len(entries))
	}

	for i := range entries[1:] {
		if entries[i].Points < entries[i+1].Points {
			t.Errorf("board out of order at %d: %f before %f", i, entries[i].Points, entries[i+1].Points)
		}
	}

	for i, entry := range entries {
		if want := i + 1; entry.Rank != want {
			t.Errorf("entry %d carries rank %d, want %d", i, entry.Rank, want)
		}
	}

	wantOrder := []string{"device4", "device2", "device1", "device5", "device3"}
	for i, want := range wantOrder {
		if entries[i].DeviceID != want {
			t.Errorf("position %d holds %s, want %s", i, entries[i].DeviceID, want)
		}
	}
}

func TestTreapStoreTies(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	// Two devices with the same total, one below them
	mustApply(t, ctx, store, "deviceB", "a-01", 100.0)
	mustApply(t, ctx, store, "deviceA", "a-01", 100.0)
	mustApply(t, ctx, store, "deviceC", "a-01", 40.0)

	entries, err := store.TopN(ctx, types.ScopeCity, "", 10)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("TopN returned %d entries, want 3", len(entries))
	}

	// Ties resolve by ascending device id
	if entries[0].DeviceID != "deviceA" {
		t.Errorf("first entry is %s, want deviceA", entries[0].DeviceID)
	}
	if entries[1].DeviceID != "deviceB" {
		t.Errorf("second entry is %s, want deviceB", entries[1].DeviceID)
	}

	// Tied devices share the rank, the next distinct total takes the following one
	if entries[0].Rank != 1 || entries[1].Rank != 1 {
		t.Errorf("tied ranks are %d and %d, want 1 and 1", entries[0].Rank, entries[1].Rank)
	}
	if entries[2].Rank != 2 {
		t.Errorf("deviceC rank = %d, want 2", entries[2].Rank)
	}

	// Rank queries agree with TopN
	for _, id := range []string{"deviceA", "deviceB"} {
		entry, err := store.Rank(ctx, types.ScopeCity, "", id)
		if err != nil {
			t.Fatalf("Rank(%s): %v", id, err)
		}
		if entry.Rank != 1 {
			t.Errorf("Rank(%s) = %d, want 1", id, entry.Rank)
		}
	}
	entry, err := store.Rank(ctx, types.ScopeCity, "", "deviceC")
	if err != nil {
		t.Fatalf("Rank(deviceC): %v", err)
	}
	if entry.Rank != 2 {
		t.Errorf("Rank(deviceC) = %d, want 2", entry.Rank)
	}
}

func TestTreapStoreAreaBoards(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	// device1 reports in two areas, device2 in one
	mustApply(t, ctx, store, "device1", "a-01", 50.0)
	mustApply(t, ctx, store, "device1", "a-02", 30.0)
	mustApply(t, ctx, store, "device2", "a-02", 60.0)

	// The city board sees the full totals
	entry, err := store.Rank(ctx, types.ScopeCity, "", "device1")
	if err != nil {
		t.Fatalf("city Rank: %v", err)
	}
	if entry.Points != 80.0 || entry.Reports != 2 {
		t.Errorf("city device1: (%f, %d), want (80.0, 2)", entry.Points, entry.Reports)
	}
	if entry.Rank != 1 {
		t.Errorf("city device1 rank = %d, want 1", entry.Rank)
	}

	// Area boards only see their own share
	entry, err = store.Rank(ctx, types.ScopeArea, "a-01", "device1")
	if err != nil {
		t.Fatalf("a-01 Rank: %v", err)
	}
	if entry.Points != 50.0 || entry.Reports != 1 {
		t.Errorf("a-01 device1: (%f, %d), want (50.0, 1)", entry.Points, entry.Reports)
	}

	entry, err = store.Rank(ctx, types.ScopeArea, "a-02", "device1")
	if err != nil {
		t.Fatalf("a-02 Rank: %v", err)
	}
	if entry.Points != 30.0 || entry.Rank != 2 {
		t.Errorf("a-02 device1: (%f, rank %d), want (30.0, rank 2)", entry.Points, entry.Rank)
	}

	// device2 never reported in a-01
	if _, err := store.Rank(ctx, types.ScopeArea, "a-01", "device2"); err != ErrNotFound {
		t.Errorf("Rank in foreign area = %v, want ErrNotFound", err)
	}

	entries, err := store.TopN(ctx, types.ScopeArea, "a-02", 10)
	if err != nil {
		t.Fatalf("a-02 TopN: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("a-02 TopN returned %d entries, want 2", len(entries))
	}
	if entries[0].DeviceID != "device2" {
		t.Errorf("a-02 leader is %s, want device2", entries[0].DeviceID)
	}

	// Tracked areas come back sorted
	areas := store.Areas(ctx)
	if len(areas) != 2 || areas[0] != "a-01" || areas[1] != "a-02" {
		t.Errorf("Areas = %v, want [a-01 a-02]", areas)
	}
}

func TestTreapStoreUnknownAreaAndScope(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	mustApply(t, ctx, store, "device1", "a-01", 10.0)

	// TopN on an area nobody reported in yet: empty board, not an error
	entries, err := store.TopN(ctx, types.ScopeArea, "a-99", 10)
	if err != nil {
		t.Fatalf("TopN on unseen area: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("unseen area board has %d entries, want 0", len(entries))
	}

	// Rank against an unknown area is an error
	if _, err := store.Rank(ctx, types.ScopeArea, "a-99", "device1"); err != ErrUnknownArea {
		t.Errorf("Rank in unseen area = %v, want ErrUnknownArea", err)
	}
	if _, err := store.Rank(ctx, types.ScopeArea, "", "device1"); err != ErrUnknownArea {
		t.Errorf("Rank with blank area = %v, want ErrUnknownArea", err)
	}

	if count := store.Count(ctx, types.ScopeArea, "a-99"); count != 0 {
		t.Errorf("Count of unseen area = %d, want 0", count)
	}

	// A scope the store does not know is rejected
	if _, err := store.TopN(ctx, types.Scope("planet"), "", 10); err != ErrInvalidScope {
		t.Errorf("TopN with bogus scope = %v, want ErrInvalidScope", err)
	}
	if _, err := store.Rank(ctx, types.Scope("planet"), "", "device1"); err != ErrInvalidScope {
		t.Errorf("Rank with bogus scope = %v, want ErrInvalidScope", err)
	}
}

func TestTreapStoreCityOnlyReport(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	// A report without an area only moves the city board
	mustApply(t, ctx, store, "device1", "", 25.0)

	if count := store.Count(ctx, types.ScopeCity, ""); count != 1 {
		t.Errorf("city Count = %d, want 1", count)
	}
	if areas := store.Areas(ctx); len(areas) != 0 {
		t.Errorf("Areas = %v, want none", areas)
	}
}

func TestTreapStoreConcurrentDevices(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	const writers, perWriter = 10, 100

	var wg sync.WaitGroup
	for id := range writers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range perWriter {
				device := fmt.Sprintf("device%d_%d", id, j)
				area := fmt.Sprintf("a-%02d", j%4)
				if _, err := store.Apply(ctx, device, area, float64(50+j)); err != nil {
					t.Errorf("writer %d: Apply: %v", id, err)
				}
			}
		}(id)
	}
	wg.Wait()

	if want, got := writers*perWriter, store.Count(ctx, types.ScopeCity, ""); got != want {
		t.Errorf("city Count = %d, want %d", got, want)
	}
	if areas := store.Areas(ctx); len(areas) != 4 {
		t.Errorf("tracked %d areas, want 4", len(areas))
	}

	entries, err := store.TopN(ctx, types.ScopeCity, "", 10)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(entries) != 10 {
		t.Errorf("TopN returned %d entries, want 10", len(entries))
	}
	for i := range entries[1:] {
		if entries[i].Points < entries[i+1].Points {
			t.Errorf("board out of order at %d: %f before %f", i, entries[i].Points, entries[i+1].Points)
		}
	}
}

func TestTreapStoreLimitsAndMisses(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	if _, err := store.TopN(ctx, types.ScopeCity, "", 0); err != ErrInvalidLimit {
		t.Errorf("TopN(0) = %v, want ErrInvalidLimit", err)
	}
	if _, err := store.TopN(ctx, types.ScopeCity, "", -1); err != ErrInvalidLimit {
		t.Errorf("TopN(-1) = %v, want ErrInvalidLimit", err)
	}

	if _, err := store.Rank(ctx, types.ScopeCity, "", "nonexistent"); err != ErrNotFound {
		t.Errorf("Rank of unseen device = %v, want ErrNotFound", err)
	}

	// Totals well past any realistic score still round-trip
	mustApply(t, ctx, store, "device1", "a-01", 1e6)
	entry, err := store.Rank(ctx, types.ScopeCity, "", "device1")
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if entry.Points != 1e6 {
		t.Errorf("Points = %f, want 1e6", entry.Points)
	}
}

func TestTreapStoreRankAgainstBruteForce(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	// Several random integral awards per device; integral points keep the
	// brute-force comparison free of float noise.
	const devices = 500
	totals := make(map[string]float64, devices)
	reports := make(map[string]int, devices)

	rng := rand.New(rand.NewSource(7))
	for i := range devices {
		device := fmt.Sprintf("device_%03d", i)
		for range 1 + rng.Intn(5) {
			points := float64(rng.Intn(100))
			mustApply(t, ctx, store, device, "a-01", points)
			totals[device] += points
			reports[device]++
		}
	}

	// Brute-force expectation: sort by (points desc, id asc), dense ranks
	type row struct {
		id     string
		points float64
	}
	want := make([]row, 0, devices)
	for id, pts := range totals {
		want = append(want, row{id: id, points: pts})
	}
	sort.Slice(want, func(i, j int) bool {
		if want[i].points != want[j].points {
			return want[i].points > want[j].points
		}
		return want[i].id < want[j].id
	})
	wantRank := make(map[string]int, devices)
	rank := 0
	prev := math.Inf(1)
	for _, r := range want {
		if r.points != prev {
			rank++
			prev = r.points
		}
		wantRank[r.id] = rank
	}

	// Every device's rank query must agree with the brute force
	for id := range totals {
		entry, err := store.Rank(ctx, types.ScopeCity, "", id)
		if err != nil {
			t.Fatalf("Rank(%s): %v", id, err)
		}
		if entry.Rank != wantRank[id] {
			t.Errorf("Rank(%s) = %d, want %d", id, entry.Rank, wantRank[id])
		}
		if !almostEqual(entry.Points, totals[id]) {
			t.Errorf("Points(%s) = %f, want %f", id, entry.Points, totals[id])
		}
		if entry.Reports != reports[id] {
			t.Errorf("Reports(%s) = %d, want %d", id, entry.Reports, reports[id])
		}
	}

	// And so must the full TopN listing
	entries, err := store.TopN(ctx, types.ScopeCity, "", devices)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(entries) != devices {
		t.Fatalf("TopN returned %d entries, want %d", len(entries), devices)
	}
	for i, entry := range entries {
		if entry.DeviceID != want[i].id {
			t.Errorf("position %d holds %s, want %s", i, entry.DeviceID, want[i].id)
		}
		if entry.Rank != wantRank[entry.DeviceID] {
			t.Errorf("position %d carries rank %d, want %d", i, entry.Rank, wantRank[entry.DeviceID])
		}
	}
}

func TestTreapStoreEmptyAndSingle(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	if count := store.Count(ctx, types.ScopeCity, ""); count != 0 {
		t.Errorf("Count on fresh store = %d, want 0", count)
	}

	entries, err := store.TopN(ctx, types.ScopeCity, "", 10)
	if err != nil {
		t.Fatalf("TopN on fresh store: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("fresh store board has %d entries, want 0", len(entries))
	}

	if _, err = store.Rank(ctx, types.ScopeCity, "", "nonexistent"); err == nil {
		t.Error("Rank on fresh store succeeded, want an error")
	}

	mustApply(t, ctx, store, "single", "a-01", 100.0)

	if count := store.Count(ctx, types.ScopeCity, ""); count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}

	entries, err = store.TopN(ctx, types.ScopeCity, "", 10)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("board holds %d entries, want 1", len(entries))
	}
	if entries[0].Rank != 1 {
		t.Errorf("sole entry rank = %d, want 1", entries[0].Rank)
	}
	if entries[0].DeviceID != "single" {
		t.Errorf("sole entry device = %s, want single", entries[0].DeviceID)
	}
	if entries[0].Points != 100.0 {
		t.Errorf("sole entry points = %f, want 100.0", entries[0].Points)
	}

	entries, err = store.TopN(ctx, types.ScopeCity, "", 1)
	if err != nil {
		t.Fatalf("TopN(1): %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("TopN(1) returned %d entries, want 1", len(entries))
	}
}

func TestTreapStoreSharedDevice(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	const writers, perWriter = 20, 50

	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWriter {
				if _, err := store.Apply(ctx, "shared-device", "a-01", 1.0); err != nil {
					t.Errorf("concurrent Apply: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	// Every apply must have landed exactly once
	entry, err := store.Rank(ctx, types.ScopeCity, "", "shared-device")
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if want := float64(writers * perWriter); entry.Points != want {
		t.Errorf("Points = %f, want %f", entry.Points, want)
	}
	if want := writers * perWriter; entry.Reports != want {
		t.Errorf("Reports = %d, want %d", entry.Reports, want)
	}
	if count := store.Count(ctx, types.ScopeCity, ""); count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}
}

func TestTreapStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := NewTreapStore(ctx)
	defer store.Close()

	mustApply(t, ctx, store, "device1", "a-01", 100.0)

	// The context only drives the gauge refresher; reads and writes
	// keep working after it is gone.
	cancel()

	mustApply(t, ctx, store, "device2", "a-01", 200.0)

	entry, err := store.Rank(ctx, types.ScopeCity, "", "device1")
	if err != nil {
		t.Fatalf("Rank after cancel: %v", err)
	}
	if entry.Points != 100.0 {
		t.Errorf("Points = %f, want 100.0", entry.Points)
	}

	entries, err := store.TopN(ctx, types.ScopeCity, "", 10)
	if err != nil {
		t.Fatalf("TopN after cancel: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("board holds %d entries, want 2", len(entries))
	}
}

func TestTreapStoreClose(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)

	mustApply(t, ctx, store, "device1", "a-01", 100.0)

	if err := store.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	// Close only stops the background refresher; the boards stay usable
	mustApply(t, ctx, store, "device2", "a-01", 200.0)

	entry, err := store.Rank(ctx, types.ScopeCity, "", "device1")
	if err != nil {
		t.Fatalf("Rank after Close: %v", err)
	}
	if entry.Points != 100.0 {
		t.Errorf("Points = %f, want 100.0", entry.Points)
	}

	if err := store.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func BenchmarkTreapStoreApply(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	const seeded = 100_000
	for i := range seeded {
		_, _ = store.Apply(ctx, fmt.Sprintf("bench_device_%d", i), fmt.Sprintf("a-%02d", i%16), rand.Float64()*100)
	}

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = store.Apply(ctx, fmt.Sprintf("bench_device_%d", i%seeded), fmt.Sprintf("a-%02d", i%16), rand.Float64()*100)
			i++
		}
	})
}

func BenchmarkTreapStoreTopN(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	const seeded = 100_000
	for i := range seeded {
		_, _ = store.Apply(ctx, fmt.Sprintf("bench_device_%d", i), fmt.Sprintf("a-%02d", i%16), rand.Float64()*100)
	}

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = store.TopN(ctx, types.ScopeCity, "", 100)
		}
	})
}

func BenchmarkTreapStoreRank(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	const seeded = 100_000
	for i := range seeded {
		_, _ = store.Apply(ctx, fmt.Sprintf("bench_device_%d", i), fmt.Sprintf("a-%02d", i%16), rand.Float64()*100)
	}

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = store.Rank(ctx, types.ScopeCity, "", fmt.Sprintf("bench_device_%d", i%seeded))
			i++
		}
	})
}
