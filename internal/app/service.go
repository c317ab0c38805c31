// Package service assembles the leaderboard runtime. It owns the board
// store, the ingest queue, the scorer, the dedupe window, and the report
// journal, and exposes them behind the interfaces the HTTP layer uses.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sweeply/tidyboard/internal/adapters/archive"
	reportqueue "github.com/sweeply/tidyboard/internal/adapters/mq/queue"
	workerpool "github.com/sweeply/tidyboard/internal/adapters/mq/worker"
	repository "github.com/sweeply/tidyboard/internal/adapters/repository"
	"github.com/sweeply/tidyboard/internal/domain/dedupe"
	"github.com/sweeply/tidyboard/internal/domain/model"
	"github.com/sweeply/tidyboard/internal/domain/scoring"
	"github.com/sweeply/tidyboard/internal/domain/types"
	"github.com/sweeply/tidyboard/pkg/logger"
	"github.com/sweeply/tidyboard/pkg/metrics"
)

// scoreBridge adapts scoring.Scorer to the flat Score signature the pool calls.
type scoreBridge struct {
	inner scoring.Scorer
}

func (b *scoreBridge) Score(ctx context.Context, deviceID, kind string, severity int) (float64, error) {
	res, err := b.inner.Score(ctx, scoring.Input{
		DeviceID: deviceID,
		Kind:     kind,
		Severity: severity,
	})
	if err != nil {
		return 0, err
	}

	return res.Points, nil
}

// Service backs the HTTP API. It holds the whole scoring pipeline and
// reports its health through GetStats.
type Service struct {
	mu sync.RWMutex

	// Pipeline, built on Start.
	boards  repository.Store
	dedup   dedupe.Deduper
	queue   reportqueue.Queue
	scorer  scoring.Scorer
	pool    *workerpool.Pool
	archive *archive.SQLiteArchive // nil when journaling is disabled

	// Tunables, fixed once New returns.
	workers       int
	queueCap      int
	dedupeCap     int
	kindWeights   map[string]float64
	defaultWeight float64
	archivePath   string

	started bool

	log logger.Logger
}

// Option customizes a Service before Start.
type Option func(*Service)

// WithWorkerCount overrides how many scoring workers drain the queue.
func WithWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithQueueSize bounds how many reports may wait in the ingest queue.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueCap = n
		}
	}
}

// WithDedupeSize caps how many report ids the dedupe window remembers.
func WithDedupeSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dedupeCap = n
		}
	}
}

// WithLogger routes service logging through the given logger instead of
// the process-wide one.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithKindWeights sets the per-kind scoring weights.
func WithKindWeights(weights map[string]float64) Option {
	return func(s *Service) {
		s.kindWeights = weights
	}
}

// WithDefaultKindWeight sets the weight for unknown kinds.
func WithDefaultKindWeight(w float64) Option {
	return func(s *Service) {
		s.defaultWeight = w
	}
}

// WithArchivePath enables the SQLite report journal at the given path.
// An empty path leaves journaling and replay disabled.
func WithArchivePath(path string) Option {
	return func(s *Service) {
		s.archivePath = path
	}
}

// New builds an unstarted Service. The defaults suit a single node;
// options override them.
func New(opts ...Option) *Service {
	s := &Service{
		workers:   runtime.NumCPU() * 2,
		queueCap:  100000,
		dedupeCap: 50000,
		kindWeights: map[string]float64{
			"litter": 10,
		},
		defaultWeight: 10,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the pipeline and launches the workers. When a journal is
// configured it is replayed first, before any worker can append to it.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Fall back to the process logger when no option supplied one.
	if s.log == nil {
		s.log = logger.Get()
	}

	s.log.Info(ctx, "service starting")

	s.boards = repository.NewTreapStore(ctx)
	s.dedup = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeCap),
	)
	s.queue = reportqueue.NewInMemoryQueue(
		reportqueue.WithCapacity(s.queueCap),
		reportqueue.WithBufferSize(s.queueCap),
	)
	s.scorer = scoring.NewWeightedScorer(
		scoring.WithKindWeightsFromConfig(s.kindWeights, s.defaultWeight),
	)

	// Open the journal and rebuild board state from it before workers start,
	// so no live report races the replay.
	var poolOpts []workerpool.Option
	if s.archivePath != "" {
		a, err := archive.Open(s.archivePath, archive.WithLogger(s.log.Named("archive")))
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		s.archive = a
		if err := s.replayArchive(ctx); err != nil {
			_ = s.archive.Close()
			s.archive = nil
			return fmt.Errorf("replay archive: %w", err)
		}
		poolOpts = append(poolOpts, workerpool.WithArchiver(s.archive))
	}

	bridge := &scoreBridge{inner: s.scorer}
	s.pool = workerpool.NewPool(s.workers, s.queue, bridge, s.boards, poolOpts...)
	s.pool.Start(ctx)

	s.started = true
	s.log.Info(ctx, "service ready",
		logger.Int("workers", s.workers),
		logger.Int("queueCap", s.queueCap),
		logger.Int("dedupeCap", s.dedupeCap),
		logger.String("archivePath", s.archivePath),
	)

	return nil
}

// replayArchive feeds every journaled report back into the boards with the
// points it originally earned, and marks its id seen so a replayed report
// stays idempotent across restarts.
func (s *Service) replayArchive(ctx context.Context) error {
	start := time.Now()
	var replayed int

	err := s.archive.Replay(ctx, func(r model.Report, points float64) error {
		if _, err := s.boards.Apply(ctx, r.DeviceID, r.Area, points); err != nil {
			return fmt.Errorf("apply replayed report %s: %w", r.ReportID, err)
		}
		s.dedup.SeenAndRecord(ctx, r.ReportID)
		replayed++
		return nil
	})
	if err != nil {
		return err
	}

	metrics.ObserveArchiveReplay(float64(time.Since(start).Milliseconds()))
	metrics.SetArchiveReports(replayed)

	s.log.Info(ctx, "archive replayed",
		logger.Int("reports", replayed),
		logger.Any("took", time.Since(start)),
	)
	return nil
}

// Stop tears the pipeline down. Workers go first so nothing appends to
// the journal or the boards mid-close.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.log.Info(context.Background(), "service stopping")

	if s.pool != nil {
		s.pool.Stop()
	}

	// Close the journal after workers stopped appending
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			s.log.Error(context.Background(), "archive close failed", logger.Error(err))
		}
	}

	if s.boards != nil {
		if closer, ok := s.boards.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}

	if q, ok := s.queue.(*reportqueue.InMemoryQueue); ok {
		_ = q.Close()
	}

	s.started = false
	s.log.Info(context.Background(), "service stopped")
}

// SeenAndRecord marks id as seen and reports whether it had been seen
// before, so the caller can drop the duplicate.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	dup := s.dedup.SeenAndRecord(ctx, id)
	if dup {
		metrics.IncReportDuplicate()
	}
	return dup
}

// Unrecord forgets a report id so a failed submission can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.dedup.Unrecord(ctx, id)
}

// Enqueue submits a report for asynchronous scoring.
func (s *Service) Enqueue(ctx context.Context, r model.Report) bool {
	s.log.Debug(ctx, "enqueueing report",
		logger.String("reportID", r.ReportID),
		logger.String("deviceID", r.DeviceID),
		logger.String("area", r.Area),
		logger.String("kind", r.Kind),
		logger.Int("severity", r.Severity),
	)

	return s.queue.Enqueue(ctx, r)
}

// TopN returns the best n devices for a scope, city wide or per area.
func (s *Service) TopN(ctx context.Context, scope types.Scope, area string, n int) ([]types.Entry, error) {
	entries, err := s.boards.TopN(ctx, scope, area, n)
	if err != nil {
		return nil, err
	}

	// The store has its own entry type; copy into the transport shape.
	out := make([]types.Entry, len(entries))
	for i, e := range entries {
		out[i] = types.Entry{
			Rank:     e.Rank,
			DeviceID: e.DeviceID,
			Reports:  e.Reports,
			Points:   e.Points,
		}
	}

	return out, nil
}

// Rank returns the entry for a given device id within a scope.
func (s *Service) Rank(ctx context.Context, scope types.Scope, area, deviceID string) (types.Entry, error) {
	e, err := s.boards.Rank(ctx, scope, area, deviceID)
	if err != nil {
		return types.Entry{}, err
	}

	return types.Entry{
		Rank:     e.Rank,
		DeviceID: e.DeviceID,
		Reports:  e.Reports,
		Points:   e.Points,
	}, nil
}

// GetStats snapshots the counters the stats endpoint serves. Calling it
// also refreshes the matching gauges.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":        s.started,
		"worker_count":   s.workers,
		"queue_capacity": s.queueCap,
		"dedupe_size":    s.dedupeCap,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		totalDevices := s.boards.Count(ctx, types.ScopeCity, "")
		areas := s.boards.Areas(ctx)

		stats["queue_size"] = queueLen
		stats["total_devices"] = totalDevices
		stats["area_count"] = len(areas)
		stats["dedupe_entries"] = s.dedup.Size()

		if s.archive != nil {
			if n, err := s.archive.Count(ctx); err == nil {
				stats["archived_reports"] = n
			}
		}

		metrics.SetQueueDepth(queueLen)
		metrics.SetCityDevices(totalDevices)
		metrics.SetWorkerCount(s.workers)
	}

	return stats
}

// Areas returns the area codes with at least one report.
func (s *Service) Areas(ctx context.Context) []string {
	return s.boards.Areas(ctx)
}

// Size reports how many report ids the dedupe window currently holds.
func (s *Service) Size() int64 {
	if s.dedup == nil {
		return 0
	}
	return s.dedup.Size()
}
