// Package worker defines worker contracts for asynchronous scoring and board updates.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeply/tidyboard/internal/adapters/mq/queue"
	"github.com/sweeply/tidyboard/internal/domain/model"
	"github.com/sweeply/tidyboard/pkg/logger"
	"github.com/sweeply/tidyboard/pkg/metrics"
)

// Tuning defaults.
const (
	cpuWorkerFactor    = 20 // workers per CPU core when no count is given
	throughputInterval = 5 * time.Second
	workerStopTimeout  = 5 * time.Second
	poolStopTimeout    = 30 * time.Second
)

// Report is what workers read off the queue.
type Report = model.Report

// Updater accumulates scored points for a device on the boards.
type Updater interface {
	Apply(ctx context.Context, deviceID, area string, points float64) (model.Tally, error)
}

// Scorer computes points for a report.
type Scorer interface {
	Score(ctx context.Context, deviceID, kind string, severity int) (float64, error)
}

// Archiver journals scored reports for replay after a restart.
type Archiver interface {
	Append(ctx context.Context, r model.Report, points float64) error
}

// Queue defines how workers receive reports.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Report
}

// Worker processes reports and writes board updates using the provided interfaces.
type Worker interface {
	// Run consumes reports until the queue closes or a stop arrives.
	Run(ctx context.Context)

	// Shutdown signals the loop and waits for it to exit; the context
	// bounds the wait.
	Shutdown(ctx context.Context) error
}

// ScoringWorker implements Worker over the scorer, journal, and boards.
type ScoringWorker struct {
	queue    Queue
	scorer   Scorer
	updater  Updater
	archiver Archiver // nil when journaling is disabled
	name     string

	// Stop signaling
	quit     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// Pool-shared processed counter, nil for standalone workers.
	processed *atomic.Int64

	logger logger.Logger
}

// NewScoringWorker wires one worker to its queue, scorer, and board updater.
func NewScoringWorker(queue Queue, scorer Scorer, updater Updater, opts ...Option) *ScoringWorker {
	w := &ScoringWorker{
		queue:   queue,
		scorer:  scorer,
		updater: updater,
		name:    "worker",
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	// Scope the log name after options so a WithName rename is picked up.
	base := w.logger
	if base == nil {
		base = logger.Get()
	}
	w.logger = base.Named(w.name)

	return w
}

// Run consumes the queue until told to stop. A report that fails is
// logged and dropped, never retried.
func (w *ScoringWorker) Run(ctx context.Context) {
	defer close(w.done)

	reportChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.quit:
			return
		case report, ok := <-reportChan:
			if !ok {
				// Queue closed and drained
				return
			}

			if err := w.processReport(ctx, report); err != nil {
				w.logger.Error(ctx, "error processing report", logger.Error(err))
			}
		}
	}
}

// stop signals the worker loop to exit. Safe to call more than once.
func (w *ScoringWorker) stop() {
	w.stopOnce.Do(func() {
		close(w.quit)
	})
}

// Shutdown stops the loop and waits for it to exit within ctx.
func (w *ScoringWorker) Shutdown(ctx context.Context) error {
	w.stop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "stop deadline passed")
		return fmt.Errorf("worker stop: %w", ctx.Err())
	}
}

// processReport scores one report, journals it, and applies it to the boards.
func (w *ScoringWorker) processReport(ctx context.Context, report queue.Report) error { //nolint:gocritic // hugeParam: Report must be passed by value for channel semantics
	// Overall latency covers scoring, the journal append, and the board write.
	start := time.Now()
	defer func() {
		metrics.ObserveWorkerLatency(float64(time.Since(start).Milliseconds()))
	}()

	scoringStart := time.Now()
	points, err := w.scorer.Score(ctx, report.DeviceID, report.Kind, report.Severity)
	metrics.ObserveScoringLatency(float64(time.Since(scoringStart).Milliseconds()))

	if err != nil {
		metrics.IncScoringError()
		metrics.IncWorkerError()
		metrics.IncComponentError("worker", "scoring_error")
		metrics.IncErrorKind("scoring_error", "high")
		w.logger.Error(ctx, "scoring failed for report",
			logger.String("reportID", report.ReportID),
			logger.Error(err),
		)
		return fmt.Errorf("score report %s: %w", report.ReportID, err)
	}

	// Journal before the boards move. A report that reached the archive is
	// replayed on restart even when the update below never lands.
	if w.archiver != nil {
		if archiveErr := w.archiver.Append(ctx, report, points); archiveErr != nil {
			// The boards still advance on a journal failure; replay just
			// won't cover this report.
			metrics.IncWorkerError()
			metrics.IncComponentError("worker", "archive_error")
			metrics.IncErrorKind("archive_error", "medium")
			w.logger.Error(ctx, "archive append failed for report",
				logger.String("reportID", report.ReportID),
				logger.Error(archiveErr),
			)
		}
	}

	if _, err := w.updater.Apply(ctx, report.DeviceID, report.Area, points); err != nil {
		metrics.IncBoardError()
		metrics.IncWorkerError()
		metrics.IncComponentError("worker", "board_error")
		metrics.IncErrorKind("board_error", "high")
		w.logger.Error(ctx, "leaderboard update failed for report",
			logger.String("reportID", report.ReportID),
			logger.Error(err),
		)
		return fmt.Errorf("apply report %s: %w", report.ReportID, err)
	}

	metrics.IncBoardUpdate()
	metrics.IncReportProcessed()
	if w.processed != nil {
		w.processed.Add(1)
	}

	return nil
}

// Pool runs a fixed set of workers over one queue and aggregates their
// throughput.
type Pool struct {
	workers []*ScoringWorker
	queue   Queue
	scorer  Scorer
	updater Updater

	// Stop signaling
	quit     chan struct{}
	stopOnce sync.Once

	// Throughput accounting
	processedCount atomic.Int64
	lastTick       time.Time

	logger logger.Logger
}

// NewPool creates a new worker pool. Options are forwarded to every worker
// in the pool.
func NewPool(workerCount int, queue Queue, scorer Scorer, updater Updater, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * cpuWorkerFactor
	}

	pool := &Pool{
		workers:  make([]*ScoringWorker, workerCount),
		queue:    queue,
		scorer:   scorer,
		updater:  updater,
		quit:     make(chan struct{}),
		lastTick: time.Now(),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := range workerCount {
		workerOpts := make([]Option, 0, len(opts)+2)
		workerOpts = append(workerOpts, opts...)
		workerOpts = append(workerOpts,
			WithName(fmt.Sprintf("worker-%d", i)),
			withProcessedCounter(&pool.processedCount),
		)
		pool.workers[i] = NewScoringWorker(queue, scorer, updater, workerOpts...)
	}

	metrics.SetActiveWorkers(workerCount)
	metrics.SetIdleWorkers(0)
	metrics.SetWorkerThroughput(0.0)

	return pool
}

// Start launches every worker plus the throughput ticker.
func (p *Pool) Start(ctx context.Context) {
	for _, wk := range p.workers {
		go wk.Run(ctx)
	}

	go p.runThroughputTicker(ctx)
}

func (p *Pool) runThroughputTicker(ctx context.Context) {
	ticker := time.NewTicker(throughputInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case <-ticker.C:
			p.publishThroughput()
		}
	}
}

// publishThroughput publishes reports per second over the window since
// the last tick.
func (p *Pool) publishThroughput() {
	now := time.Now()
	elapsed := now.Sub(p.lastTick).Seconds()
	processed := p.processedCount.Swap(0)
	if elapsed > 0 {
		metrics.SetWorkerThroughput(float64(processed) / elapsed)
	}
	p.lastTick = now
}

// Stop stops all workers without draining the queue.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
	})
	for _, wk := range p.workers {
		wk.stop()
	}

	for _, wk := range p.workers {
		select {
		case <-wk.done:
		case <-time.After(workerStopTimeout):
		}
	}
}

// Shutdown closes the queue and lets the workers drain it before they
// exit. Workers still running at the deadline are stopped hard.
func (p *Pool) Shutdown(ctx context.Context) error {
	if c, ok := p.queue.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			p.logger.Error(ctx, "queue close failed", logger.Error(err))
		}
	}

	p.stopOnce.Do(func() {
		close(p.quit)
	})

	drainCtx, cancel := context.WithTimeout(ctx, poolStopTimeout)
	defer cancel()

	for i, wk := range p.workers {
		select {
		case <-wk.done:
		case <-drainCtx.Done():
			p.logger.Warn(ctx, "worker did not drain in time", logger.Int("worker_id", i))
			wk.stop()
		}
	}

	return nil
}
