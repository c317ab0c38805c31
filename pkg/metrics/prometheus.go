// Package metrics is the process-wide Prometheus facade. Collectors hang
// off a Manager; the package-level functions publish through the default
// one, which lives on its own registry so the exposition stays free of
// the stock Go collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ingestMetrics watches the queue between the HTTP surface and the pool.
type ingestMetrics struct {
	depth      prometheus.Gauge
	capacity   prometheus.Gauge
	fill       prometheus.Gauge
	enqueued   prometheus.Counter
	dequeued   prometheus.Counter
	rejected   prometheus.Counter
	enqueueMs  prometheus.Histogram
	duplicates prometheus.Counter
}

// boardMetrics covers scoring outcomes and the city board.
type boardMetrics struct {
	processed  prometheus.Counter
	updates    prometheus.Counter
	updateErrs prometheus.Counter
	scoreErrs  prometheus.Counter
	scoringMs  prometheus.Histogram
	devices    prometheus.Gauge
}

// storeMetrics covers the board storage layer.
type storeMetrics struct {
	boards       prometheus.Gauge
	devices      prometheus.Gauge
	boardDevices *prometheus.GaugeVec
	readMs       prometheus.Histogram
	writeMs      prometheus.Histogram
}

// journalMetrics covers the report archive.
type journalMetrics struct {
	reports    prometheus.Gauge
	appends    prometheus.Counter
	appendErrs prometheus.Counter
	replayMs   prometheus.Histogram
}

type httpMetrics struct {
	requests  *prometheus.CounterVec
	latencyMs *prometheus.HistogramVec
}

// poolMetrics covers the worker pool draining the queue.
type poolMetrics struct {
	size       prometheus.Gauge
	active     prometheus.Gauge
	idle       prometheus.Gauge
	throughput prometheus.Gauge
	workMs     prometheus.Histogram
	failures   prometheus.Counter
}

// faultMetrics slices errors three ways plus the latency of the
// operations that produced them.
type faultMetrics struct {
	byComponent *prometheus.CounterVec
	byKind      *prometheus.CounterVec
	byEndpoint  *prometheus.CounterVec
	latencyMs   *prometheus.HistogramVec
}

type runtimeMetrics struct {
	heapBytes  prometheus.Gauge
	goroutines prometheus.Gauge
	gcPauseMs  prometheus.Histogram
}

// Manager owns every collector the service exposes, grouped by concern.
type Manager struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  prometheus.Registerer

	ingest  ingestMetrics
	boards  boardMetrics
	store   storeMetrics
	journal journalMetrics
	http    httpMetrics
	pool    poolMetrics
	faults  faultMetrics
	runtime runtimeMetrics
}

// std backs the package-level helpers.
var std *Manager //nolint:gochecknoglobals // one manager behind the free functions

// reg is the exposition registry handed to promhttp.
var reg = prometheus.NewRegistry() //nolint:gochecknoglobals // shared with GetRegistry

func init() { //nolint:gochecknoinits // helpers must publish before any explicit setup runs
	std = NewManager(WithPrometheusRegistry(reg))
}

// NewManager builds a Manager and registers its collectors, applying any
// options over the tidyboard defaults.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "tidyboard",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.ingest = m.buildIngest()
	m.boards = m.buildBoards()
	m.store = m.buildStore()
	m.journal = m.buildJournal()
	m.http = m.buildHTTP()
	m.pool = m.buildPool()
	m.faults = m.buildFaults()
	m.runtime = m.buildRuntime()
	return m
}

// Collector constructors; every metric shares the manager's namespace and subsystem.

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) counterVec(name, help string, labels []string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

func (m *Manager) buildIngest() ingestMetrics {
	return ingestMetrics{
		depth:      m.gauge("queue_depth", "Reports waiting in the ingest queue"),
		capacity:   m.gauge("queue_capacity", "Configured bound of the ingest queue"),
		fill:       m.gauge("queue_fill_ratio", "Fraction of the ingest queue in use"),
		enqueued:   m.counter("queue_enqueued_total", "Reports accepted onto the queue"),
		dequeued:   m.counter("queue_dequeued_total", "Reports handed to workers"),
		rejected:   m.counter("queue_rejected_total", "Submissions the queue turned away"),
		enqueueMs:  m.histogram("queue_enqueue_latency_milliseconds", "Time one enqueue call takes", m.buckets),
		duplicates: m.counter("reports_duplicate_total", "Reports rejected as duplicates at ingest"),
	}
}

func (m *Manager) buildBoards() boardMetrics {
	return boardMetrics{
		processed:  m.counter("reports_processed_total", "Reports scored and applied to the boards"),
		updates:    m.counter("board_updates_total", "Board entry updates applied"),
		updateErrs: m.counter("board_update_errors_total", "Board updates that failed"),
		scoreErrs:  m.counter("scoring_errors_total", "Reports that failed scoring"),
		scoringMs:  m.histogram("scoring_latency_milliseconds", "Time to score one report", m.buckets),
		devices:    m.gauge("city_devices", "Devices holding a position on the city board"),
	}
}

func (m *Manager) buildStore() storeMetrics {
	return storeMetrics{
		boards:       m.gauge("store_boards", "Boards held, the city board plus one per area"),
		devices:      m.gauge("store_devices", "Devices present in board storage"),
		boardDevices: m.gaugeVec("store_board_devices", "Devices per board", []string{"board"}),
		readMs:       m.histogram("store_read_latency_milliseconds", "Board read latency", m.buckets),
		writeMs:      m.histogram("store_write_latency_milliseconds", "Board write latency", m.buckets),
	}
}

func (m *Manager) buildJournal() journalMetrics {
	return journalMetrics{
		reports:    m.gauge("archive_reports", "Reports persisted in the journal"),
		appends:    m.counter("archive_appends_total", "Journal appends completed"),
		appendErrs: m.counter("archive_append_errors_total", "Journal appends that failed"),
		replayMs: m.histogram("archive_replay_milliseconds",
			"Startup journal replay time", []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000}),
	}
}

func (m *Manager) buildHTTP() httpMetrics {
	labels := []string{"endpoint", "method", "status_code"}
	return httpMetrics{
		requests:  m.counterVec("http_requests_total", "HTTP requests served", labels),
		latencyMs: m.histogramVec("http_request_latency_milliseconds", "HTTP request latency", m.buckets, labels),
	}
}

func (m *Manager) buildPool() poolMetrics {
	return poolMetrics{
		size:       m.gauge("worker_pool_size", "Workers currently running"),
		active:     m.gauge("workers_active", "Workers busy with a report"),
		idle:       m.gauge("workers_idle", "Workers waiting for work"),
		throughput: m.gauge("worker_throughput_rps", "Reports processed per second across the pool"),
		workMs:     m.histogram("worker_latency_milliseconds", "Per-report worker latency", m.buckets),
		failures:   m.counter("worker_failures_total", "Reports a worker could not process"),
	}
}

func (m *Manager) buildFaults() faultMetrics {
	return faultMetrics{
		byComponent: m.counterVec("component_errors_total", "Errors by component and type", []string{"component", "error_type"}),
		byKind:      m.counterVec("error_kinds_total", "Errors by type and severity", []string{"error_type", "severity"}),
		byEndpoint: m.counterVec("endpoint_errors_total",
			"Request errors by endpoint, method, and type", []string{"endpoint", "method", "error_type"}),
		latencyMs: m.histogramVec("failing_op_latency_milliseconds",
			"Latency of operations that ended in an error", m.buckets, []string{"component", "error_type"}),
	}
}

func (m *Manager) buildRuntime() runtimeMetrics {
	return runtimeMetrics{
		heapBytes:  m.gauge("heap_alloc_bytes", "Process heap in use"),
		goroutines: m.gauge("goroutines", "Live goroutines"),
		gcPauseMs: m.histogram("gc_pause_milliseconds",
			"GC pause durations", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	}
}

// Ingest queue.

// SetQueueDepth publishes the current backlog.
func SetQueueDepth(depth int) {
	std.ingest.depth.Set(float64(depth))
}

// SetQueueCapacity publishes the configured queue bound.
func SetQueueCapacity(capacity int) {
	std.ingest.capacity.Set(float64(capacity))
}

// SetQueueFill publishes backlog over capacity, 0 through 1.
func SetQueueFill(ratio float64) {
	std.ingest.fill.Set(ratio)
}

// IncEnqueued counts a report accepted onto the queue.
func IncEnqueued() {
	std.ingest.enqueued.Inc()
}

// IncDequeued counts a report handed to a worker.
func IncDequeued() {
	std.ingest.dequeued.Inc()
}

// IncEnqueueRejected counts a submission the queue turned away.
func IncEnqueueRejected() {
	std.ingest.rejected.Inc()
}

// ObserveEnqueueLatency observes one enqueue call, in milliseconds.
func ObserveEnqueueLatency(ms float64) {
	std.ingest.enqueueMs.Observe(ms)
}

// IncReportDuplicate counts a report bounced by the deduper.
func IncReportDuplicate() {
	std.ingest.duplicates.Inc()
}

// Scoring and boards.

// IncReportProcessed counts a report scored and applied end to end.
func IncReportProcessed() {
	std.boards.processed.Inc()
}

// IncBoardUpdate counts a board write that landed.
func IncBoardUpdate() {
	std.boards.updates.Inc()
}

// IncBoardError counts a board write that failed.
func IncBoardError() {
	std.boards.updateErrs.Inc()
}

// IncScoringError counts a report the scorer rejected.
func IncScoringError() {
	std.boards.scoreErrs.Inc()
}

// ObserveScoringLatency observes scoring one report, in milliseconds.
func ObserveScoringLatency(ms float64) {
	std.boards.scoringMs.Observe(ms)
}

// SetCityDevices publishes how many devices sit on the city board.
func SetCityDevices(count int) {
	std.boards.devices.Set(float64(count))
}

// Board storage.

// SetBoardCount publishes how many boards storage holds.
func SetBoardCount(count int) {
	std.store.boards.Set(float64(count))
}

// SetStoreDevices publishes how many devices storage tracks.
func SetStoreDevices(count int) {
	std.store.devices.Set(float64(count))
}

// SetBoardDevices publishes the device count of one board.
func SetBoardDevices(board string, count int) {
	std.store.boardDevices.WithLabelValues(board).Set(float64(count))
}

// ObserveStoreReadLatency observes a board read, in milliseconds.
func ObserveStoreReadLatency(ms float64) {
	std.store.readMs.Observe(ms)
}

// ObserveStoreWriteLatency observes a board write, in milliseconds.
func ObserveStoreWriteLatency(ms float64) {
	std.store.writeMs.Observe(ms)
}

// Report journal.

// SetArchiveReports publishes how many reports the journal holds.
func SetArchiveReports(count int) {
	std.journal.reports.Set(float64(count))
}

// IncArchiveAppend counts a journal append that landed.
func IncArchiveAppend() {
	std.journal.appends.Inc()
}

// IncArchiveAppendError counts a journal append that failed.
func IncArchiveAppendError() {
	std.journal.appendErrs.Inc()
}

// ObserveArchiveReplay observes the startup replay, in milliseconds.
func ObserveArchiveReplay(ms float64) {
	std.journal.replayMs.Observe(ms)
}

// HTTP surface.

// IncHTTPRequest counts a request by endpoint, method, and status.
func IncHTTPRequest(endpoint, method, statusCode string) {
	std.http.requests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// ObserveHTTPLatency observes a request's wall time, in milliseconds.
func ObserveHTTPLatency(endpoint, method, statusCode string, ms float64) {
	std.http.latencyMs.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// Worker pool.

// SetWorkerCount publishes the configured pool size.
func SetWorkerCount(count int) {
	std.pool.size.Set(float64(count))
}

// SetActiveWorkers publishes how many workers are busy scoring.
func SetActiveWorkers(count int) {
	std.pool.active.Set(float64(count))
}

// SetIdleWorkers publishes how many workers are waiting on the queue.
func SetIdleWorkers(count int) {
	std.pool.idle.Set(float64(count))
}

// SetWorkerThroughput publishes the pool-wide reports per second rate.
func SetWorkerThroughput(rps float64) {
	std.pool.throughput.Set(rps)
}

// ObserveWorkerLatency observes one report's full trip through a worker.
func ObserveWorkerLatency(ms float64) {
	std.pool.workMs.Observe(ms)
}

// IncWorkerError counts a report a worker could not process.
func IncWorkerError() {
	std.pool.failures.Inc()
}

// Error breakdowns.

// IncComponentError counts an error under its component and type.
func IncComponentError(component, errorType string) {
	std.faults.byComponent.WithLabelValues(component, errorType).Inc()
}

// IncErrorKind counts an error under its type and severity.
func IncErrorKind(errorType, severity string) {
	std.faults.byKind.WithLabelValues(errorType, severity).Inc()
}

// IncEndpointError counts a request error under its endpoint, method, and type.
func IncEndpointError(endpoint, method, errorType string) {
	std.faults.byEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// ObserveErrorLatency observes how long a failing operation ran before
// giving up, in milliseconds.
func ObserveErrorLatency(component, errorType string, ms float64) {
	std.faults.latencyMs.WithLabelValues(component, errorType).Observe(ms)
}

// Go runtime.

// SetHeapAlloc publishes allocated heap bytes.
func SetHeapAlloc(bytes uint64) {
	std.runtime.heapBytes.Set(float64(bytes))
}

// SetGoroutines publishes the live goroutine count.
func SetGoroutines(count int) {
	std.runtime.goroutines.Set(float64(count))
}

// ObserveGCPause observes a garbage collection pause, in milliseconds.
func ObserveGCPause(ms float64) {
	std.runtime.gcPauseMs.Observe(ms)
}

// GetRegistry exposes the registry behind the package-level helpers, for
// the exposition handler and tests.
func GetRegistry() *prometheus.Registry {
	return reg
}
