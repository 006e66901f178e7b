package translate

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Worker pool metrics
	workerPoolTotalWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gemmagate_worker_pool_total_workers",
			Help: "Total number of workers (busy + idle) in the pool",
		},
		[]string{"engine"},
	)

	workerPoolBusyWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gemmagate_worker_pool_busy_workers",
			Help: "Number of workers currently processing requests",
		},
		[]string{"engine"},
	)

	workerPoolIdleWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gemmagate_worker_pool_idle_workers",
			Help: "Number of idle workers available for requests",
		},
		[]string{"engine"},
	)

	workerQueueLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gemmagate_worker_queue_length",
			Help: "Number of workers waiting in the ready queue",
		},
		[]string{"engine"},
	)

	workerQueueWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gemmagate_worker_queue_wait_seconds",
			Help:    "Time spent waiting for an available worker",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"engine"},
	)

	// Worker lifecycle metrics
	workerStartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemmagate_worker_starts_total",
			Help: "Total number of worker process starts",
		},
		[]string{"engine", "worker_id"},
	)

	workerRestartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemmagate_worker_restarts_total",
			Help: "Total number of worker process restarts",
		},
		[]string{"engine", "worker_id"},
	)

	workerUptime = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gemmagate_worker_uptime_seconds",
			Help: "Uptime of each worker in seconds",
		},
		[]string{"engine", "worker_id"},
	)

	socketConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemmagate_socket_connections_total",
			Help: "Total number of Unix socket connections to workers",
		},
		[]string{"engine", "worker_id", "status"},
	)

	socketConnectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gemmagate_socket_connection_duration_seconds",
			Help:    "Time to establish a worker socket connection",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0},
		},
		[]string{"engine", "worker_id"},
	)

	workerMemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gemmagate_worker_memory_usage_bytes",
			Help: "Resident memory of worker processes in bytes",
		},
		[]string{"engine", "worker_id"},
	)

	// Circuit breaker state: 0 closed, 1 half-open, 2 open.
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gemmagate_engine_breaker_state",
			Help: "Circuit breaker state per engine (0 closed, 1 half-open, 2 open)",
		},
		[]string{"engine"},
	)
)

// MetricsCollector collects and updates metrics for the worker pool.
type MetricsCollector struct {
	pool   *WorkerPool
	engine string
}

// NewMetricsCollector creates a new metrics collector for a worker pool.
func NewMetricsCollector(pool *WorkerPool, engine string) *MetricsCollector {
	return &MetricsCollector{
		pool:   pool,
		engine: engine,
	}
}

// UpdateMetrics updates all worker pool gauges.
func (mc *MetricsCollector) UpdateMetrics() {
	mc.pool.workerMu.RLock()
	total := len(mc.pool.workers)
	busy := 0
	uptimes := make(map[int]float64, total)
	for _, worker := range mc.pool.workers {
		worker.mu.Lock()
		if worker.busy {
			busy++
		}
		worker.mu.Unlock()
		uptimes[worker.id] = time.Since(worker.startedAt).Seconds()
	}
	mc.pool.workerMu.RUnlock()

	workerPoolTotalWorkers.WithLabelValues(mc.engine).Set(float64(total))
	workerPoolBusyWorkers.WithLabelValues(mc.engine).Set(float64(busy))
	workerPoolIdleWorkers.WithLabelValues(mc.engine).Set(float64(total - busy))
	workerQueueLength.WithLabelValues(mc.engine).Set(float64(len(mc.pool.ready)))

	for id, uptime := range uptimes {
		workerUptime.WithLabelValues(mc.engine, strconv.Itoa(id)).Set(uptime)
	}
}

// RecordWorkerStart records a worker start event.
func (mc *MetricsCollector) RecordWorkerStart(workerID int) {
	workerStartsTotal.WithLabelValues(mc.engine, strconv.Itoa(workerID)).Inc()
}

// RecordWorkerRestart records a worker restart event.
func (mc *MetricsCollector) RecordWorkerRestart(workerID int) {
	workerRestartsTotal.WithLabelValues(mc.engine, strconv.Itoa(workerID)).Inc()
}

// RecordQueueWait records time spent waiting for an available worker.
func (mc *MetricsCollector) RecordQueueWait(duration time.Duration) {
	workerQueueWaitTime.WithLabelValues(mc.engine).Observe(duration.Seconds())
}

// RecordSocketConnection records socket connection metrics.
func (mc *MetricsCollector) RecordSocketConnection(workerID int, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	id := strconv.Itoa(workerID)
	socketConnectionsTotal.WithLabelValues(mc.engine, id, status).Inc()
	socketConnectionDuration.WithLabelValues(mc.engine, id).Observe(duration.Seconds())
}

// UpdateWorkerMemory updates memory usage for a worker.
func (mc *MetricsCollector) UpdateWorkerMemory(workerID int, memoryBytes int64) {
	workerMemoryUsage.WithLabelValues(mc.engine, strconv.Itoa(workerID)).Set(float64(memoryBytes))
}
