package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultPoolWorkers is the number of workers started when none is configured.
	DefaultPoolWorkers = 2
	// DefaultSocketDir holds the worker sockets.
	DefaultSocketDir = "/tmp/gemmagate-workers"

	workerStartTimeout = 2 * time.Minute
	workerAcquireWait  = 10 * time.Second
	workerCallTimeout  = 5 * time.Minute
)

// PoolConfig configures a WorkerPool.
type PoolConfig struct {
	PythonPath string
	ScriptPath string
	Model      string
	Workers    int
	SocketDir  string
}

// WorkerPool manages a pool of model worker processes reached over Unix
// domain sockets. Each worker loads the model once and serves one request at
// a time.
type WorkerPool struct {
	cfg      PoolConfig
	workers  map[int]*poolWorker
	workerMu sync.RWMutex
	ready    chan *poolWorker
	metrics  *MetricsCollector
	logger   *logrus.Logger
	shutdown chan struct{}
	closing  sync.Once
	wg       sync.WaitGroup
}

// poolWorker represents a single worker process.
type poolWorker struct {
	id         int
	process    *exec.Cmd
	socketPath string
	startedAt  time.Time
	exited     chan struct{}
	logger     *logrus.Entry

	mu       sync.Mutex
	busy     bool
	lastUsed time.Time
}

// NewWorkerPool starts cfg.Workers workers and returns once at least one of
// them is serving. Workers that fail to start are retried by the health loop.
func NewWorkerPool(ctx context.Context, cfg PoolConfig, logger *logrus.Logger) (*WorkerPool, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.PythonPath == "" {
		cfg.PythonPath = DefaultPythonPath
	}
	if cfg.ScriptPath == "" {
		cfg.ScriptPath = DefaultWorkerScript
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultPoolWorkers
	}
	if cfg.SocketDir == "" {
		cfg.SocketDir = DefaultSocketDir
	}
	if err := os.MkdirAll(cfg.SocketDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	pool := &WorkerPool{
		cfg:      cfg,
		workers:  make(map[int]*poolWorker),
		ready:    make(chan *poolWorker, cfg.Workers),
		logger:   logger,
		shutdown: make(chan struct{}),
	}
	pool.metrics = NewMetricsCollector(pool, string(EnginePool))

	started := 0
	var lastErr error
	for i := 0; i < cfg.Workers; i++ {
		if err := pool.startWorker(ctx, i); err != nil {
			lastErr = err
			logger.WithError(err).WithField("worker_id", i).Warn("Failed to start initial worker, will retry")
			continue
		}
		started++
	}
	if started == 0 {
		pool.Close()
		return nil, fmt.Errorf("no worker started: %w", lastErr)
	}

	pool.wg.Add(2)
	go pool.manageWorkers()
	go pool.updateMetricsLoop()

	return pool, nil
}

// manageWorkers restarts workers that died or never started.
func (p *WorkerPool) manageWorkers() {
	defer p.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.healthCheckWorkers()
		}
	}
}

// updateMetricsLoop periodically updates metrics.
func (p *WorkerPool) updateMetricsLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.metrics.UpdateMetrics()
			p.updateWorkerMemory()
		}
	}
}

// updateWorkerMemory reports the resident set size of each worker.
func (p *WorkerPool) updateWorkerMemory() {
	p.workerMu.RLock()
	defer p.workerMu.RUnlock()

	for _, worker := range p.workers {
		if worker.process.Process == nil {
			continue
		}
		if rss := processMemory(worker.process.Process.Pid); rss > 0 {
			p.metrics.UpdateWorkerMemory(worker.id, rss)
		}
	}
}

// processMemory reads VmRSS from /proc/[pid]/status. Returns 0 when unavailable.
func processMemory(pid int) int64 {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			if kb, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
				return kb * 1024
			}
		}
	}
	return 0
}

// startWorker starts worker id and waits for its socket.
func (p *WorkerPool) startWorker(ctx context.Context, id int) error {
	socketPath := filepath.Join(p.cfg.SocketDir, fmt.Sprintf("worker-%d.sock", id))
	_ = os.Remove(socketPath)

	args := []string{p.cfg.ScriptPath, "--socket", socketPath}
	if p.cfg.Model != "" {
		args = append(args, "--model", p.cfg.Model)
	}
	cmd := exec.Command(p.cfg.PythonPath, args...)
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start worker %d: %w", id, err)
	}

	worker := &poolWorker{
		id:         id,
		process:    cmd,
		socketPath: socketPath,
		startedAt:  time.Now(),
		lastUsed:   time.Now(),
		exited:     make(chan struct{}),
		logger:     p.logger.WithField("worker_id", id),
	}
	go func() {
		err := cmd.Wait()
		worker.logger.WithError(err).Warn("Worker process exited")
		close(worker.exited)
	}()

	if err := waitForSocket(ctx, socketPath, worker.exited); err != nil {
		_ = cmd.Process.Kill()
		<-worker.exited
		return fmt.Errorf("worker %d socket not created: %w", id, err)
	}

	p.workerMu.Lock()
	p.workers[id] = worker
	p.workerMu.Unlock()
	p.offer(worker)

	worker.logger.Info("Worker started")
	p.metrics.RecordWorkerStart(id)
	return nil
}

func waitForSocket(ctx context.Context, path string, exited <-chan struct{}) error {
	ctx, cancel := context.WithTimeout(ctx, workerStartTimeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return errors.New("worker exited during startup")
		case <-ticker.C:
		}
	}
}

// healthCheckWorkers restarts dead or missing workers.
func (p *WorkerPool) healthCheckWorkers() {
	for id := 0; id < p.cfg.Workers; id++ {
		p.workerMu.RLock()
		worker, ok := p.workers[id]
		p.workerMu.RUnlock()

		if ok {
			select {
			case <-worker.exited:
			default:
				continue
			}
			p.logger.WithField("worker_id", id).Warn("Worker is dead, restarting")
			p.workerMu.Lock()
			delete(p.workers, id)
			p.workerMu.Unlock()
			p.metrics.RecordWorkerRestart(id)
		}

		select {
		case <-p.shutdown:
			return
		default:
		}
		if err := p.startWorker(context.Background(), id); err != nil {
			p.logger.WithError(err).WithField("worker_id", id).Error("Failed to restart worker")
		}
	}
}

// acquire takes an idle live worker from the pool.
func (p *WorkerPool) acquire(ctx context.Context) (*poolWorker, error) {
	waitStart := time.Now()
	timeout := time.NewTimer(workerAcquireWait)
	defer timeout.Stop()

	for {
		select {
		case worker := <-p.ready:
			select {
			case <-worker.exited:
				// Dead workers are dropped; the health loop replaces them.
				continue
			default:
			}
			p.metrics.RecordQueueWait(time.Since(waitStart))
			return worker, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.shutdown:
			return nil, fmt.Errorf("%w: worker pool closed", ErrUnavailable)
		case <-timeout.C:
			return nil, fmt.Errorf("%w: timeout waiting for available worker", ErrUnavailable)
		}
	}
}

func (p *WorkerPool) release(worker *poolWorker) {
	worker.mu.Lock()
	worker.busy = false
	worker.mu.Unlock()

	p.offer(worker)
}

// offer puts worker back into the ready queue. Slots held by dead workers
// are freed lazily by acquire, so a full queue is waited out in the background.
func (p *WorkerPool) offer(worker *poolWorker) {
	select {
	case <-worker.exited:
		return
	default:
	}
	select {
	case p.ready <- worker:
	default:
		go func() {
			select {
			case p.ready <- worker:
			case <-worker.exited:
			case <-p.shutdown:
			}
		}()
	}
}

// Translate translates text on an available worker.
func (p *WorkerPool) Translate(ctx context.Context, text, sourceLang, targetLang, mode string) (string, error) {
	worker, err := p.acquire(ctx)
	if err != nil {
		return "", engineErr(EnginePool, "translate", err)
	}
	defer p.release(worker)

	worker.mu.Lock()
	worker.busy = true
	worker.lastUsed = time.Now()
	worker.mu.Unlock()

	socketStart := time.Now()
	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: worker.socketPath, Net: "unix"})
	p.metrics.RecordSocketConnection(worker.id, time.Since(socketStart), err == nil)
	if err != nil {
		return "", engineErr(EnginePool, "translate", fmt.Errorf("%w: failed to connect to worker socket: %v", ErrUnavailable, err))
	}
	defer conn.Close()

	deadline := time.Now().Add(workerCallTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if err := json.NewEncoder(conn).Encode(&workerRequest{
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Mode:       mode,
	}); err != nil {
		return "", engineErr(EnginePool, "translate", fmt.Errorf("failed to send request: %w", err))
	}

	var resp workerResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		if ctx.Err() != nil {
			return "", engineErr(EnginePool, "translate", ctx.Err())
		}
		if errors.Is(err, io.EOF) {
			return "", engineErr(EnginePool, "translate", errors.New("worker connection closed"))
		}
		return "", engineErr(EnginePool, "translate", fmt.Errorf("failed to read response: %w", err))
	}
	if !resp.Success {
		return "", engineErr(EnginePool, "translate", fmt.Errorf("translation failed: %s", resp.Error))
	}
	return resp.TranslatedText, nil
}

// CheckHealth reports whether at least one worker is alive.
func (p *WorkerPool) CheckHealth(ctx context.Context) error {
	p.workerMu.RLock()
	defer p.workerMu.RUnlock()
	for _, worker := range p.workers {
		select {
		case <-worker.exited:
		default:
			return nil
		}
	}
	return engineErr(EnginePool, "health", fmt.Errorf("%w: no live workers", ErrUnavailable))
}

// SupportedLanguages returns supported language codes.
func (p *WorkerPool) SupportedLanguages(ctx context.Context) ([]string, error) {
	return copyLanguages(), nil
}

// Close shuts down the worker pool.
func (p *WorkerPool) Close() error {
	p.closing.Do(func() {
		close(p.shutdown)
		p.wg.Wait()

		p.workerMu.Lock()
		defer p.workerMu.Unlock()
		for id, worker := range p.workers {
			if worker.process.Process != nil {
				_ = worker.process.Process.Kill()
			}
			<-worker.exited
			_ = os.Remove(worker.socketPath)
			delete(p.workers, id)
		}
	})
	return nil
}
