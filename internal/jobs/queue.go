// Package jobs provides a bounded-concurrency, in-memory job registry for
// simulation and Monte Carlo runs: submission, status tracking, result
// caching, and TTL-based cleanup. No state is persisted to disk.
package jobs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tokenlab/abm-engine/pkg/utils"
)

// Status is a job's lifecycle state. Once a job reaches a terminal status
// (Completed, Failed, Cancelled) its fields are frozen.
type Status string

const (
	Pending   Status = "pending"
	Running   Status = "running"
	Completed Status = "completed"
	Failed    Status = "failed"
	Cancelled Status = "cancelled"
)

func (s Status) terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// OverCapacityError is returned by Submit when running jobs already equal
// the configured maximum.
type OverCapacityError struct {
	Running int
	Max     int
}

func (e *OverCapacityError) Error() string {
	return fmt.Sprintf("jobs: over capacity, %d/%d jobs running", e.Running, e.Max)
}

// NotFoundError is returned when a job id is unknown.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("jobs: job %q not found", e.JobID) }

// NotAvailableError is returned when results are requested for a job that
// hasn't completed (or completed with the wrong result kind).
type NotAvailableError struct {
	JobID  string
	Status Status
}

func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("jobs: results for job %q not available (status=%s)", e.JobID, e.Status)
}

// Runner executes one job's work given a cancellable context and a progress
// callback, returning an opaque result or an error. It is supplied
// explicitly per Submit call rather than looked up by type.
type Runner func(ctx context.Context, onProgress func(currentMonth, totalMonths int)) (result any, err error)

// Info is the externally-visible state of one submitted job.
type Info struct {
	JobID             string
	ConfigFingerprint string
	Status            Status
	CreatedAt         time.Time
	StartedAt         time.Time
	CompletedAt       time.Time
	CurrentMonth      int
	TotalMonths       int
	IsMonteCarlo      bool
	Result            any
	Err               error
}

// ProgressPct returns 0-100, or 0 if TotalMonths is unset.
func (i Info) ProgressPct() float64 {
	if i.TotalMonths <= 0 {
		return 0
	}
	return 100 * float64(i.CurrentMonth) / float64(i.TotalMonths)
}

type metrics struct {
	submitted  prometheus.Counter
	running    prometheus.Gauge
	byStatus   *prometheus.CounterVec
	cacheHits  prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "abm_jobs_submitted_total",
			Help: "Total number of jobs submitted.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "abm_jobs_running",
			Help: "Number of jobs currently running.",
		}),
		byStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "abm_jobs_finished_total",
			Help: "Total number of jobs finished, by terminal status.",
		}, []string{"status"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "abm_jobs_cache_hits_total",
			Help: "Total number of job submissions served from the result cache.",
		}),
	}
}

// Register adds this queue's metrics to reg. Safe to call once per queue.
func (q *Queue) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{q.metrics.submitted, q.metrics.running, q.metrics.byStatus, q.metrics.cacheHits} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

type cacheEntry struct {
	result    any
	cachedAt  time.Time
}

// Config configures a Queue.
type Config struct {
	MaxConcurrentJobs int
	JobTTL            time.Duration // default 24h
	CacheTTL          time.Duration // default 2h, applies to non-Monte-Carlo jobs only
	Logger            *zap.Logger
}

// Queue is the in-memory job registry.
type Queue struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics

	mu      sync.Mutex
	jobs    map[string]*Info
	cache   map[string]cacheEntry // keyed by config fingerprint
	running int

	stopSweep chan struct{}
}

// NewQueue constructs a Queue and starts its background TTL sweeper.
func NewQueue(cfg Config) *Queue {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 5
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 24 * time.Hour
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	q := &Queue{
		cfg:       cfg,
		logger:    logger,
		metrics:   newMetrics(),
		jobs:      make(map[string]*Info),
		cache:     make(map[string]cacheEntry),
		stopSweep: make(chan struct{}),
	}
	go q.sweepLoop()
	return q
}

// Fingerprint computes the first 16 hex chars of the SHA-256 of config's
// canonical (sorted-key) JSON encoding. Struct fields are encoded in
// declaration order, so the encoding is decoded into generic maps (numbers
// kept verbatim) and re-encoded, which makes encoding/json sort every key.
func Fingerprint(config any) (string, error) {
	data, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("jobs: failed to marshal config for fingerprint: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("jobs: failed to canonicalize config for fingerprint: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("jobs: failed to canonicalize config for fingerprint: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16], nil
}


// SubmitSimulation submits a regular (non-Monte-Carlo) simulation job.
// Identical configs within the cache TTL window are served from cache as a
// synthetic already-completed "cached_" job, without consuming a capacity
// slot. Otherwise, if running jobs already equal MaxConcurrentJobs, returns
// *OverCapacityError.
func (q *Queue) SubmitSimulation(ctx context.Context, config any, totalMonths int, run Runner) (*Info, error) {
	fingerprint, err := Fingerprint(config)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	if entry, ok := q.cache[fingerprint]; ok && time.Since(entry.cachedAt) < q.cfg.CacheTTL {
		info := &Info{
			JobID:             utils.GenerateID("cached", 6),
			ConfigFingerprint: fingerprint,
			Status:            Completed,
			CreatedAt:         time.Now(),
			CompletedAt:       time.Now(),
			TotalMonths:       totalMonths,
			CurrentMonth:      totalMonths,
			Result:            entry.result,
		}
		q.jobs[info.JobID] = info
		q.mu.Unlock()
		q.metrics.cacheHits.Inc()
		return info, nil
	}

	if q.running >= q.cfg.MaxConcurrentJobs {
		q.mu.Unlock()
		return nil, &OverCapacityError{Running: q.running, Max: q.cfg.MaxConcurrentJobs}
	}

	info := &Info{
		JobID:             utils.GenerateID("abm", 6),
		ConfigFingerprint: fingerprint,
		Status:            Pending,
		CreatedAt:         time.Now(),
		TotalMonths:       totalMonths,
	}
	q.jobs[info.JobID] = info
	q.running++
	q.mu.Unlock()

	q.metrics.submitted.Inc()
	q.metrics.running.Set(float64(q.running))

	go q.runJob(ctx, info, run, true /* cacheable */, fingerprint)
	return info, nil
}

// SubmitMonteCarlo submits a Monte Carlo job. Results are never cached.
func (q *Queue) SubmitMonteCarlo(ctx context.Context, config any, numTrials int, run Runner) (*Info, error) {
	fingerprint, err := Fingerprint(config)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	if q.running >= q.cfg.MaxConcurrentJobs {
		q.mu.Unlock()
		return nil, &OverCapacityError{Running: q.running, Max: q.cfg.MaxConcurrentJobs}
	}
	info := &Info{
		JobID:             utils.GenerateID("mc", 6),
		ConfigFingerprint: fingerprint,
		Status:            Pending,
		CreatedAt:         time.Now(),
		TotalMonths:       numTrials,
		IsMonteCarlo:      true,
	}
	q.jobs[info.JobID] = info
	q.running++
	q.mu.Unlock()

	q.metrics.submitted.Inc()
	q.metrics.running.Set(float64(q.running))

	go q.runJob(ctx, info, run, false /* cacheable */, fingerprint)
	return info, nil
}

func (q *Queue) runJob(ctx context.Context, info *Info, run Runner, cacheable bool, fingerprint string) {
	q.mu.Lock()
	info.Status = Running
	info.StartedAt = time.Now()
	q.mu.Unlock()

	onProgress := func(currentMonth, totalMonths int) {
		q.mu.Lock()
		info.CurrentMonth = currentMonth
		if totalMonths > 0 {
			info.TotalMonths = totalMonths
		}
		q.mu.Unlock()
	}

	result, err := run(ctx, onProgress)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.running--
	q.metrics.running.Set(float64(q.running))
	info.CompletedAt = time.Now()

	switch {
	case ctx.Err() == context.Canceled:
		info.Status = Cancelled
		q.metrics.byStatus.WithLabelValues(string(Cancelled)).Inc()
	case err != nil:
		info.Status = Failed
		info.Err = err
		q.logger.Error("job failed", zap.String("job_id", info.JobID), zap.Error(err))
		q.metrics.byStatus.WithLabelValues(string(Failed)).Inc()
	default:
		info.Status = Completed
		info.Result = result
		q.metrics.byStatus.WithLabelValues(string(Completed)).Inc()
		if cacheable {
			q.cache[fingerprint] = cacheEntry{result: result, cachedAt: time.Now()}
		}
	}
}

// Status returns a snapshot of a job's current state.
func (q *Queue) Status(jobID string) (Info, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	info, ok := q.jobs[jobID]
	if !ok {
		return Info{}, &NotFoundError{JobID: jobID}
	}
	return *info, nil
}

// Results returns a completed job's result, or *NotAvailableError if the
// job hasn't reached a terminal successful state.
func (q *Queue) Results(jobID string) (any, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	info, ok := q.jobs[jobID]
	if !ok {
		return nil, &NotFoundError{JobID: jobID}
	}
	if info.Status != Completed {
		return nil, &NotAvailableError{JobID: jobID, Status: info.Status}
	}
	return info.Result, nil
}

// Cancel cooperatively cancels a job; the running goroutine observes
// ctx.Err() at its next month boundary. cancel is the context.CancelFunc
// returned when the caller set up the job's context.
func (q *Queue) Cancel(jobID string, cancel context.CancelFunc) error {
	q.mu.Lock()
	info, ok := q.jobs[jobID]
	q.mu.Unlock()
	if !ok {
		return &NotFoundError{JobID: jobID}
	}
	if info.Status.terminal() {
		return nil
	}
	cancel()
	return nil
}

// All returns a snapshot of every known job.
func (q *Queue) All() []Info {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Info, 0, len(q.jobs))
	for _, info := range q.jobs {
		out = append(out, *info)
	}
	return out
}

// Stats summarizes the queue's current state.
type Stats struct {
	Total     int
	Running   int
	Pending   int
	Completed int
	Failed    int
	Cancelled int
}

// Stats returns an aggregate snapshot.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := Stats{Total: len(q.jobs)}
	for _, info := range q.jobs {
		switch info.Status {
		case Running:
			stats.Running++
		case Pending:
			stats.Pending++
		case Completed:
			stats.Completed++
		case Failed:
			stats.Failed++
		case Cancelled:
			stats.Cancelled++
		}
	}
	return stats
}

func (q *Queue) sweepLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-q.stopSweep:
			return
		case <-ticker.C:
			q.sweepOnce()
		}
	}
}

func (q *Queue) sweepOnce() {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	for id, info := range q.jobs {
		if !info.Status.terminal() {
			continue
		}
		if now.Sub(info.CompletedAt) > q.cfg.JobTTL {
			delete(q.jobs, id)
		}
	}
}

// Shutdown stops the background TTL sweeper.
func (q *Queue) Shutdown() {
	close(q.stopSweep)
}
