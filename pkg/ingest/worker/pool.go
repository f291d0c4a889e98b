// Package worker provides an asynchronous worker pool for ingesting
// statements off the request path.
//
// Jobs are accepted into a bounded queue. When the queue is full the job is
// dropped and logged rather than blocking the caller.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/kb/pkg/ingest"
	"github.com/papercomputeco/kb/pkg/statement"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 2 * time.Minute
)

// Ingester is the part of the ingestion pipeline the pool drives.
type Ingester interface {
	InsertStatementWithChunks(ctx context.Context, s statement.Statement) (*ingest.Result, error)
}

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Statement statement.Statement

	// Source names where the statement came from, for logging.
	Source string
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Ingester writes each statement with its chunks.
	Ingester Ingester

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds a single job (defaults to 2m).
	JobTimeout time.Duration

	Logger *slog.Logger
}

// Stats are running job counters.
type Stats struct {
	Enqueued  int64 `json:"enqueued"`
	Dropped   int64 `json:"dropped"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Pool processes ingestion jobs asynchronously.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
	closed    atomic.Bool
	mu        sync.RWMutex

	enqueued, dropped, processed, failed atomic.Int64
}

// ErrIngesterRequired is returned by NewPool without an Ingester.
var ErrIngesterRequired = errors.New("ingester required")

// NewPool creates a pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Ingester == nil {
		return nil, ErrIngesterRequired
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = defaultJobTimeout
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger.With("component", "ingest_worker"),
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job. Returns false if the queue is full or the pool is
// closed, in which case the job is dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed.Load() {
		p.dropped.Add(1)
		p.logger.Error("job not queued, pool closed, job dropped", "subject", job.Statement.Subject)
		return false
	}

	select {
	case p.queue <- job:
		p.enqueued.Add(1)
		p.logger.Debug("job queued", "subject", job.Statement.Subject, "source", job.Source)
		return true
	default:
		p.dropped.Add(1)
		p.logger.Error("job not queued, queue full, job dropped",
			"subject", job.Statement.Subject,
			"source", job.Source,
		)
		return false
	}
}

// Close stops accepting jobs and waits for queued jobs to drain.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed.Store(true)
		close(p.queue)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

// Stats returns a snapshot of the job counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Enqueued:  p.enqueued.Load(),
		Dropped:   p.dropped.Load(),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	res, err := p.config.Ingester.InsertStatementWithChunks(ctx, job.Statement)
	if err != nil {
		p.failed.Add(1)
		p.logger.Error("async ingestion failed",
			"subject", job.Statement.Subject,
			"source", job.Source,
			"error", err,
		)
		return
	}

	p.processed.Add(1)
	p.logger.Debug("statement ingested",
		"statement_id", res.StatementID,
		"is_new", res.IsNew,
		"chunks", len(res.ChunkIDs),
		"embedded", res.Embedded,
	)
}
