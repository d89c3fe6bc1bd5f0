// Package queue decouples indexing work from document saves: callers
// enqueue documents and return immediately while workers apply them to
// the index in the background.
package queue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/commonplacehq/commonplace/internal/errors"
	"github.com/commonplacehq/commonplace/internal/store"
)

// JobType distinguishes first-time indexing from re-indexing.
type JobType string

const (
	JobInitial JobType = "initial"
	JobUpdate  JobType = "update"
)

// Indexer is the orchestrator surface the queue drives.
type Indexer interface {
	IndexDocument(ctx context.Context, doc store.Document) error
	UpdateIndex(ctx context.Context, doc store.Document) error
}

// Job is one unit of indexing work.
type Job struct {
	ID       string
	Type     JobType
	Document store.Document
}

// Config tunes worker count and backpressure depth.
type Config struct {
	Workers    int
	BufferSize int
}

// Queue is a bounded indexing work queue. Producers block once the
// buffer fills; a failed job is logged and the queue continues with the
// next document. Stop drains everything already enqueued before
// returning, so no document is left half-indexed by shutdown.
//
// Shutdown ordering: Stop closes stopCh first, which unparks any
// producer blocked on a full buffer, then waits for producers to return
// before closing the jobs channel. A producer therefore never sends on
// a closed channel.
type Queue struct {
	indexer Indexer
	logger  *slog.Logger
	cfg     Config

	mu        sync.Mutex
	jobs      chan Job
	stopCh    chan struct{}
	producers sync.WaitGroup
	group     *errgroup.Group
	baseCtx   context.Context
	started   bool
}

// New builds a Queue over the given indexer. A nil logger falls back to
// slog.Default.
func New(indexer Indexer, cfg Config, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	return &Queue{
		indexer: indexer,
		logger:  logger.With("component", "queue"),
		cfg:     cfg,
	}
}

// Start launches the worker pool. Starting a started queue is a no-op.
// The context is the lifetime context handed to indexing work; workers
// drain the buffer even after it is cancelled so an accepted job is
// never dropped.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}

	q.jobs = make(chan Job, q.cfg.BufferSize)
	q.stopCh = make(chan struct{})
	q.group = &errgroup.Group{}
	q.baseCtx = ctx
	q.started = true

	for i := 0; i < q.cfg.Workers; i++ {
		q.group.Go(q.worker)
	}
	q.logger.Info("queue_started", "workers", q.cfg.Workers, "buffer", q.cfg.BufferSize)
}

// Stop closes the queue and waits for in-flight and buffered jobs to
// complete. Stopping a stopped queue is a no-op. Producers parked on a
// full buffer are released with an error rather than left to race the
// channel close.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	close(q.stopCh)
	group := q.group
	q.mu.Unlock()

	q.producers.Wait()
	close(q.jobs)

	_ = group.Wait()
	q.logger.Info("queue_stopped")
}

// QueueIndexing enqueues one job per document and returns the assigned
// job IDs. The call blocks while the buffer is full; it fails if the
// queue is not running. A Stop racing the call releases it mid-batch:
// the IDs accepted so far are returned alongside the error, and every
// returned ID will be processed.
func (q *Queue) QueueIndexing(documents []store.Document, jobType JobType) ([]string, error) {
	switch jobType {
	case JobInitial, JobUpdate:
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "unknown job type %q", jobType)
	}

	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return nil, errors.New(errors.ErrCodeNotInitialized, "indexing queue is not running", nil)
	}
	jobs, stop := q.jobs, q.stopCh
	q.producers.Add(1)
	q.mu.Unlock()
	defer q.producers.Done()

	ids := make([]string, 0, len(documents))
	for _, doc := range documents {
		jb := Job{ID: uuid.NewString(), Type: jobType, Document: doc}
		select {
		case jobs <- jb:
			ids = append(ids, jb.ID)
		case <-stop:
			return ids, errors.New(errors.ErrCodeNotInitialized, "indexing queue is shutting down", nil)
		}
	}
	return ids, nil
}

// worker pulls jobs until the channel closes. A per-document failure is
// logged and the worker moves on; one bad document must not abort a
// batch.
func (q *Queue) worker() error {
	for jb := range q.jobs {
		if err := q.process(jb); err != nil {
			q.logger.Error("index_job_failed",
				"job_id", jb.ID,
				"job_type", string(jb.Type),
				"document_id", jb.Document.ID,
				"error", err.Error())
			continue
		}
		q.logger.Debug("index_job_done", "job_id", jb.ID, "document_id", jb.Document.ID)
	}
	return nil
}

func (q *Queue) process(jb Job) error {
	switch jb.Type {
	case JobUpdate:
		err := q.indexer.UpdateIndex(q.baseCtx, jb.Document)
		if errors.IsNotFound(err) {
			// An update racing a never-indexed document falls back to
			// initial indexing.
			return q.indexer.IndexDocument(q.baseCtx, jb.Document)
		}
		return err
	default:
		return q.indexer.IndexDocument(q.baseCtx, jb.Document)
	}
}
