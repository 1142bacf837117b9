package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one path waiting in the queue.
type Job struct {
	Path string
}

// Queue fans ingestion jobs out to a fixed worker pool. Workers log per-job
// outcomes; callers that need results should use the Service directly.
type Queue struct {
	svc     *Service
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewQueue(svc *Service, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		svc:     svc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("ingest.worker.started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					doc, err := q.svc.IngestFile(ctx, job.Path)
					cancel()

					if err != nil {
						q.logger.Error("ingest.worker.failed", "worker_id", workerID, "path", job.Path, "error", err)
					} else {
						q.logger.Info("ingest.worker.ok", "worker_id", workerID, "path", job.Path, "id", doc.ID)
					}
				}

				q.logger.Info("ingest.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("ingest.queue.closed", "path", job.Path)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("ingest.queue.enqueued", "path", job.Path)
	default:
		q.logger.Warn("ingest.queue.full", "path", job.Path)
		q.ch <- job
	}
	return nil
}

// Shutdown stops accepting jobs and waits for in-flight work, up to the
// context deadline.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("ingest.queue.shutdown_interrupted")
	case <-done:
		q.logger.Info("ingest.queue.drained")
	}
}
