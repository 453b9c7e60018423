package augment

import (
	"context"
	"log/slog"
	"sync"

	"github.com/iconidentify/albumproxy/internal/domain"
)

// Processor runs the augmentation pipeline for one album item.
type Processor interface {
	Process(ctx context.Context, token, itemID, mediaURL string) (*domain.AugmentationRecord, error)
}

// Job identifies one album item to augment.
type Job struct {
	Token    string
	ItemID   string
	MediaURL string
}

func (j Job) key() string {
	return j.Token + "_" + j.ItemID
}

// Future resolves with a job's outcome.
type Future struct {
	done chan struct{}
	rec  *domain.AugmentationRecord
	err  error
}

// Wait blocks until the job finishes or ctx expires.
func (f *Future) Wait(ctx context.Context) (*domain.AugmentationRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return f.rec, f.err
	}
}

// Done returns a channel closed when the job has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

func (f *Future) resolve(rec *domain.AugmentationRecord, err error) {
	f.rec = rec
	f.err = err
	close(f.done)
}

type queuedJob struct {
	job    Job
	future *Future
}

// Queue is the FIFO augmentation queue with a process-wide cap on
// concurrently running jobs (default 1, bounding the memory and CPU of the
// transcription engine). The dispatcher pulls the next queued job whenever a
// slot frees up, including after failures, so the queue always drains
// without external poking.
type Queue struct {
	proc   Processor
	limit  int
	logger *slog.Logger

	mu      sync.Mutex
	pending []*queuedJob
	index   map[string]*Future
	running int
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue creates a queue running at most limit jobs at once.
func NewQueue(limit int, proc Processor, logger *slog.Logger) *Queue {
	if limit < 1 {
		limit = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		proc:   proc,
		limit:  limit,
		logger: logger,
		index:  make(map[string]*Future),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Enqueue submits a job and returns its future. Jobs run in FIFO order as
// slots permit. A job for an item already pending or running coalesces onto
// the existing future, so an item is never processed twice concurrently.
func (q *Queue) Enqueue(job Job) (*Future, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, domain.ErrQueueClosed
	}

	if f, ok := q.index[job.key()]; ok {
		return f, nil
	}

	f := &Future{done: make(chan struct{})}
	q.index[job.key()] = f
	q.pending = append(q.pending, &queuedJob{job: job, future: f})
	q.dispatchLocked()

	return f, nil
}

// Running returns the number of currently executing jobs.
func (q *Queue) Running() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Stop rejects new jobs, cancels in-flight ones and waits for them to
// return. Pending jobs that never started resolve with ErrQueueClosed.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, item := range pending {
		item.future.resolve(nil, domain.ErrQueueClosed)
	}

	q.cancel()
	q.wg.Wait()
}

// dispatchLocked starts queued jobs while slots are free. Callers must hold
// q.mu.
func (q *Queue) dispatchLocked() {
	for q.running < q.limit && len(q.pending) > 0 {
		item := q.pending[0]
		q.pending = q.pending[1:]
		q.running++
		q.wg.Add(1)
		go q.run(item)
	}
}

func (q *Queue) run(item *queuedJob) {
	defer q.wg.Done()

	rec, err := q.proc.Process(q.ctx, item.job.Token, item.job.ItemID, item.job.MediaURL)
	if err != nil {
		if domain.IsTransient(err) {
			// No record was written; the next album refresh re-enqueues.
			q.logger.Info("augmentation deferred",
				"token", item.job.Token,
				"item_id", item.job.ItemID,
				"error", err,
			)
		} else {
			q.logger.Warn("augmentation job failed",
				"token", item.job.Token,
				"item_id", item.job.ItemID,
				"error", err,
			)
		}
	}
	item.future.resolve(rec, err)

	q.mu.Lock()
	delete(q.index, item.job.key())
	q.running--
	if !q.closed {
		q.dispatchLocked()
	}
	q.mu.Unlock()
}
