package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/utils/errutil"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

const (
	DefaultWorkers    = 4
	DefaultCapacity   = 1024
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 60 * time.Second
)

// ErrQueueFull is returned by Schedule when the queue cannot accept more jobs
var ErrQueueFull = goerr.New("job queue is full")

// ErrQueueStopped is returned by Schedule after Stop
var ErrQueueStopped = goerr.New("job queue is stopped")

// Backoff returns the delay before retry number attempt (0-based): base * 2^attempt
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return base << attempt
}

type entry struct {
	job     *interfaces.Job
	attempt int
}

// Queue is an in-process scheduler. Jobs are invoked at least once while the process
// lives; failed jobs are retried with exponential backoff. Jobs with the same key run
// one at a time. Exclusion across processes is not provided.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - Pending jobs are lost when the process exits
type Queue struct {
	workers    int
	maxRetries int
	baseDelay  time.Duration

	jobs   chan *entry
	stopCh chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[string]bool
	waiting map[string][]*entry
	stopped bool
}

var _ interfaces.Scheduler = &Queue{}

type QueueOption func(*Queue)

func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		q.workers = n
	}
}

func WithMaxRetries(n int) QueueOption {
	return func(q *Queue) {
		q.maxRetries = n
	}
}

func WithBaseDelay(d time.Duration) QueueOption {
	return func(q *Queue) {
		q.baseDelay = d
	}
}

func WithCapacity(n int) QueueOption {
	return func(q *Queue) {
		q.jobs = make(chan *entry, n)
	}
}

func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		workers:    DefaultWorkers,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		jobs:       make(chan *entry, DefaultCapacity),
		stopCh:     make(chan struct{}),
		running:    make(map[string]bool),
		waiting:    make(map[string][]*entry),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.workers < 1 {
		q.workers = 1
	}
	return q
}

// Start launches the worker goroutines. Jobs run with a context derived from ctx,
// which Stop cancels.
func (q *Queue) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	q.mu.Lock()
	q.cancel = cancel
	q.mu.Unlock()

	logging.Default().Info("job queue starting",
		"workers", q.workers,
		"max_retries", q.maxRetries,
		"base_delay", q.baseDelay.String())

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run(ctx)
	}
	return nil
}

// Stop cancels running jobs and waits for them to return
func (q *Queue) Stop() {
	logging.Default().Info("job queue stopping")

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	cancel := q.cancel
	q.mu.Unlock()

	close(q.stopCh)
	if cancel != nil {
		cancel()
	}
	q.wg.Wait()
	logging.Default().Info("job queue stopped")
}

// Schedule enqueues job and returns without waiting for it to run
func (q *Queue) Schedule(ctx context.Context, job *interfaces.Job) error {
	if job == nil || job.Run == nil {
		return goerr.New("job has no function")
	}
	if err := q.enqueue(&entry{job: job}); err != nil {
		return goerr.Wrap(err, "failed to schedule job", goerr.V("name", job.Name), goerr.V("key", job.Key))
	}

	logging.From(ctx).Debug("job scheduled", "name", job.Name, "key", job.Key)
	return nil
}

func (q *Queue) enqueue(e *entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrQueueStopped
	}
	select {
	case q.jobs <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case e := <-q.jobs:
			for e != nil {
				e = q.process(ctx, e)
			}

		case <-q.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

// process runs e unless its key is busy, and returns the next job waiting on the same key
func (q *Queue) process(ctx context.Context, e *entry) *entry {
	key := e.job.Key
	if key != "" {
		q.mu.Lock()
		if q.running[key] {
			q.waiting[key] = append(q.waiting[key], e)
			q.mu.Unlock()
			return nil
		}
		q.running[key] = true
		q.mu.Unlock()
	}

	q.execute(ctx, e)

	if key == "" {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.running, key)
	if next := q.waiting[key]; len(next) > 0 {
		q.waiting[key] = next[1:]
		if len(q.waiting[key]) == 0 {
			delete(q.waiting, key)
		}
		return next[0]
	}
	return nil
}

func (q *Queue) execute(ctx context.Context, e *entry) {
	logger := logging.From(ctx).With("job", e.job.Name, "key", e.job.Key, "attempt", e.attempt)
	jobCtx := logging.With(ctx, logger)

	err := invoke(jobCtx, e.job)
	if err == nil {
		logger.Debug("job completed")
		return
	}

	maxRetries := q.maxRetries
	if e.job.MaxRetries != 0 {
		maxRetries = e.job.MaxRetries
	}
	if e.attempt >= maxRetries {
		_ = errutil.Handle(jobCtx, err, "job failed, giving up")
		return
	}

	delay := Backoff(q.baseDelay, e.attempt)
	logger.Warn("job failed, retry scheduled", "error", err.Error(), "delay", delay.String())

	retry := &entry{job: e.job, attempt: e.attempt + 1}
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
			if err := q.enqueue(retry); err != nil {
				_ = errutil.Handle(jobCtx, err, "failed to re-enqueue job")
			}
		case <-q.stopCh:
		case <-ctx.Done():
		}
	}()
}

func invoke(ctx context.Context, job *interfaces.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("job panicked", goerr.V("panic", fmt.Sprint(r)))
		}
	}()
	return job.Run(ctx)
}
