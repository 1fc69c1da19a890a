package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrQueueFull signals backpressure: the submission queue is at capacity
// and the caller should retry later.
var ErrQueueFull = errors.New("job queue full")

// Pool runs jobs on a bounded number of workers fed by a bounded queue.
type Pool struct {
	runner *Runner
	log    *slog.Logger

	sem   *semaphore.Weighted
	queue chan string

	startOnce sync.Once
	wg        sync.WaitGroup
}

func NewPool(runner *Runner, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}
	log := runner.deps.Log
	return &Pool{
		runner: runner,
		log:    log,
		sem:    semaphore.NewWeighted(int64(workers)),
		queue:  make(chan string, queueSize),
	}
}

// Start launches the dispatcher. It returns immediately; workers stop when
// ctx is cancelled and the queue has drained.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.dispatch(ctx)
	})
}

func (p *Pool) dispatch(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-p.queue:
			if !ok {
				return
			}
			if err := p.sem.Acquire(ctx, 1); err != nil {
				return
			}
			p.wg.Add(1)
			go func(id string) {
				defer p.wg.Done()
				defer p.sem.Release(1)
				p.runner.Run(ctx, id)
			}(jobID)
		}
	}
}

// Submit enqueues a job for processing. It never blocks: a full queue
// returns ErrQueueFull.
func (p *Pool) Submit(jobID string) error {
	select {
	case p.queue <- jobID:
		p.log.Info("job queued", "job_id", jobID, "queued", len(p.queue), "capacity", cap(p.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait blocks until in-flight workers finish. Callers cancel the Start
// context first.
func (p *Pool) Wait() {
	p.wg.Wait()
}
