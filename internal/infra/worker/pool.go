package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull  = errors.New("worker queue full")
	ErrNilJob     = errors.New("nil job")
	ErrPoolClosed = errors.New("worker pool stopped")
)

// Job is one unit of work run by the pool.
type Job func(ctx context.Context) error

// Pool runs submitted jobs on a fixed number of goroutines. Submit never
// blocks: jobs are dropped when the queue is full.
type Pool struct {
	wg      sync.WaitGroup
	jobs    chan Job
	quit    chan struct{}
	stopped atomic.Bool
	n       int
	busy    atomic.Int32
	log     *zerolog.Logger
}

func NewPool(workers, queueSize int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	l := logger.With().Str("component", "pool").Logger()
	return &Pool{jobs: make(chan Job, queueSize), quit: make(chan struct{}), n: workers, log: &l}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case job := <-p.jobs:
					p.run(ctx, id, job)
				}
			}
		}(i)
	}
	p.log.Info().Int("workers", p.n).Int("queue", cap(p.jobs)).Msg("worker pool started")
}

func (p *Pool) run(ctx context.Context, id int, job Job) {
	p.busy.Add(1)
	defer p.busy.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker", id).Interface("panic", r).Msg("job panicked")
		}
	}()
	if err := job(ctx); err != nil {
		p.log.Error().Err(err).Int("worker", id).Msg("job failed")
	}
}

// Stop stops accepting jobs and waits for running jobs to return. Queued
// jobs that have not started are discarded.
func (p *Pool) Stop() {
	if p.stopped.Swap(true) {
		return
	}
	close(p.quit)
	p.wg.Wait()
	p.log.Info().Msg("worker pool stopped")
}

func (p *Pool) Submit(job Job) error {
	if job == nil {
		return ErrNilJob
	}
	if p.stopped.Load() {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Size is the number of worker goroutines.
func (p *Pool) Size() int { return p.n }

// Idle is the number of workers neither running nor about to pick up a job.
func (p *Pool) Idle() int {
	n := p.n - int(p.busy.Load()) - len(p.jobs)
	if n < 0 {
		return 0
	}
	return n
}
