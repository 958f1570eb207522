// Package worker runs "process one task" invocations on a bounded pool.
package worker

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"jobsee-orchestrator/internal/usecase"
)

// Processor claims and runs one queued task.
type Processor interface {
	ProcessOne(ctx context.Context) (usecase.RunResult, error)
}

// Dispatcher feeds the pool with process-one jobs. Several jobs may run at
// once; the queue claim guarantees each task has a single owner.
type Dispatcher struct {
	proc Processor
	pool *Pool
	log  *zerolog.Logger
}

func NewDispatcher(proc Processor, pool *Pool, logger *zerolog.Logger) *Dispatcher {
	l := logger.With().Str("component", "dispatcher").Logger()
	return &Dispatcher{proc: proc, pool: pool, log: &l}
}

// Dispatch submits one process-one job without waiting for it.
func (d *Dispatcher) Dispatch() error {
	return d.pool.Submit(d.job)
}

// Fill submits a job for every idle worker, at least one. It returns how
// many were accepted.
func (d *Dispatcher) Fill(ctx context.Context) (int, error) {
	n := d.pool.Idle()
	if n == 0 {
		n = 1
	}
	submitted := 0
	for i := 0; i < n; i++ {
		if err := d.Dispatch(); err != nil {
			if errors.Is(err, ErrQueueFull) {
				d.log.Debug().Int("submitted", submitted).Msg("pool saturated")
				return submitted, nil
			}
			return submitted, err
		}
		submitted++
	}
	return submitted, nil
}

// RunNow processes one task on the caller's goroutine.
func (d *Dispatcher) RunNow(ctx context.Context) (usecase.RunResult, error) {
	return d.proc.ProcessOne(ctx)
}

func (d *Dispatcher) job(ctx context.Context) error {
	res, err := d.proc.ProcessOne(ctx)
	if err != nil {
		return err
	}
	if res.Processed {
		d.log.Debug().Str("task_id", res.TaskID).Str("status", string(res.Status)).Int("applications", res.ApplicationsCreated).Msg("task processed")
	}
	return nil
}
