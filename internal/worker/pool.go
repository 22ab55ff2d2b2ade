// Package worker runs batches of independent tasks on a bounded number of
// goroutines. Tasks start in submission order and one failure never stops
// the others.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"vehicle-booking-engine/internal/logger"
)

// Task is one unit of work. ctx carries the per-task timeout.
type Task func(ctx context.Context) error

// Pool bounds concurrency, applies a per-task timeout and retries failed
// tasks with quadratic backoff.
type Pool struct {
	workers    int
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

type Option func(*Pool)

// WithRetries retries a failed task up to n times, waiting attempt²·base.
func WithRetries(n int, base time.Duration) Option {
	return func(p *Pool) {
		p.maxRetries = n
		p.backoff = base
	}
}

func NewPool(workers int, timeout time.Duration, opts ...Option) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{workers: workers, timeout: timeout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Report holds the outcome of a batch. Errors is indexed like the submitted
// tasks; Started lists task indexes in the order they began.
type Report struct {
	Errors  []error
	Started []int
}

func (r *Report) Failed() int {
	n := 0
	for _, err := range r.Errors {
		if err != nil {
			n++
		}
	}
	return n
}

// Run executes every task and waits for all of them. Task i never starts
// before task i-1 has started.
func (p *Pool) Run(ctx context.Context, tasks []Task) *Report {
	report := &Report{
		Errors:  make([]error, len(tasks)),
		Started: make([]int, 0, len(tasks)),
	}
	var mu sync.Mutex

	g := &errgroup.Group{}
	g.SetLimit(p.workers)

	prev := make(chan struct{})
	close(prev)

	for i, task := range tasks {
		wait := prev
		started := make(chan struct{})
		prev = started

		g.Go(func() error {
			<-wait
			mu.Lock()
			report.Started = append(report.Started, i)
			mu.Unlock()
			close(started)

			report.Errors[i] = p.runTask(ctx, i, task)
			return nil
		})
	}
	_ = g.Wait()
	return report
}

func (p *Pool) runTask(ctx context.Context, index int, task Task) error {
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * p.backoff
			logger.Debug("Retrying task", "index", index, "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return errors.CombineErrors(err, ctx.Err())
			case <-time.After(backoff):
			}
		}
		err = p.attempt(ctx, task)
		if err == nil {
			return nil
		}
	}
	return err
}

func (p *Pool) attempt(ctx context.Context, task Task) (err error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}
