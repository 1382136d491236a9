// Package batch runs the reconciliation loops that pick up asynchronous
// provider results and expire stale entities. Every job runs on a fixed
// delay under a named cluster-wide lease, so at most one node executes a
// given job at a time. A failing item is logged and skipped; it never
// aborts the rest of its batch.
package batch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"onboard/internal/platform/lock"
	"onboard/internal/platform/metrics"
)

// Job is one reconciliation loop. Run returns the number of entities it
// changed in this pass.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int64, error)
}

// Runner drives the jobs until the context is canceled.
type Runner struct {
	locks   lock.Service
	maxHold time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
	jobs    []Job
}

func NewRunner(locks lock.Service, maxHold time.Duration, m *metrics.Metrics, logger *slog.Logger) *Runner {
	return &Runner{
		locks:   locks,
		maxHold: maxHold,
		metrics: m,
		logger:  logger,
	}
}

// Add registers a job. Not safe to call after Run started.
func (r *Runner) Add(jobs ...Job) {
	r.jobs = append(r.jobs, jobs...)
}

// Run blocks until the context is canceled. Jobs run concurrently with each
// other but sequentially within themselves: the next pass starts one
// interval after the previous pass finished.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range r.jobs {
		g.Go(func() error {
			r.loop(ctx, job)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	timer := time.NewTimer(job.Interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		r.runOnce(ctx, job)
		timer.Reset(job.Interval)
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job) {
	release, acquired, err := r.locks.Acquire(ctx, job.Name, r.maxHold)
	if err != nil {
		r.logger.ErrorContext(ctx, "acquiring job lease failed", "job", job.Name, "error", err)
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			r.logger.WarnContext(ctx, "releasing job lease failed", "job", job.Name, "error", err)
		}
	}()

	changed, err := job.Run(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "reconciliation job failed", "job", job.Name, "error", err)
	}
	if changed > 0 {
		r.metrics.BatchItemsChanged.WithLabelValues(job.Name).Add(float64(changed))
		r.logger.InfoContext(ctx, "reconciliation job changed entities", "job", job.Name, "changed", changed)
	}
}
