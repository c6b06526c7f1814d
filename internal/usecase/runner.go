package usecase

import (
	"context"
	"time"

	"PostPilot/internal/ports"
)

// Runner wires the interval driver with the pipeline use case.
type Runner struct {
	driver   ports.Scheduler
	pipeline *Pipeline
}

// NewRunner returns a helper to start/stop recurring runs.
func NewRunner(driver ports.Scheduler, pipeline *Pipeline) *Runner {
	return &Runner{driver: driver, pipeline: pipeline}
}

// Start registers the pipeline with the provided scheduler.
func (r *Runner) Start(ctx context.Context) error {
	if r.driver == nil || r.pipeline == nil {
		return nil
	}

	job := func(time.Time) {
		_ = r.pipeline.ProcessRun(ctx)
	}

	return r.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (r *Runner) Stop(ctx context.Context) error {
	if r.driver == nil {
		return nil
	}
	return r.driver.Stop(ctx)
}
