package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sourceplane/litejob/internal/model"
)

// LocalDispatcher runs dispatched jobs in-process, at most `limit` at a time.
type LocalDispatcher struct {
	runner *Runner
	sem    chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

func NewLocalDispatcher(runner *Runner, limit int, logger *slog.Logger) *LocalDispatcher {
	if limit <= 0 {
		limit = 1
	}
	return &LocalDispatcher{
		runner: runner,
		sem:    make(chan struct{}, limit),
		logger: logger,
	}
}

// Dispatch starts the job in the background and returns immediately. The job
// outlives ctx cancellation so a finished HTTP request does not abort its build.
func (d *LocalDispatcher) Dispatch(ctx context.Context, job model.PlanJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("dispatcher is shut down, job %s rejected", job.ID)
	}

	runCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		d.sem <- struct{}{}
		defer func() { <-d.sem }()

		if err := d.runner.RunJob(runCtx, job); err != nil {
			d.logger.Error("dispatched job failed",
				slog.String("job", job.ID),
				slog.Any("error", err),
			)
		}
	}()

	d.logger.Debug("job dispatched locally", slog.String("job", job.ID))
	return nil
}

// Wait stops accepting jobs and blocks until every dispatched job has finished.
func (d *LocalDispatcher) Wait() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
