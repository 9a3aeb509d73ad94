// Package localexecutor provides a concrete, in-process implementation of the
// executor.Executor interface.
package localexecutor

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/gridreshaper/internal/collective"
	"github.com/specialistvlad/gridreshaper/internal/ctxlog"
	"github.com/specialistvlad/gridreshaper/internal/executor"
)

// Executor runs workers as goroutines of the current process.
type Executor struct {
	workers int
	mode    executor.Mode
}

// New creates a local executor. Sequential mode always runs one worker.
func New(workers int, mode executor.Mode) (*Executor, error) {
	if _, err := executor.ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if workers < 1 {
		return nil, fmt.Errorf("worker count must be positive, got %d", workers)
	}
	if mode == executor.Sequential {
		workers = 1
	}
	return &Executor{workers: workers, mode: mode}, nil
}

// Workers is the pool size.
func (e *Executor) Workers() int { return e.workers }

// Execute implements executor.Executor. The first worker error cancels the
// context seen by the others and is returned once every worker stopped.
func (e *Executor) Execute(ctx context.Context, fn executor.WorkerFunc) error {
	logger := ctxlog.FromContext(ctx)

	if e.mode == executor.Sequential {
		logger.Debug("Worker started.", "worker", 0)
		err := fn(ctxlog.With(ctx, "worker", 0), collective.Serial())
		logger.Debug("Worker finished.", "worker", 0, "error", err)
		return err
	}

	comms, err := collective.NewGroup(e.workers)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, comm := range comms {
		g.Go(func() error {
			rank := comm.Rank()
			logger.Debug("Worker started.", "worker", rank)
			err := fn(ctxlog.With(gctx, "worker", rank), comm)
			if err != nil {
				logger.Debug("Worker failed.", "worker", rank, "error", err)
				return err
			}
			logger.Debug("Worker finished.", "worker", rank)
			return nil
		})
	}
	return g.Wait()
}

var _ executor.Executor = (*Executor)(nil)
