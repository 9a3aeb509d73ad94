// Package executor defines how a pool of workers is run.
package executor

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gridreshaper/internal/collective"
)

// Mode selects how workers are scheduled onto goroutines.
type Mode string

const (
	// Parallel runs every worker on its own goroutine.
	Parallel Mode = "parallel"
	// Sequential runs a single worker on the calling goroutine.
	Sequential Mode = "sequential"
)

// ParseMode validates a run mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Parallel, Sequential:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown run mode %q", s)
}

// WorkerFunc is the body of one worker. comm identifies the worker and
// connects it to its peers.
type WorkerFunc func(ctx context.Context, comm collective.Comm) error

// Executor runs a WorkerFunc on every worker of a pool and waits for all of
// them.
type Executor interface {
	Execute(ctx context.Context, fn WorkerFunc) error
}
