// Package collective is the execution context handed to every worker: its
// rank, the size of the pool and the two collective operations the workers
// synchronize with.
package collective

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrReentered is returned when a rank joins the same round twice.
var ErrReentered = errors.New("collective: rank already joined this round")

// Comm connects one worker to its peers. Every rank must call the same
// sequence of collective operations; a call blocks until all ranks made it
// or ctx is done.
type Comm interface {
	Rank() int
	Size() int
	// Barrier returns once every rank reached it.
	Barrier(ctx context.Context) error
	// Gather collects one value per rank. Every rank receives the full
	// rank-ordered slice.
	Gather(ctx context.Context, v any) ([]any, error)
}

type serial struct{}

// Serial returns the communicator of a pool with a single worker. Its
// collectives return immediately.
func Serial() Comm { return serial{} }

func (serial) Rank() int { return 0 }
func (serial) Size() int { return 1 }

func (serial) Barrier(ctx context.Context) error { return ctx.Err() }

func (serial) Gather(ctx context.Context, v any) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []any{v}, nil
}

// round is one collective operation in progress.
type round struct {
	vals   []any
	joined []bool
	count  int
	done   chan struct{}
}

func newRound(n int) *round {
	return &round{vals: make([]any, n), joined: make([]bool, n), done: make(chan struct{})}
}

type group struct {
	size int
	mu   sync.Mutex
	cur  *round
}

// NewGroup returns n connected in-process communicators, one per rank.
// A rank that gives up on a cancelled context leaves its round incomplete,
// so the group must not be reused after a cancellation.
func NewGroup(n int) ([]Comm, error) {
	if n < 1 {
		return nil, fmt.Errorf("collective: group size must be positive, got %d", n)
	}
	g := &group{size: n, cur: newRound(n)}
	comms := make([]Comm, n)
	for rank := range comms {
		comms[rank] = &endpoint{g: g, rank: rank}
	}
	return comms, nil
}

type endpoint struct {
	g    *group
	rank int
}

func (e *endpoint) Rank() int { return e.rank }
func (e *endpoint) Size() int { return e.g.size }

func (e *endpoint) Barrier(ctx context.Context) error {
	_, err := e.Gather(ctx, nil)
	return err
}

func (e *endpoint) Gather(ctx context.Context, v any) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.g.mu.Lock()
	r := e.g.cur
	if r.joined[e.rank] {
		e.g.mu.Unlock()
		return nil, ErrReentered
	}
	r.joined[e.rank] = true
	r.vals[e.rank] = v
	r.count++
	if r.count == e.g.size {
		e.g.cur = newRound(e.g.size)
		close(r.done)
	}
	e.g.mu.Unlock()

	// A completed round wins over a cancellation that raced with it.
	select {
	case <-r.done:
		return slices.Clone(r.vals), nil
	default:
	}
	select {
	case <-r.done:
		return slices.Clone(r.vals), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
