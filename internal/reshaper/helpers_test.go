package reshaper

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gridreshaper/internal/collective"
	"github.com/specialistvlad/gridreshaper/internal/config"
	"github.com/specialistvlad/gridreshaper/internal/ctxlog"
	"github.com/specialistvlad/gridreshaper/internal/executor"
	"github.com/specialistvlad/gridreshaper/internal/grid"
	"github.com/specialistvlad/gridreshaper/internal/inmemorystore"
	"github.com/specialistvlad/gridreshaper/internal/localexecutor"
	"github.com/specialistvlad/gridreshaper/internal/testutil"
)

// jobResult is the outcome of one pool run.
type jobResult struct {
	engines []*Reshaper
	errs    []error
	err     error
}

// seedStore writes the slice set into a fresh in-memory store.
func seedStore(t *testing.T, set testutil.SliceSet) *inmemorystore.Store {
	t.Helper()
	store := inmemorystore.New()
	require.NoError(t, set.Write(store))
	return store
}

// newSpec validates a spec whose inputs live in b.
func newSpec(t *testing.T, b grid.Backend, s config.Spec) *config.Spec {
	t.Helper()
	spec, err := config.NewSpec(s, b.Stat)
	require.NoError(t, err)
	return spec
}

// scenarioSpec is the job of the default slice set: metadata names the
// time-variant and time-invariant metadata variables.
func scenarioSpec(t *testing.T, b grid.Backend, set testutil.SliceSet, prefix string) *config.Spec {
	t.Helper()
	return newSpec(t, b, config.Spec{
		InputFiles: set.Paths(),
		Prefix:     prefix,
		Suffix:     ".nc",
		Metadata:   append(append([]string{}, set.TVMVars...), set.TimVars...),
	})
}

// runPool runs Convert on every worker of a pool and keeps each worker's
// own result.
func runPool(t *testing.T, spec *config.Spec, b grid.Backend, workers int, opts Options) jobResult {
	t.Helper()

	mode := executor.Parallel
	if workers == 1 {
		mode = executor.Sequential
	}
	ex, err := localexecutor.New(workers, mode)
	require.NoError(t, err)

	opts.Backend = b
	opts.RunMode = mode
	if opts.Logger == nil {
		opts.Logger = ctxlog.Discard()
	}

	res := jobResult{engines: make([]*Reshaper, workers), errs: make([]error, workers)}
	var mu sync.Mutex
	ctx := ctxlog.WithLogger(context.Background(), ctxlog.Discard())
	res.err = ex.Execute(ctx, func(ctx context.Context, comm collective.Comm) error {
		engine, err := New(spec, comm, opts)
		if err != nil {
			return err
		}
		err = engine.Convert(ctx)
		mu.Lock()
		res.engines[comm.Rank()] = engine
		res.errs[comm.Rank()] = err
		mu.Unlock()
		return err
	})
	return res
}
