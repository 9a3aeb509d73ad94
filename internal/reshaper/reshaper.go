package reshaper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/specialistvlad/gridreshaper/internal/classify"
	"github.com/specialistvlad/gridreshaper/internal/collective"
	"github.com/specialistvlad/gridreshaper/internal/config"
	"github.com/specialistvlad/gridreshaper/internal/diagnostics"
	"github.com/specialistvlad/gridreshaper/internal/executor"
	"github.com/specialistvlad/gridreshaper/internal/grid"
	"github.com/specialistvlad/gridreshaper/internal/netcdf"
	"github.com/specialistvlad/gridreshaper/internal/scheduler"
)

// MaxVerbosity is the most detailed verbosity level.
const MaxVerbosity = 3

// Options tune one engine instance. The zero value is a parallel run with
// the file-system backend, verbosity 0 and the configured write mode.
type Options struct {
	Backend   grid.Backend
	RunMode   executor.Mode
	Verbosity int
	// WriteMode overrides config.Spec.WriteMode when set.
	WriteMode grid.WriteMode
	// Logger defaults to a stderr text logger whose level follows Verbosity.
	Logger *slog.Logger
}

// Reshaper is the engine of one worker.
type Reshaper struct {
	spec      *config.Spec
	comm      collective.Comm
	backend   grid.Backend
	runMode   executor.Mode
	verbosity int
	writeMode grid.WriteMode
	logger    *slog.Logger
	report    *diagnostics.Report
}

// New builds the engine of the worker identified by comm. A nil comm runs a
// single worker.
func New(spec *config.Spec, comm collective.Comm, opts Options) (*Reshaper, error) {
	if spec == nil {
		return nil, &config.ConfigurationError{Field: "spec", Reason: "is required"}
	}
	if comm == nil {
		comm = collective.Serial()
	}
	if opts.RunMode == "" {
		opts.RunMode = executor.Parallel
	}
	if _, err := executor.ParseMode(string(opts.RunMode)); err != nil {
		return nil, &config.ConfigurationError{Field: "run_mode", Reason: "must be parallel or sequential", Err: err}
	}
	if opts.RunMode == executor.Sequential && comm.Size() != 1 {
		return nil, &config.ConfigurationError{
			Field:  "run_mode",
			Reason: fmt.Sprintf("sequential mode cannot run with %d workers", comm.Size()),
		}
	}
	if opts.Verbosity < 0 || opts.Verbosity > MaxVerbosity {
		return nil, &config.ConfigurationError{
			Field:  "verbosity",
			Reason: fmt.Sprintf("%d is outside 0..%d", opts.Verbosity, MaxVerbosity),
		}
	}
	mode := spec.WriteMode
	if opts.WriteMode != "" {
		parsed, err := grid.ParseWriteMode(string(opts.WriteMode))
		if err != nil {
			return nil, &config.ConfigurationError{Field: "write_mode", Reason: "must be create or append", Err: err}
		}
		mode = parsed
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: LevelFor(opts.Verbosity)}))
	}
	backend := opts.Backend
	if backend == nil {
		backend = netcdf.New(logger)
	}

	return &Reshaper{
		spec:      spec,
		comm:      comm,
		backend:   backend,
		runMode:   opts.RunMode,
		verbosity: opts.Verbosity,
		writeMode: mode,
		logger:    logger.With("worker", comm.Rank()),
	}, nil
}

// LevelFor maps an engine verbosity to the minimum log level.
func LevelFor(verbosity int) slog.Level {
	switch {
	case verbosity <= 0:
		return slog.LevelError
	case verbosity == 1:
		return slog.LevelWarn
	case verbosity == 2:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// outcome is what a worker contributes to the final gather.
type outcome struct {
	Snapshot *diagnostics.Snapshot
	Err      error
}

// Convert runs the whole pipeline for this worker. Every worker of the pool
// must call it. It returns a job-wide error, ErrOutputsFailed joined with
// every failed output's error, or nil.
func (r *Reshaper) Convert(ctx context.Context) error {
	rank := r.comm.Rank()
	col := diagnostics.NewCollector(rank)
	stopTotal := col.Start(diagnostics.PhaseTotal)

	r.logger.Info("Starting conversion.", "inputs", len(r.spec.InputFiles), "workers", r.comm.Size(), "mode", r.runMode, "write_mode", r.writeMode)

	inputs, setupErr := r.openInputs(col)
	defer closeAll(r.logger, inputs)

	var (
		table  *classify.Table
		assign scheduler.Assignment
	)
	if setupErr == nil {
		table, setupErr = r.classify(inputs, col)
	}
	if setupErr == nil {
		assign, setupErr = r.distribute(table, col)
	}

	if err := r.agree(ctx, setupErr); err != nil {
		stopTotal()
		r.report = diagnostics.Merge(col.Snapshot())
		return err
	}

	mine := assign.For(rank)
	r.logger.Info("Writing assigned outputs.", "count", len(mine), "load", assign.Load(rank))
	var jobErr error
	for _, name := range mine {
		if err := ctx.Err(); err != nil {
			jobErr = err
			break
		}
		err := r.writeSeries(name, inputs, table, col)
		var inErr *InputIOError
		if errors.As(err, &inErr) {
			jobErr = err
			break
		}
	}
	stopTotal()

	vals, err := r.comm.Gather(ctx, outcome{Snapshot: col.Snapshot(), Err: jobErr})
	if err != nil {
		r.report = diagnostics.Merge(col.Snapshot())
		if jobErr != nil {
			return jobErr
		}
		return err
	}
	snaps := make([]*diagnostics.Snapshot, len(vals))
	var firstJobErr error
	for i, v := range vals {
		o := v.(outcome)
		snaps[i] = o.Snapshot
		if firstJobErr == nil && o.Err != nil {
			firstJobErr = o.Err
		}
	}
	r.report = diagnostics.Merge(snaps...)

	if firstJobErr != nil {
		r.logger.Error("Conversion aborted.", "error", firstJobErr)
		return firstJobErr
	}
	failed := r.report.Failed()
	if len(failed) == 0 {
		r.logger.Info("Conversion finished.", "outputs", len(r.report.Files))
		return nil
	}
	errs := []error{ErrOutputsFailed}
	for _, f := range failed {
		errs = append(errs, f.Err)
	}
	r.logger.Warn("Conversion finished with failed outputs.", "failed", len(failed), "outputs", len(r.report.Files))
	return errors.Join(errs...)
}

// agree is the first collective point. Every worker learns whether any
// worker failed setup and all return the lowest rank's error.
func (r *Reshaper) agree(ctx context.Context, setupErr error) error {
	vals, err := r.comm.Gather(ctx, setupErr)
	if err != nil {
		if setupErr != nil {
			return setupErr
		}
		return err
	}
	for rank, v := range vals {
		if v == nil {
			continue
		}
		peerErr := v.(error)
		if rank != r.comm.Rank() {
			r.logger.Error("Aborting: another worker failed setup.", "failed_worker", rank, "error", peerErr)
		} else {
			r.logger.Error("Setup failed.", "error", peerErr)
		}
		return peerErr
	}
	return nil
}

func (r *Reshaper) openInputs(col *diagnostics.Collector) ([]grid.Reader, error) {
	defer col.Start(diagnostics.PhaseOpenInputs)()

	inputs := make([]grid.Reader, 0, len(r.spec.InputFiles))
	for _, path := range r.spec.InputFiles {
		in, err := r.backend.Open(path)
		if err != nil {
			return inputs, &InputIOError{Path: path, Err: err}
		}
		inputs = append(inputs, in)
	}
	r.logger.Debug("Opened inputs.", "count", len(inputs))
	return inputs, nil
}

func (r *Reshaper) classify(inputs []grid.Reader, col *diagnostics.Collector) (*classify.Table, error) {
	defer col.Start(diagnostics.PhaseClassify)()

	first := inputs[0]
	table, err := classify.Classify(first.Path(), first.Schema(), r.spec.Metadata, r.spec.AutoMetadata)
	if err != nil {
		return nil, err
	}
	for _, in := range inputs[1:] {
		if err := table.Check(in.Path(), in.Schema()); err != nil {
			return nil, err
		}
	}
	r.logger.Debug("Classified variables.",
		"scalars", table.ByRole(classify.RoleScalar),
		"coordinates", table.ByRole(classify.RoleCoordinate),
		"time_invariant", table.ByRole(classify.RoleTimeInvariant),
		"time_variant", table.ByRole(classify.RoleTimeVariant),
		"series", table.TimeSeries(),
	)
	for _, name := range table.Names() {
		role := table.Role(name)
		if r.spec.IsMetadata(name) && (role == classify.RoleScalar || role == classify.RoleCoordinate) {
			r.logger.Debug("Metadata entry is carried by its own role.", "variable", name, "role", role)
		}
	}
	return table, nil
}

func (r *Reshaper) distribute(table *classify.Table, col *diagnostics.Collector) (scheduler.Assignment, error) {
	defer col.Start(diagnostics.PhaseDistribute)()

	series := table.TimeSeries()
	if len(series) == 0 {
		r.logger.Warn("No time series variables to write.")
	}
	items, err := scheduler.Items(table.Reference(), series)
	if err != nil {
		return scheduler.Assignment{}, err
	}
	assign, err := scheduler.Partition(items, r.comm.Size())
	if err != nil {
		return scheduler.Assignment{}, err
	}
	for _, item := range items {
		owner, _ := assign.Owner(item.Name)
		r.logger.Debug("Series assigned.", "variable", item.Name, "owner", owner, "size", item.Size)
	}
	return assign, nil
}

// Report returns the aggregated diagnostics of the last Convert, or nil.
func (r *Reshaper) Report() *diagnostics.Report {
	return r.report
}

// PrintDiagnostics writes the report at the engine's verbosity. Every
// worker holds the same report, so only rank 0 prints.
func (r *Reshaper) PrintDiagnostics(w io.Writer) error {
	if r.report == nil {
		return ErrNotConverted
	}
	if r.comm.Rank() != 0 {
		return nil
	}
	return r.report.Write(w, r.verbosity)
}

func closeAll(logger *slog.Logger, inputs []grid.Reader) {
	for _, in := range inputs {
		if err := in.Close(); err != nil {
			logger.Warn("Failed to close input.", "path", in.Path(), "error", err)
		}
	}
}
