package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/specialistvlad/gridreshaper/internal/collective"
	"github.com/specialistvlad/gridreshaper/internal/config"
	"github.com/specialistvlad/gridreshaper/internal/ctxlog"
	"github.com/specialistvlad/gridreshaper/internal/executor"
	"github.com/specialistvlad/gridreshaper/internal/localexecutor"
	"github.com/specialistvlad/gridreshaper/internal/reshaper"
)

// Run loads the job file, converts it with the configured worker pool and
// prints the diagnostics report to the app's output.
func (a *App) Run(ctx context.Context) (err error) {
	runID := uuid.NewString()
	ctx = ctxlog.WithLogger(ctx, a.logger.With("run_id", runID))
	a.ctx = ctx
	logger := ctxlog.FromContext(ctx)
	logger.Debug("App.Run method started.")

	defer func() {
		if err != nil {
			a.stage.Store(StageFailed)
		} else {
			a.stage.Store(StageDone)
		}
	}()

	if _, err := a.healthCheckServer(); err != nil {
		return err
	}
	defer a.closeHealthCheckServer()

	a.stage.Store(StageLoading)
	job, err := a.loader.Load(ctx, a.config.JobPath)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	a.applyOverrides(job)

	spec, err := config.NewSpec(job.Spec, a.backend.Stat)
	if err != nil {
		return err
	}
	mode := executor.Parallel
	if job.Run.Serial {
		mode = executor.Sequential
	}
	exec, err := localexecutor.New(job.Run.Workers, mode)
	if err != nil {
		return &config.ConfigurationError{Field: "run.workers", Reason: "invalid worker count", Err: err}
	}

	a.stage.Store(StageConverting)
	logger.Info("🚀 Starting conversion...",
		"job", job.Name, "inputs", len(spec.InputFiles), "workers", exec.Workers(), "mode", mode, "write_mode", spec.WriteMode)

	err = exec.Execute(ctx, func(ctx context.Context, comm collective.Comm) error {
		engine, err := reshaper.New(spec, comm, reshaper.Options{
			Backend:   a.backend,
			RunMode:   mode,
			Verbosity: job.Run.Verbosity,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		convErr := engine.Convert(ctx)
		if comm.Rank() == 0 {
			a.report = engine.Report()
			if err := engine.PrintDiagnostics(a.outW); err != nil {
				logger.Warn("Failed to print diagnostics.", "error", err)
			}
		}
		return convErr
	})
	if err != nil {
		logger.Error("Conversion failed.", "error", err)
		return fmt.Errorf("conversion failed: %w", err)
	}

	logger.Info("🏁 Conversion finished.", "outputs", len(a.report.Files))
	return nil
}

// applyOverrides lets command-line settings take precedence over the job
// file's run block.
func (a *App) applyOverrides(job *config.Job) {
	if a.config.Workers > 0 {
		job.Run.Workers = a.config.Workers
	}
	if a.config.Serial {
		job.Run.Serial = true
	}
	if a.config.Verbosity >= 0 {
		job.Run.Verbosity = a.config.Verbosity
	}
	if a.config.WriteMode != "" {
		job.Spec.WriteMode = a.config.WriteMode
	}
}
