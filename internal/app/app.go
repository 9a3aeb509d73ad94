package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/specialistvlad/gridreshaper/internal/config"
	"github.com/specialistvlad/gridreshaper/internal/diagnostics"
	"github.com/specialistvlad/gridreshaper/internal/grid"
	"github.com/specialistvlad/gridreshaper/internal/netcdf"
)

// Stage is the coarse progress of a run, reported by the health endpoint.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageLoading    Stage = "loading"
	StageConverting Stage = "converting"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	loader     config.Loader
	backend    grid.Backend
	httpServer *http.Server
	stage      atomic.Value // Stage
	report     *diagnostics.Report
}

// NewApp is the constructor for the main application. A nil loader reads HCL
// job files and a nil backend uses the NetCDF file backend.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, backend grid.Backend) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	if loader == nil {
		loader = config.NewHCLLoader()
	}
	if backend == nil {
		backend = netcdf.New(logger)
	}
	a := &App{
		ctx:     context.Background(),
		outW:    outW,
		logger:  logger,
		config:  cfg,
		loader:  loader,
		backend: backend,
	}
	a.stage.Store(StageIdle)
	return a
}

// Stage returns the current progress of the app.
func (a *App) Stage() Stage {
	return a.stage.Load().(Stage)
}

// Report returns the diagnostics of the last run, or nil.
func (a *App) Report() *diagnostics.Report {
	return a.report
}
