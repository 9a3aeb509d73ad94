package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/gridreshaper/internal/grid"
	"github.com/specialistvlad/gridreshaper/internal/reshaper"
)

// Config holds all the necessary configuration for an App instance to run.
// Zero values of the run overrides keep what the job file says.
type Config struct {
	JobPath string // hcl job file

	Workers   int            // 0 keeps the job's worker count
	Serial    bool           // forces a single sequential worker
	Verbosity int            // -1 keeps the job's verbosity
	WriteMode grid.WriteMode // empty keeps the job's write mode

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.JobPath == "" {
		return nil, errors.New("JobPath is a required configuration field and cannot be empty")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.Verbosity < -1 || cfg.Verbosity > reshaper.MaxVerbosity {
		return nil, fmt.Errorf("verbosity must be between 0 and %d, got %d", reshaper.MaxVerbosity, cfg.Verbosity)
	}
	if cfg.WriteMode != "" {
		mode, err := grid.ParseWriteMode(string(cfg.WriteMode))
		if err != nil {
			return nil, err
		}
		cfg.WriteMode = mode
	}
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "" && cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("log format must be text or json, got %q", cfg.LogFormat)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("healthcheck port %d is out of range", cfg.HealthcheckPort)
	}
	return &cfg, nil
}
