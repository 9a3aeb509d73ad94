package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/gridreshaper/internal/app"
	"github.com/specialistvlad/gridreshaper/internal/grid"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("gridreshaper", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
GridReshaper - converts time-slice NetCDF files into one time-series file per variable.

Usage:
  gridreshaper [options] [JOB_PATH]

Arguments:
  JOB_PATH
    Path to an .hcl job file.

Options:
`)
		flagSet.PrintDefaults()
	}

	jobFlag := flagSet.String("job", "", "Path to the job file.")
	jFlag := flagSet.String("j", "", "Path to the job file (shorthand).")
	workersFlag := flagSet.Int("workers", 0, "Number of parallel workers. 0 keeps the job's setting.")
	serialFlag := flagSet.Bool("serial", false, "Run with a single sequential worker.")
	verbosityFlag := flagSet.Int("verbosity", -1, "Report verbosity from 0 to 3. -1 keeps the job's setting.")
	writeModeFlag := flagSet.String("write-mode", "", "Output write mode: 'create' or 'append'. Empty keeps the job's setting.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	switch {
	case *jobFlag != "":
		path = *jobFlag
	case *jFlag != "":
		path = *jFlag
	case flagSet.NArg() > 0:
		path = flagSet.Arg(0)
	}
	slog.Debug("Job path determined.", "path", path)

	if path == "" {
		slog.Debug("No job path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		JobPath:         path,
		Workers:         *workersFlag,
		Serial:          *serialFlag,
		Verbosity:       *verbosityFlag,
		WriteMode:       grid.WriteMode(*writeModeFlag),
		LogFormat:       *logFormatFlag,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
