// Package app wires a conversion run together: it builds the logger, loads
// the job file, applies command-line overrides, starts the worker pool and
// keeps the merged report. It is independent of any specific entrypoint.
package app
