package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/specialistvlad/gridreshaper/internal/grid"
)

// ConfigurationError reports the first invalid field of a job description.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// StatFunc checks that path names an existing, regular input file.
type StatFunc func(path string) error

// Spec is the validated job description.
type Spec struct {
	// InputFiles is ordered; the order is the time order of the slices.
	InputFiles []string
	Prefix     string
	Suffix     string
	Format     grid.Format
	// Compression is handed to the backend unmodified.
	Compression int
	// Metadata names variables replicated into every output instead of
	// getting their own series file.
	Metadata  []string
	WriteMode grid.WriteMode
	// AutoMetadata treats every non-coordinate variable lacking the unlimited
	// dimension as time-invariant metadata, even when it is not listed in
	// Metadata.
	AutoMetadata bool
}

// NewSpec validates s and returns an independent copy. s itself is never
// modified. A nil stat checks the local file system.
func NewSpec(s Spec, stat StatFunc) (*Spec, error) {
	if stat == nil {
		stat = statFile
	}
	if s.Format == "" {
		s.Format = grid.FormatNetCDF
	}
	if s.WriteMode == "" {
		s.WriteMode = grid.ModeCreate
	}
	if err := s.validate(stat); err != nil {
		return nil, err
	}
	out := s
	out.InputFiles = append([]string(nil), s.InputFiles...)
	out.Metadata = append([]string(nil), s.Metadata...)
	return &out, nil
}

func (s *Spec) validate(stat StatFunc) error {
	if len(s.InputFiles) == 0 {
		return &ConfigurationError{Field: "input_files", Reason: "at least one input file is required"}
	}
	seen := make(map[string]bool, len(s.InputFiles))
	for i, path := range s.InputFiles {
		if path == "" {
			return &ConfigurationError{Field: "input_files", Reason: fmt.Sprintf("entry %d is empty", i)}
		}
		if seen[path] {
			return &ConfigurationError{Field: "input_files", Reason: fmt.Sprintf("%s is listed twice", path)}
		}
		seen[path] = true
		if err := stat(path); err != nil {
			return &ConfigurationError{Field: "input_files", Reason: fmt.Sprintf("%s is not readable", path), Err: err}
		}
	}
	format, err := grid.ParseFormat(string(s.Format))
	if err != nil {
		return &ConfigurationError{Field: "format", Reason: fmt.Sprintf("must be one of %v", grid.Formats), Err: err}
	}
	s.Format = format
	if s.Compression < grid.MinCompression || s.Compression > grid.MaxCompression {
		return &ConfigurationError{
			Field:  "compression",
			Reason: fmt.Sprintf("%d is outside %d..%d", s.Compression, grid.MinCompression, grid.MaxCompression),
		}
	}
	mode, err := grid.ParseWriteMode(string(s.WriteMode))
	if err != nil {
		return &ConfigurationError{Field: "write_mode", Reason: "must be create or append", Err: err}
	}
	s.WriteMode = mode
	names := make(map[string]bool, len(s.Metadata))
	for i, name := range s.Metadata {
		if name == "" {
			return &ConfigurationError{Field: "metadata", Reason: fmt.Sprintf("entry %d is empty", i)}
		}
		if names[name] {
			return &ConfigurationError{Field: "metadata", Reason: fmt.Sprintf("%q is listed twice", name)}
		}
		names[name] = true
	}
	return nil
}

// OutputPath is the series file for a payload variable.
func (s *Spec) OutputPath(variable string) string {
	return s.Prefix + variable + s.Suffix
}

// IsMetadata reports whether name was configured as metadata.
func (s *Spec) IsMetadata(name string) bool {
	for _, m := range s.Metadata {
		if m == name {
			return true
		}
	}
	return false
}

// CreateOptions are the backend options every output is created with.
func (s *Spec) CreateOptions() grid.CreateOptions {
	return grid.CreateOptions{Format: s.Format, Compression: s.Compression, Mode: s.WriteMode}
}

func statFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return errors.New("not a regular file")
	}
	return nil
}
