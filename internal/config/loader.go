package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/gridreshaper/internal/ctxlog"
	"github.com/specialistvlad/gridreshaper/internal/fsutil"
	"github.com/specialistvlad/gridreshaper/internal/grid"
)

// RunOptions are execution settings that do not affect output contents.
type RunOptions struct {
	Workers   int
	Serial    bool
	Verbosity int
}

// Job is a decoded job file. Spec is not yet validated; pass it to NewSpec.
type Job struct {
	Name string
	Path string
	Spec Spec
	Run  RunOptions
}

// Loader reads a job description from a file.
type Loader interface {
	Load(ctx context.Context, path string) (*Job, error)
}

// hclJobFile represents the top-level structure of a job file for decoding.
type hclJobFile struct {
	Jobs []*hclJob `hcl:"job,block"`
}

type hclJob struct {
	Name           string   `hcl:"name,label"`
	InputFiles     []string `hcl:"input_files,optional"`
	InputDir       *string  `hcl:"input_dir,optional"`
	InputExtension *string  `hcl:"input_extension,optional"`
	Prefix         *string  `hcl:"output_prefix,optional"`
	Suffix         *string  `hcl:"output_suffix,optional"`
	Format         string   `hcl:"format,optional"`
	Compression    int      `hcl:"compression,optional"`
	Metadata       []string `hcl:"metadata,optional"`
	WriteMode      string   `hcl:"write_mode,optional"`
	AutoMetadata   bool     `hcl:"auto_metadata,optional"`
	Run            *hclRun  `hcl:"run,block"`
}

type hclRun struct {
	Workers   *int `hcl:"workers,optional"`
	Serial    bool `hcl:"serial,optional"`
	Verbosity *int `hcl:"verbosity,optional"`
}

// HCLLoader decodes HCL job files.
type HCLLoader struct {
	// Environ supplies the `env` variable. Nil uses os.Environ.
	Environ func() []string
}

// NewHCLLoader returns a loader reading the process environment.
func NewHCLLoader() *HCLLoader {
	return &HCLLoader{Environ: os.Environ}
}

// Load implements Loader.
func (l *HCLLoader) Load(ctx context.Context, path string) (*Job, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading job file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, diags)
	}

	var parsed hclJobFile
	diags = gohcl.DecodeBody(file.Body, l.evalContext(), &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode job file %s: %w", path, diags)
	}
	if len(parsed.Jobs) != 1 {
		return nil, fmt.Errorf("job file %s must contain exactly one job block, found %d", path, len(parsed.Jobs))
	}

	job, err := toJob(parsed.Jobs[0])
	if err != nil {
		return nil, err
	}
	job.Path = path
	logger.Debug("Job file decoded.", "job", job.Name, "inputs", len(job.Spec.InputFiles), "workers", job.Run.Workers)
	return job, nil
}

func toJob(h *hclJob) (*Job, error) {
	if h.Prefix == nil {
		return nil, &ConfigurationError{Field: "output_prefix", Reason: "must be defined (an empty string is allowed)"}
	}
	if h.Suffix == nil {
		return nil, &ConfigurationError{Field: "output_suffix", Reason: "must be defined (an empty string is allowed)"}
	}

	inputs := h.InputFiles
	if h.InputDir != nil {
		if len(inputs) > 0 {
			return nil, &ConfigurationError{Field: "input_files", Reason: "set either input_files or input_dir, not both"}
		}
		ext := ".nc"
		if h.InputExtension != nil {
			ext = *h.InputExtension
		}
		found, err := fsutil.FindFilesByExtension(*h.InputDir, ext)
		if err != nil {
			return nil, &ConfigurationError{Field: "input_dir", Reason: "cannot list input files", Err: err}
		}
		inputs = found
	}

	job := &Job{
		Name: h.Name,
		Spec: Spec{
			InputFiles:   inputs,
			Prefix:       *h.Prefix,
			Suffix:       *h.Suffix,
			Format:       grid.Format(strings.ToLower(h.Format)),
			Compression:  h.Compression,
			Metadata:     h.Metadata,
			WriteMode:    grid.WriteMode(strings.ToLower(h.WriteMode)),
			AutoMetadata: h.AutoMetadata,
		},
		Run: RunOptions{Workers: 1, Verbosity: 1},
	}
	if h.Run != nil {
		job.Run.Serial = h.Run.Serial
		if h.Run.Workers != nil {
			job.Run.Workers = *h.Run.Workers
		}
		if h.Run.Verbosity != nil {
			job.Run.Verbosity = *h.Run.Verbosity
		}
	}
	return job, nil
}

// evalContext exposes the `env` map and the helper functions.
func (l *HCLLoader) evalContext() *hcl.EvalContext {
	environ := l.Environ
	if environ == nil {
		environ = os.Environ
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envValue(environ()),
		},
		Functions: functions(),
	}
}
