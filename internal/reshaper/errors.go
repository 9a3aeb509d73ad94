package reshaper

import (
	"errors"
	"fmt"
)

var (
	// ErrOutputsFailed is joined with the per-output errors when the job
	// finished but at least one output did not complete.
	ErrOutputsFailed = errors.New("one or more outputs failed")
	// ErrSchemaConflict is returned in append mode when an existing output
	// does not have the layout this job would write.
	ErrSchemaConflict = errors.New("existing output has a different schema")
	// ErrNotConverted is returned when diagnostics are requested before
	// Convert ran.
	ErrNotConverted = errors.New("convert has not run")
)

// InputIOError reports an input file that could not be opened or read. It
// aborts the whole job.
type InputIOError struct {
	Path     string
	Variable string
	Err      error
}

func (e *InputIOError) Error() string {
	if e.Variable == "" {
		return fmt.Sprintf("input %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("input %s: reading %q: %v", e.Path, e.Variable, e.Err)
}

func (e *InputIOError) Unwrap() error { return e.Err }

// OutputIOError reports an output file that could not be opened or
// prepared. Nothing was written to it by this job.
type OutputIOError struct {
	Path     string
	Variable string
	Op       string
	Err      error
}

func (e *OutputIOError) Error() string {
	return fmt.Sprintf("output %s (%s): %s: %v", e.Path, e.Variable, e.Op, e.Err)
}

func (e *OutputIOError) Unwrap() error { return e.Err }

// PartialWriteError reports an output that failed after writing started.
// The file is left as is and must be treated as invalid.
type PartialWriteError struct {
	Path     string
	Variable string
	// Records is the number of records known to be written.
	Records int
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("output %s (%s): partially written after %d records: %v", e.Path, e.Variable, e.Records, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }
