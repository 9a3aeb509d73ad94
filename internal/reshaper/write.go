package reshaper

import (
	"fmt"
	"slices"
	"time"

	"github.com/specialistvlad/gridreshaper/internal/classify"
	"github.com/specialistvlad/gridreshaper/internal/diagnostics"
	"github.com/specialistvlad/gridreshaper/internal/grid"
)

// seriesWrite tracks one output while it is written.
type seriesWrite struct {
	name    string
	path    string
	w       grid.Writer
	bytes   int64
	records int
}

// writeSeries produces the output of one payload variable and records its
// outcome. Only an *InputIOError returned from here is job-wide.
func (r *Reshaper) writeSeries(name string, inputs []grid.Reader, table *classify.Table, col *diagnostics.Collector) error {
	path := r.spec.OutputPath(name)
	logger := r.logger.With("variable", name, "path", path)
	logger.Debug("Writing series file.")

	begin := time.Now()
	sw := &seriesWrite{name: name, path: path}
	err := r.fill(sw, inputs, table, col)

	stat := diagnostics.FileStat{
		Variable: name,
		Path:     path,
		Status:   diagnostics.StatusComplete,
		Elapsed:  time.Since(begin),
		Bytes:    sw.bytes,
		Records:  sw.records,
	}
	if err != nil {
		stat.Status = diagnostics.StatusFailed
		stat.Err = err
		logger.Error("Series file failed.", "error", err)
	} else {
		logger.Info("Series file written.", "records", sw.records, "bytes", sw.bytes, "elapsed", stat.Elapsed)
	}
	col.Record(stat)
	return err
}

func (r *Reshaper) fill(sw *seriesWrite, inputs []grid.Reader, table *classify.Table, col *diagnostics.Collector) (err error) {
	expected := outputSchema(table, sw.name)
	opts := r.spec.CreateOptions()
	opts.Mode = r.writeMode

	w, err := r.backend.Create(sw.path, opts)
	if err != nil {
		return &OutputIOError{Path: sw.path, Variable: sw.name, Op: "create", Err: err}
	}
	sw.w = w
	defer func() {
		cerr := w.Close()
		if err == nil && cerr != nil {
			err = &PartialWriteError{Path: sw.path, Variable: sw.name, Records: sw.records, Err: cerr}
		}
	}()

	vars := append(table.Shared(), sw.name)
	if existing := w.Schema(); existing != nil {
		if err := sameLayout(existing, expected); err != nil {
			return &OutputIOError{Path: sw.path, Variable: sw.name, Op: "append", Err: fmt.Errorf("%w: %v", ErrSchemaConflict, err)}
		}
	} else {
		if err := w.Define(expected); err != nil {
			return &OutputIOError{Path: sw.path, Variable: sw.name, Op: "define", Err: err}
		}
		if err := r.writeStatic(sw, inputs[0], table, vars, col); err != nil {
			return err
		}
	}

	return r.appendRecords(sw, inputs, table, vars, col)
}

// writeStatic copies every non-record variable from the first input.
func (r *Reshaper) writeStatic(sw *seriesWrite, first grid.Reader, table *classify.Table, vars []string, col *diagnostics.Collector) error {
	defer col.Start(diagnostics.PhaseWriteMetadata)()

	for _, name := range vars {
		if table.IsRecord(name) {
			continue
		}
		a, err := first.Read(name)
		if err != nil {
			return &InputIOError{Path: first.Path(), Variable: name, Err: err}
		}
		if err := sw.w.Write(name, a); err != nil {
			return &PartialWriteError{Path: sw.path, Variable: sw.name, Records: sw.records, Err: fmt.Errorf("writing %q: %w", name, err)}
		}
		sw.bytes += a.Bytes()
	}
	return nil
}

// appendRecords appends the records of every record variable, one input at
// a time in input order, starting after the records already in the output.
func (r *Reshaper) appendRecords(sw *seriesWrite, inputs []grid.Reader, table *classify.Table, vars []string, col *diagnostics.Collector) error {
	defer col.Start(diagnostics.PhaseWriteSeries)()

	var records []string
	for _, name := range vars {
		if table.IsRecord(name) {
			records = append(records, name)
		}
	}
	if len(records) == 0 {
		return nil
	}

	offset := sw.w.Records()
	for _, in := range inputs {
		extent := in.Schema().NumRecs
		for _, name := range records {
			a, err := in.Read(name)
			if err != nil {
				return &InputIOError{Path: in.Path(), Variable: name, Err: err}
			}
			if a.Records() != extent {
				return &InputIOError{Path: in.Path(), Variable: name, Err: fmt.Errorf("holds %d records, file has %d", a.Records(), extent)}
			}
			if err := sw.w.Append(name, offset, a); err != nil {
				return &PartialWriteError{Path: sw.path, Variable: sw.name, Records: sw.records, Err: fmt.Errorf("appending %q: %w", name, err)}
			}
			sw.bytes += a.Bytes()
		}
		offset += extent
		sw.records += extent
	}
	return nil
}

// outputSchema is the header of the series file of payload: the first
// input's dimensions and global attributes and every shared variable plus
// payload, in first-input order, with no records yet.
func outputSchema(table *classify.Table, payload string) *grid.Schema {
	ref := table.Reference()
	out := &grid.Schema{
		Dims:  slices.Clone(ref.Dims),
		Attrs: ref.Attrs.Clone(),
	}
	for i := range out.Dims {
		if out.Dims[i].Unlimited {
			out.Dims[i].Len = 0
		}
	}
	for _, v := range ref.Vars {
		if v.Name == payload || table.Role(v.Name) != classify.RoleTimeSeries {
			out.Vars = append(out.Vars, v.Clone())
		}
	}
	return out
}

// sameLayout compares an existing output with the header this job would
// write, ignoring record counts.
func sameLayout(existing, expected *grid.Schema) error {
	if len(existing.Dims) != len(expected.Dims) {
		return fmt.Errorf("has %d dimensions, want %d", len(existing.Dims), len(expected.Dims))
	}
	for _, want := range expected.Dims {
		got, ok := existing.Dim(want.Name)
		if !ok {
			return fmt.Errorf("dimension %q is missing", want.Name)
		}
		if got.Unlimited != want.Unlimited || (!want.Unlimited && got.Len != want.Len) {
			return fmt.Errorf("dimension %q differs", want.Name)
		}
	}
	if !existing.Attrs.Equal(expected.Attrs) {
		return fmt.Errorf("global attributes differ")
	}
	if len(existing.Vars) != len(expected.Vars) {
		return fmt.Errorf("has %d variables, want %d", len(existing.Vars), len(expected.Vars))
	}
	for _, want := range expected.Vars {
		got, ok := existing.Var(want.Name)
		if !ok {
			return fmt.Errorf("variable %q is missing", want.Name)
		}
		if got.Type != want.Type || !slices.Equal(got.Dims, want.Dims) || !got.Attrs.Equal(want.Attrs) {
			return fmt.Errorf("variable %q differs", want.Name)
		}
	}
	return nil
}
