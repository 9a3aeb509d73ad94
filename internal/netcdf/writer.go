package netcdf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/specialistvlad/gridreshaper/internal/grid"
)

// ErrForeignLayout is returned when append mode finds a file whose header
// layout differs from what this package would write for the same schema.
var ErrForeignLayout = errors.New("existing file layout cannot be extended in place")

// Writer writes one classic NetCDF file.
type Writer struct {
	path    string
	file    *os.File
	version byte
	schema  *grid.Schema
	layout  *layout
	numRecs int
	counts  map[string]int
	closed  bool
}

func createWriter(path string, version byte) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{path: path, file: f, version: version, counts: make(map[string]int)}, nil
}

// appendWriter reopens an existing file for record appends. The file's
// header must match the layout this package derives from its schema, which
// holds for every file written by Writer.
func appendWriter(path string) (*Writer, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	schema := r.Schema().Clone()
	version := r.version
	r.Close()
	if version != 1 && version != 2 {
		return nil, fmt.Errorf("%s: CDF version %d: %w", path, version, ErrForeignLayout)
	}

	l, err := newLayout(schema, version)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	onDisk := make([]byte, len(l.header))
	if _, err := io.ReadFull(f, onDisk); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: reading header: %w", path, err)
	}
	// Bytes 4..8 hold the record count, which legitimately differs.
	if !bytes.Equal(onDisk[:4], l.header[:4]) || !bytes.Equal(onDisk[8:], l.header[8:]) {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrForeignLayout)
	}
	w := &Writer{
		path:    path,
		file:    f,
		version: version,
		schema:  schema,
		layout:  l,
		numRecs: schema.NumRecs,
		counts:  make(map[string]int),
	}
	for _, v := range schema.Vars {
		if schema.IsRecordVar(v) {
			w.counts[v.Name] = schema.NumRecs
		}
	}
	return w, nil
}

// Path implements grid.Writer.
func (w *Writer) Path() string { return w.path }

// Schema implements grid.Writer.
func (w *Writer) Schema() *grid.Schema {
	if w.schema == nil {
		return nil
	}
	s := w.schema.Clone()
	s.SetRecords(w.numRecs)
	return s
}

// Records implements grid.Writer.
func (w *Writer) Records() int { return w.numRecs }

// Define implements grid.Writer.
func (w *Writer) Define(s *grid.Schema) error {
	if w.schema != nil {
		return fmt.Errorf("%s: header already defined", w.path)
	}
	schema := s.Clone()
	schema.NumRecs = 0
	l, err := newLayout(schema, w.version)
	if err != nil {
		return fmt.Errorf("%s: %w", w.path, err)
	}
	if _, err := w.file.WriteAt(l.header, 0); err != nil {
		return err
	}
	// Reserve the fixed-size section so unwritten variables read back as zeros.
	if err := w.file.Truncate(l.recBegin); err != nil {
		return err
	}
	w.schema, w.layout = schema, l
	return nil
}

// Write implements grid.Writer.
func (w *Writer) Write(name string, a grid.Array) error {
	vl, err := w.lookup(name, a)
	if err != nil {
		return err
	}
	if vl.record {
		return fmt.Errorf("%s: %q is a record variable, use Append", w.path, name)
	}
	if a.Bytes() != vl.slab {
		return fmt.Errorf("%s: %q wants %d bytes, got %d", w.path, name, vl.slab, a.Bytes())
	}
	buf, err := encodeData(a.Data, vl.vsize)
	if err != nil {
		return fmt.Errorf("%s: %q: %w", w.path, name, err)
	}
	_, err = w.file.WriteAt(buf, vl.begin)
	return err
}

// Append implements grid.Writer.
func (w *Writer) Append(name string, start int, a grid.Array) error {
	vl, err := w.lookup(name, a)
	if err != nil {
		return err
	}
	if !vl.record {
		return fmt.Errorf("%s: %q is not a record variable", w.path, name)
	}
	if start < 0 {
		return fmt.Errorf("%s: negative record offset %d", w.path, start)
	}
	n := a.Records()
	if len(a.Shape) == 0 || a.Bytes() != int64(n)*vl.slab {
		return fmt.Errorf("%s: %q record size mismatch: %d bytes for %d records of %d", w.path, name, a.Bytes(), n, vl.slab)
	}
	for r := 0; r < n; r++ {
		rec, err := a.RecordSlice(r, 1)
		if err != nil {
			return err
		}
		size := vl.slab
		if w.layout.recSize >= vl.vsize {
			size = vl.vsize
		}
		buf, err := encodeData(rec.Data, size)
		if err != nil {
			return fmt.Errorf("%s: %q: %w", w.path, name, err)
		}
		offset := vl.begin + int64(start+r)*w.layout.recSize
		if _, err := w.file.WriteAt(buf, offset); err != nil {
			return err
		}
	}
	if end := start + n; end > w.counts[name] {
		w.counts[name] = end
	}
	if w.counts[name] > w.numRecs {
		w.numRecs = w.counts[name]
		return w.writeNumRecs()
	}
	return nil
}

// Close writes the final record count and closes the file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var err error
	if w.schema != nil {
		err = w.writeNumRecs()
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func (w *Writer) writeNumRecs() error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(w.numRecs))
	_, err := w.file.WriteAt(b[:], 4)
	return err
}

func (w *Writer) lookup(name string, a grid.Array) (*varLayout, error) {
	if w.closed {
		return nil, fmt.Errorf("%s: write after close", w.path)
	}
	if w.layout == nil {
		return nil, fmt.Errorf("%s: header not defined", w.path)
	}
	vl, ok := w.layout.vars[name]
	if !ok {
		return nil, fmt.Errorf("%s: variable %q not defined", w.path, name)
	}
	if vl.v.Type != a.Type {
		return nil, fmt.Errorf("%s: %q is %s, got %s data", w.path, name, vl.v.Type, a.Type)
	}
	return vl, nil
}

// encodeData renders flat data big-endian and zero-pads it to size bytes.
func encodeData(data any, size int64) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(size))
	if err := binary.Write(&buf, binary.BigEndian, data); err != nil {
		return nil, err
	}
	for int64(buf.Len()) < size {
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}
