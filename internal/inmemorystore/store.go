package inmemorystore

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/specialistvlad/gridreshaper/internal/grid"
)

// file is one stored dataset. A nil schema means the file was created but
// never defined.
type file struct {
	mu     sync.Mutex
	schema *grid.Schema
	data   map[string]grid.Array
	counts map[string]int // records appended per record variable
	opts   grid.CreateOptions
}

// Store is an in-memory grid.Backend.
type Store struct {
	files  sync.Map // Key: path, Value: *file
	faults sync.Map // Key: faultKey, Value: error
}

type faultKind int

const (
	faultOpen faultKind = iota
	faultCreate
	faultAppend
	faultRead
)

type faultKey struct {
	kind faultKind
	path string
}

// New creates a new, empty store.
func New() *Store {
	return &Store{}
}

// FailOpen makes every later Open of path return err.
func (s *Store) FailOpen(path string, err error) {
	s.faults.Store(faultKey{faultOpen, path}, err)
}

// FailCreate makes every later Create of path return err.
func (s *Store) FailCreate(path string, err error) {
	s.faults.Store(faultKey{faultCreate, path}, err)
}

// FailAppend makes Append on path fail with err once the file holds at
// least one record, leaving it partially written.
func (s *Store) FailAppend(path string, err error) {
	s.faults.Store(faultKey{faultAppend, path}, err)
}

// FailRead makes every later Read from path return err. Opening still
// succeeds.
func (s *Store) FailRead(path string, err error) {
	s.faults.Store(faultKey{faultRead, path}, err)
}

func (s *Store) fault(kind faultKind, path string) error {
	if v, ok := s.faults.Load(faultKey{kind, path}); ok {
		return v.(error)
	}
	return nil
}

// Put stores a complete file. Record variables in data must hold exactly
// schema.NumRecs records.
func (s *Store) Put(path string, schema *grid.Schema, data map[string]grid.Array) error {
	if err := schema.Validate(); err != nil {
		return fmt.Errorf("invalid schema for %s: %w", path, err)
	}
	f := &file{schema: schema.Clone(), data: make(map[string]grid.Array), counts: make(map[string]int)}
	for _, v := range schema.Vars {
		a, ok := data[v.Name]
		if !ok {
			return fmt.Errorf("%s: no data for variable %q", path, v.Name)
		}
		shape, err := schema.Shape(v)
		if err != nil {
			return err
		}
		if !reflect.DeepEqual(normShape(shape), normShape(a.Shape)) || a.Type != v.Type {
			return fmt.Errorf("%s: variable %q is %s%v, schema wants %s%v", path, v.Name, a.Type, a.Shape, v.Type, shape)
		}
		f.data[v.Name] = copyArray(a)
		if schema.IsRecordVar(v) {
			f.counts[v.Name] = schema.NumRecs
		}
	}
	s.files.Store(path, f)
	return nil
}

// Paths lists every stored path in sorted order.
func (s *Store) Paths() []string {
	var out []string
	s.files.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	sort.Strings(out)
	return out
}

// Remove deletes a stored file.
func (s *Store) Remove(path string) {
	s.files.Delete(path)
}

// Options returns the create options an output was last created with.
func (s *Store) Options(path string) (grid.CreateOptions, bool) {
	v, ok := s.files.Load(path)
	if !ok {
		return grid.CreateOptions{}, false
	}
	f := v.(*file)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts, true
}

// Stat implements grid.Backend.
func (s *Store) Stat(path string) error {
	if _, ok := s.files.Load(path); !ok {
		return fmt.Errorf("%s: %w", path, grid.ErrNotExist)
	}
	return nil
}

// Open implements grid.Backend.
func (s *Store) Open(path string) (grid.Reader, error) {
	if err := s.fault(faultOpen, path); err != nil {
		return nil, err
	}
	v, ok := s.files.Load(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, grid.ErrNotExist)
	}
	f := v.(*file)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.schema == nil {
		return nil, fmt.Errorf("%s: file has no header", path)
	}
	schema := f.schema.Clone()
	schema.SetRecords(schema.NumRecs)
	return &reader{store: s, path: path, f: f, schema: schema}, nil
}

// Create implements grid.Backend.
func (s *Store) Create(path string, opts grid.CreateOptions) (grid.Writer, error) {
	if err := s.fault(faultCreate, path); err != nil {
		return nil, err
	}
	if opts.Mode == grid.ModeAppend {
		if v, ok := s.files.Load(path); ok {
			f := v.(*file)
			f.mu.Lock()
			defined := f.schema != nil
			f.mu.Unlock()
			if defined {
				return &writer{store: s, path: path, f: f}, nil
			}
		}
	}
	f := &file{data: make(map[string]grid.Array), counts: make(map[string]int), opts: opts}
	s.files.Store(path, f)
	return &writer{store: s, path: path, f: f}, nil
}

type reader struct {
	store  *Store
	path   string
	f      *file
	schema *grid.Schema
	closed bool
}

func (r *reader) Path() string         { return r.path }
func (r *reader) Schema() *grid.Schema { return r.schema }

func (r *reader) Read(name string) (grid.Array, error) {
	if r.closed {
		return grid.Array{}, fmt.Errorf("%s: read after close", r.path)
	}
	if err := r.store.fault(faultRead, r.path); err != nil {
		return grid.Array{}, err
	}
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	v, ok := r.f.schema.Var(name)
	if !ok {
		return grid.Array{}, fmt.Errorf("%s: variable %q not found", r.path, name)
	}
	a, ok := r.f.data[name]
	if !ok {
		shape, err := r.f.schema.Shape(v)
		if err != nil {
			return grid.Array{}, err
		}
		return zeroArray(v.Type, shape), nil
	}
	if r.f.schema.IsRecordVar(v) && a.Records() < r.f.schema.NumRecs {
		shape := append([]int{r.f.schema.NumRecs - a.Records()}, a.Shape[1:]...)
		return grid.Concat(copyArray(a), zeroArray(v.Type, shape))
	}
	return copyArray(a), nil
}

func (r *reader) Close() error {
	r.closed = true
	return nil
}

type writer struct {
	store  *Store
	path   string
	f      *file
	closed bool
}

func (w *writer) Path() string { return w.path }

func (w *writer) Schema() *grid.Schema {
	w.f.mu.Lock()
	defer w.f.mu.Unlock()
	if w.f.schema == nil {
		return nil
	}
	schema := w.f.schema.Clone()
	schema.SetRecords(schema.NumRecs)
	return schema
}

func (w *writer) Records() int {
	w.f.mu.Lock()
	defer w.f.mu.Unlock()
	if w.f.schema == nil {
		return 0
	}
	return w.f.schema.NumRecs
}

func (w *writer) Define(s *grid.Schema) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%s: %w", w.path, err)
	}
	w.f.mu.Lock()
	defer w.f.mu.Unlock()
	if w.f.schema != nil {
		return fmt.Errorf("%s: header already defined", w.path)
	}
	w.f.schema = s.Clone()
	w.f.schema.NumRecs = 0
	return nil
}

func (w *writer) Write(name string, a grid.Array) error {
	w.f.mu.Lock()
	defer w.f.mu.Unlock()
	v, err := w.lookup(name, a)
	if err != nil {
		return err
	}
	if w.f.schema.IsRecordVar(v) {
		return fmt.Errorf("%s: %q is a record variable, use Append", w.path, name)
	}
	shape, err := w.f.schema.Shape(v)
	if err != nil {
		return err
	}
	if a.Len() != product(shape) {
		return fmt.Errorf("%s: %q wants %d values, got %d", w.path, name, product(shape), a.Len())
	}
	w.f.data[name] = copyArray(a)
	return nil
}

func (w *writer) Append(name string, start int, a grid.Array) error {
	w.f.mu.Lock()
	defer w.f.mu.Unlock()
	v, err := w.lookup(name, a)
	if err != nil {
		return err
	}
	if !w.f.schema.IsRecordVar(v) {
		return fmt.Errorf("%s: %q is not a record variable", w.path, name)
	}
	if ferr := w.store.fault(faultAppend, w.path); ferr != nil && w.f.schema.NumRecs > 0 {
		return ferr
	}
	have := w.f.counts[name]
	if start != have {
		return fmt.Errorf("%s: %q append at record %d, variable holds %d", w.path, name, start, have)
	}
	shape, err := w.f.schema.Shape(v)
	if err != nil {
		return err
	}
	per := product(shape[1:])
	if len(a.Shape) == 0 || a.Len() != a.Shape[0]*per {
		return fmt.Errorf("%s: %q record size mismatch", w.path, name)
	}
	grown := copyArray(a)
	grown.Shape = append([]int{a.Shape[0]}, shape[1:]...)
	if cur, ok := w.f.data[name]; ok {
		if grown, err = grid.Concat(cur, grown); err != nil {
			return err
		}
	}
	w.f.data[name] = grown
	w.f.counts[name] = start + a.Shape[0]
	if w.f.counts[name] > w.f.schema.NumRecs {
		w.f.schema.NumRecs = w.f.counts[name]
	}
	return nil
}

func (w *writer) lookup(name string, a grid.Array) (grid.Var, error) {
	if w.closed {
		return grid.Var{}, fmt.Errorf("%s: write after close", w.path)
	}
	if w.f.schema == nil {
		return grid.Var{}, fmt.Errorf("%s: header not defined", w.path)
	}
	v, ok := w.f.schema.Var(name)
	if !ok {
		return grid.Var{}, fmt.Errorf("%s: variable %q not defined", w.path, name)
	}
	if v.Type != a.Type {
		return grid.Var{}, fmt.Errorf("%s: %q is %s, got %s data", w.path, name, v.Type, a.Type)
	}
	return v, nil
}

func (w *writer) Close() error {
	w.closed = true
	return nil
}

func copyArray(a grid.Array) grid.Array {
	out := grid.Array{Type: a.Type, Shape: append([]int(nil), a.Shape...)}
	if a.Data != nil {
		rv := reflect.ValueOf(a.Data)
		cp := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(cp, rv)
		out.Data = cp.Interface()
	}
	return out
}

func zeroArray(t grid.Type, shape []int) grid.Array {
	return grid.Array{Type: t, Shape: append([]int(nil), shape...), Data: grid.NewData(t, product(shape))}
}

func normShape(s []int) []int {
	if len(s) == 0 {
		return nil
	}
	return s
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
