package netcdf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"

	nc "github.com/batchatco/go-native-netcdf/netcdf"
	ncapi "github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/specialistvlad/gridreshaper/internal/grid"
)

// ErrNoDimensions is returned for inputs whose decoder does not expose the
// dimension table (NetCDF-4/HDF5 groups).
var ErrNoDimensions = errors.New("input format does not expose dimensions")

// dimensioner is implemented by the classic-format groups of go-native-netcdf.
type dimensioner interface {
	ListDimensions() []string
	GetDimension(name string) (uint64, bool)
}

// Reader reads one NetCDF file.
type Reader struct {
	path    string
	group   ncapi.Group
	schema  *grid.Schema
	version byte
}

// Open decodes the header of path.
func Open(path string) (*Reader, error) {
	version, err := readVersion(path)
	if err != nil {
		return nil, err
	}
	g, err := nc.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	schema, err := readSchema(g)
	if err != nil {
		g.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Reader{path: path, group: g, schema: schema, version: version}, nil
}

func readVersion(path string) (byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return 0, fmt.Errorf("%s: reading magic: %w", path, err)
	}
	return magic[3], nil
}

func readSchema(g ncapi.Group) (*grid.Schema, error) {
	dg, ok := g.(dimensioner)
	if !ok {
		return nil, ErrNoDimensions
	}
	s := &grid.Schema{Attrs: toAttrMap(g.Attributes())}
	unlimited := ""
	for _, name := range dg.ListDimensions() {
		n, _ := dg.GetDimension(name)
		d := grid.Dim{Name: name, Len: int(n)}
		if n == 0 {
			d.Unlimited = true
			unlimited = name
		}
		s.Dims = append(s.Dims, d)
	}
	for _, name := range g.ListVariables() {
		vg, err := g.GetVarGetter(name)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		t, err := parseType(vg.Type())
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		v := grid.Var{
			Name:  name,
			Dims:  append([]string(nil), vg.Dimensions()...),
			Type:  t,
			Attrs: toAttrMap(vg.Attributes()),
		}
		if unlimited != "" && len(v.Dims) > 0 && v.Dims[0] == unlimited {
			s.NumRecs = int(vg.Len())
		}
		s.Vars = append(s.Vars, v)
	}
	s.SetRecords(s.NumRecs)
	return s, nil
}

func parseType(cdl string) (grid.Type, error) {
	switch cdl {
	case "byte":
		return grid.Byte, nil
	case "char":
		return grid.Char, nil
	case "short":
		return grid.Short, nil
	case "int":
		return grid.Int, nil
	case "float":
		return grid.Float, nil
	case "double":
		return grid.Double, nil
	}
	return grid.Invalid, fmt.Errorf("unsupported element type %q", cdl)
}

func toAttrMap(am ncapi.AttributeMap) grid.AttrMap {
	var out grid.AttrMap
	if am == nil {
		return out
	}
	for _, k := range am.Keys() {
		if v, ok := am.Get(k); ok {
			out.Set(k, v)
		}
	}
	return out
}

// Path implements grid.Reader.
func (r *Reader) Path() string { return r.path }

// Schema implements grid.Reader.
func (r *Reader) Schema() *grid.Schema { return r.schema }

// Read implements grid.Reader.
func (r *Reader) Read(name string) (grid.Array, error) {
	v, ok := r.schema.Var(name)
	if !ok {
		return grid.Array{}, fmt.Errorf("%s: variable %q not found", r.path, name)
	}
	shape, err := r.schema.Shape(v)
	if err != nil {
		return grid.Array{}, err
	}
	vg, err := r.group.GetVarGetter(name)
	if err != nil {
		return grid.Array{}, fmt.Errorf("%s: %q: %w", r.path, name, err)
	}
	raw, err := vg.Values()
	if err != nil {
		return grid.Array{}, fmt.Errorf("%s: reading %q: %w", r.path, name, err)
	}
	last := 1
	if len(shape) > 0 {
		last = shape[len(shape)-1]
	}
	data, err := flatten(raw, v.Type, last)
	if err != nil {
		return grid.Array{}, fmt.Errorf("%s: %q: %w", r.path, name, err)
	}
	return grid.NewArray(v.Type, shape, data)
}

// Close implements grid.Reader.
func (r *Reader) Close() error {
	if r.group != nil {
		r.group.Close()
		r.group = nil
	}
	return nil
}

// flatten walks the nested slices produced by the decoder into one flat
// slice of t's Go type. Character data arrives as strings spanning the last
// dimension; those are padded back out to width bytes.
func flatten(raw any, t grid.Type, width int) (any, error) {
	out := reflect.ValueOf(grid.NewData(t, 0))
	if raw == nil {
		return out.Interface(), nil
	}
	elem := out.Type().Elem()
	var walk func(rv reflect.Value) error
	walk = func(rv reflect.Value) error {
		switch {
		case rv.Kind() == reflect.Interface:
			return walk(rv.Elem())
		case rv.Kind() == reflect.String:
			if t != grid.Char {
				return fmt.Errorf("unexpected text in %s data", t)
			}
			b := make([]byte, width)
			copy(b, rv.String())
			out = reflect.AppendSlice(out, reflect.ValueOf(b))
		case rv.Kind() == reflect.Slice && rv.Type().Elem() == elem:
			out = reflect.AppendSlice(out, rv)
		case rv.Kind() == reflect.Slice:
			for i := 0; i < rv.Len(); i++ {
				if err := walk(rv.Index(i)); err != nil {
					return err
				}
			}
		case rv.Type().ConvertibleTo(elem):
			out = reflect.Append(out, rv.Convert(elem))
		default:
			return fmt.Errorf("cannot decode %s into %s", rv.Type(), t)
		}
		return nil
	}
	if err := walk(reflect.ValueOf(raw)); err != nil {
		return nil, err
	}
	return out.Interface(), nil
}
