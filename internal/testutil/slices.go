package testutil

import (
	"fmt"
	"path/filepath"

	"github.com/specialistvlad/gridreshaper/internal/grid"
)

// SliceSet describes a synthetic collection of slice files on a lat/lon grid
// with an unlimited time dimension.
type SliceSet struct {
	Dir     string
	NLat    int
	NLon    int
	NTime   int
	Slices  []string
	Scalars []string
	TimVars []string
	TVMVars []string
	TSVars  []string
	Attrs   grid.AttrMap
}

func names(format string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf(format, i)
	}
	return out
}

// DefaultSliceSet is 5 slices of 10 steps on a 19x36 grid with 2 scalars,
// 2 time-invariant and 2 time-variant metadata variables, 4 series
// variables and 2 global attributes.
func DefaultSliceSet(dir string) SliceSet {
	return SliceSet{
		Dir:     dir,
		NLat:    19,
		NLon:    36,
		NTime:   10,
		Slices:  names("input%d.nc", 5),
		Scalars: names("scalar%d", 2),
		TimVars: names("tim%d", 2),
		TVMVars: names("tvm%d", 2),
		TSVars:  names("tsvar%d", 4),
		Attrs:   grid.NewAttrMap("attr1", "attribute one", "attr2", "attribute two"),
	}
}

// Paths are the slice file paths in time order.
func (s SliceSet) Paths() []string {
	out := make([]string, len(s.Slices))
	for i, name := range s.Slices {
		out[i] = filepath.Join(s.Dir, name)
	}
	return out
}

// Records is the total number of time steps across all slices.
func (s SliceSet) Records() int {
	return s.NTime * len(s.Slices)
}

// Coordinates lists the coordinate variables.
func (s SliceSet) Coordinates() []string {
	return []string{"lat", "lon", "time"}
}

// Schema is the header shared by every slice.
func (s SliceSet) Schema() *grid.Schema {
	v := func(name string, t grid.Type, longName, units string, dims ...string) grid.Var {
		return grid.Var{Name: name, Dims: dims, Type: t, Attrs: grid.NewAttrMap("long_name", longName, "units", units)}
	}
	schema := &grid.Schema{
		Dims: []grid.Dim{
			{Name: "lat", Len: s.NLat},
			{Name: "lon", Len: s.NLon},
			{Name: "time", Len: s.NTime, Unlimited: true},
		},
		Attrs:   s.Attrs.Clone(),
		NumRecs: s.NTime,
	}
	schema.Vars = append(schema.Vars,
		v("lat", grid.Float, "latitude", "degrees north", "lat"),
		v("lon", grid.Float, "longitude", "degrees east", "lon"),
		v("time", grid.Float, "time", "days from 01-01-0001", "time"),
	)
	for n, name := range s.Scalars {
		schema.Vars = append(schema.Vars, v(name, grid.Double, fmt.Sprintf("scalar%d", n), "["+name+"]"))
	}
	for n, name := range s.TimVars {
		schema.Vars = append(schema.Vars, v(name, grid.Double, fmt.Sprintf("time-invariant metadata %d", n), "["+name+"]", "lat", "lon"))
	}
	for n, name := range s.TVMVars {
		schema.Vars = append(schema.Vars, v(name, grid.Double, fmt.Sprintf("time-variant metadata %d", n), "["+name+"]", "time", "lat", "lon"))
	}
	for n, name := range s.TSVars {
		schema.Vars = append(schema.Vars, v(name, grid.Double, fmt.Sprintf("time-series variable %d", n), "["+name+"]", "time", "lat", "lon"))
	}
	return schema
}

// Values returns the contents of a variable in slice i. Record values
// depend on the global time step so that ordering mistakes are visible.
func (s SliceSet) Values(i int, name string) (grid.Array, error) {
	cells := s.NLat * s.NLon
	grid3 := []int{s.NTime, s.NLat, s.NLon}
	switch {
	case name == "lat":
		return grid.NewArray(grid.Float, []int{s.NLat}, linspace(-90, 90, s.NLat, true))
	case name == "lon":
		return grid.NewArray(grid.Float, []int{s.NLon}, linspace(-180, 180, s.NLon, false))
	case name == "time":
		data := make([]float32, s.NTime)
		for r := range data {
			data[r] = float32(i*s.NTime + r)
		}
		return grid.NewArray(grid.Float, []int{s.NTime}, data)
	}
	if n := indexOf(s.Scalars, name); n >= 0 {
		return grid.NewArray(grid.Double, nil, []float64{float64(n * 10)})
	}
	if n := indexOf(s.TimVars, name); n >= 0 {
		data := make([]float64, cells)
		for c := range data {
			data[c] = float64(n + 1)
		}
		return grid.NewArray(grid.Double, []int{s.NLat, s.NLon}, data)
	}
	if n := indexOf(s.TVMVars, name); n >= 0 {
		data := make([]float64, s.NTime*cells)
		for r := 0; r < s.NTime; r++ {
			for c := 0; c < cells; c++ {
				data[r*cells+c] = float64(-(n + 1)) * float64(i*s.NTime+r)
			}
		}
		return grid.NewArray(grid.Double, grid3, data)
	}
	if n := indexOf(s.TSVars, name); n >= 0 {
		data := make([]float64, s.NTime*cells)
		for r := 0; r < s.NTime; r++ {
			for c := 0; c < cells; c++ {
				data[r*cells+c] = float64(n)*1e6 + float64(i*s.NTime+r)*1e3 + float64(c)
			}
		}
		return grid.NewArray(grid.Double, grid3, data)
	}
	return grid.Array{}, fmt.Errorf("unknown variable %q", name)
}

// Series is the expected output of a record variable: its values from every
// slice concatenated in time order.
func (s SliceSet) Series(name string) (grid.Array, error) {
	parts := make([]grid.Array, len(s.Slices))
	for i := range s.Slices {
		a, err := s.Values(i, name)
		if err != nil {
			return grid.Array{}, err
		}
		parts[i] = a
	}
	return grid.Concat(parts...)
}

// Write creates every slice file through the backend.
func (s SliceSet) Write(b grid.Backend) error {
	schema := s.Schema()
	for i, path := range s.Paths() {
		if err := s.writeSlice(b, i, path, schema); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

func (s SliceSet) writeSlice(b grid.Backend, i int, path string, schema *grid.Schema) error {
	w, err := b.Create(path, grid.CreateOptions{Format: grid.FormatNetCDF, Mode: grid.ModeCreate})
	if err != nil {
		return err
	}
	header := schema.Clone()
	header.NumRecs = 0
	if err := w.Define(header); err != nil {
		w.Close()
		return err
	}
	for _, v := range schema.Vars {
		a, err := s.Values(i, v.Name)
		if err != nil {
			w.Close()
			return err
		}
		if schema.IsRecordVar(v) {
			err = w.Append(v.Name, 0, a)
		} else {
			err = w.Write(v.Name, a)
		}
		if err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func indexOf(list []string, name string) int {
	for i, v := range list {
		if v == name {
			return i
		}
	}
	return -1
}

func linspace(lo, hi float32, n int, endpoint bool) []float32 {
	out := make([]float32, n)
	div := n
	if endpoint {
		div = n - 1
	}
	if div <= 0 {
		div = 1
	}
	step := (hi - lo) / float32(div)
	for i := range out {
		out[i] = lo + float32(i)*step
	}
	return out
}
