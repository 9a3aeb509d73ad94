package grid

import "fmt"

// Dim is a named dimension. Len of an unlimited dimension is the number of
// records currently stored.
type Dim struct {
	Name      string
	Len       int
	Unlimited bool
}

// Var describes a variable without its data.
type Var struct {
	Name  string
	Dims  []string
	Type  Type
	Attrs AttrMap
}

// Clone returns a deep copy of the descriptor.
func (v Var) Clone() Var {
	return Var{
		Name:  v.Name,
		Dims:  append([]string(nil), v.Dims...),
		Type:  v.Type,
		Attrs: v.Attrs.Clone(),
	}
}

// Schema is the header of one gridded-data file.
type Schema struct {
	Dims    []Dim
	Vars    []Var
	Attrs   AttrMap
	NumRecs int
}

// Dim returns the named dimension.
func (s *Schema) Dim(name string) (Dim, bool) {
	for _, d := range s.Dims {
		if d.Name == name {
			return d, true
		}
	}
	return Dim{}, false
}

// Var returns the named variable.
func (s *Schema) Var(name string) (Var, bool) {
	for _, v := range s.Vars {
		if v.Name == name {
			return v, true
		}
	}
	return Var{}, false
}

// Unlimited returns the growable dimension, if the schema has one.
func (s *Schema) Unlimited() (Dim, bool) {
	for _, d := range s.Dims {
		if d.Unlimited {
			return d, true
		}
	}
	return Dim{}, false
}

// SetRecords sets the record count and the unlimited dimension's length.
func (s *Schema) SetRecords(n int) {
	s.NumRecs = n
	for i := range s.Dims {
		if s.Dims[i].Unlimited {
			s.Dims[i].Len = n
		}
	}
}

// VarNames lists variable names in file order.
func (s *Schema) VarNames() []string {
	names := make([]string, len(s.Vars))
	for i, v := range s.Vars {
		names[i] = v.Name
	}
	return names
}

// IsRecordVar reports whether the variable's leading dimension is unlimited.
func (s *Schema) IsRecordVar(v Var) bool {
	if len(v.Dims) == 0 {
		return false
	}
	d, ok := s.Dim(v.Dims[0])
	return ok && d.Unlimited
}

// Shape resolves a variable's dimension extents. The unlimited dimension
// resolves to NumRecs.
func (s *Schema) Shape(v Var) ([]int, error) {
	shape := make([]int, len(v.Dims))
	for i, name := range v.Dims {
		d, ok := s.Dim(name)
		if !ok {
			return nil, fmt.Errorf("variable %q references unknown dimension %q", v.Name, name)
		}
		if d.Unlimited {
			shape[i] = s.NumRecs
		} else {
			shape[i] = d.Len
		}
	}
	return shape, nil
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	out := &Schema{
		Dims:    append([]Dim(nil), s.Dims...),
		Vars:    make([]Var, len(s.Vars)),
		Attrs:   s.Attrs.Clone(),
		NumRecs: s.NumRecs,
	}
	for i, v := range s.Vars {
		out.Vars[i] = v.Clone()
	}
	return out
}

// Validate checks internal consistency: unique names, known dimensions, at
// most one unlimited dimension and only in leading position.
func (s *Schema) Validate() error {
	seen := make(map[string]bool, len(s.Dims))
	unlimited := ""
	for _, d := range s.Dims {
		if seen[d.Name] {
			return fmt.Errorf("duplicate dimension %q", d.Name)
		}
		seen[d.Name] = true
		if d.Unlimited {
			if unlimited != "" {
				return fmt.Errorf("dimensions %q and %q are both unlimited", unlimited, d.Name)
			}
			unlimited = d.Name
		}
	}
	vars := make(map[string]bool, len(s.Vars))
	for _, v := range s.Vars {
		if vars[v.Name] {
			return fmt.Errorf("duplicate variable %q", v.Name)
		}
		vars[v.Name] = true
		if v.Type.Size() == 0 {
			return fmt.Errorf("variable %q has unsupported type %s", v.Name, v.Type)
		}
		for i, name := range v.Dims {
			if !seen[name] {
				return fmt.Errorf("variable %q references unknown dimension %q", v.Name, name)
			}
			if name == unlimited && i != 0 {
				return fmt.Errorf("variable %q uses unlimited dimension %q in position %d", v.Name, name, i)
			}
		}
	}
	return nil
}
