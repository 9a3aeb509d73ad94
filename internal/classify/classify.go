// Package classify assigns every variable of a slice file one of five roles
// that decide how it is carried into the series files.
package classify

import (
	"fmt"
	"slices"
	"strings"

	"github.com/specialistvlad/gridreshaper/internal/grid"
)

// Role is what a variable becomes in the outputs.
type Role int

const (
	RoleUnknown Role = iota
	// RoleScalar variables have no dimensions and are copied verbatim.
	RoleScalar
	// RoleCoordinate variables are named after their only dimension.
	RoleCoordinate
	// RoleTimeInvariant metadata is copied from the first input.
	RoleTimeInvariant
	// RoleTimeVariant metadata is appended next to every payload.
	RoleTimeVariant
	// RoleTimeSeries variables each get their own output file.
	RoleTimeSeries
)

var roleNames = map[Role]string{
	RoleScalar:        "scalar",
	RoleCoordinate:    "coordinate",
	RoleTimeInvariant: "time-invariant metadata",
	RoleTimeVariant:   "time-variant metadata",
	RoleTimeSeries:    "time series",
}

func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return "unknown"
}

// ClassificationError reports configured metadata names that are not
// variables of the first input file.
type ClassificationError struct {
	Path    string
	Missing []string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("metadata variables not found in %s: %s", e.Path, strings.Join(e.Missing, ", "))
}

// SchemaMismatchError reports an input whose schema differs from the first
// input's in a way that breaks shared metadata.
type SchemaMismatchError struct {
	Path     string
	Variable string
	Reason   string
}

func (e *SchemaMismatchError) Error() string {
	if e.Variable == "" {
		return fmt.Sprintf("schema mismatch in %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("schema mismatch in %s: variable %q: %s", e.Path, e.Variable, e.Reason)
}

// Table is the read-only result of classification.
type Table struct {
	// Unlimited names the growable dimension; empty if the inputs have none.
	Unlimited string

	path  string
	ref   *grid.Schema
	names []string
	roles map[string]Role
}

// Classify assigns roles using the first input file's schema. The first
// matching rule wins: no dimensions makes a scalar, a variable whose only
// dimension carries its own name is a coordinate, a listed metadata name is
// time-variant when it uses the unlimited dimension and time-invariant
// otherwise, and everything else is a time series. With auto set, unlisted
// variables lacking the unlimited dimension are time-invariant metadata too.
func Classify(path string, first *grid.Schema, metadata []string, auto bool) (*Table, error) {
	if err := first.Validate(); err != nil {
		return nil, &SchemaMismatchError{Path: path, Reason: err.Error()}
	}

	var missing []string
	for _, name := range metadata {
		if _, ok := first.Var(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &ClassificationError{Path: path, Missing: missing}
	}

	t := &Table{
		path:  path,
		ref:   first.Clone(),
		names: first.VarNames(),
		roles: make(map[string]Role, len(first.Vars)),
	}
	if d, ok := first.Unlimited(); ok {
		t.Unlimited = d.Name
	}
	for _, v := range first.Vars {
		t.roles[v.Name] = t.roleOf(v, slices.Contains(metadata, v.Name), auto)
	}
	return t, nil
}

func (t *Table) roleOf(v grid.Var, listed, auto bool) Role {
	timed := t.Unlimited != "" && slices.Contains(v.Dims, t.Unlimited)
	switch {
	case len(v.Dims) == 0:
		return RoleScalar
	case len(v.Dims) == 1 && v.Dims[0] == v.Name:
		return RoleCoordinate
	case listed && !timed:
		return RoleTimeInvariant
	case listed:
		return RoleTimeVariant
	case auto && !timed:
		return RoleTimeInvariant
	}
	return RoleTimeSeries
}

// Role returns the role of a variable, RoleUnknown if it was not classified.
func (t *Table) Role(name string) Role {
	return t.roles[name]
}

// Names lists every classified variable in first-file order.
func (t *Table) Names() []string {
	return slices.Clone(t.names)
}

// ByRole lists the variables with role r in first-file order.
func (t *Table) ByRole(r Role) []string {
	var out []string
	for _, name := range t.names {
		if t.roles[name] == r {
			out = append(out, name)
		}
	}
	return out
}

// TimeSeries lists the payload variables in first-file order.
func (t *Table) TimeSeries() []string {
	return t.ByRole(RoleTimeSeries)
}

// Shared lists every variable replicated into all outputs, in first-file
// order.
func (t *Table) Shared() []string {
	var out []string
	for _, name := range t.names {
		if t.roles[name] != RoleTimeSeries {
			out = append(out, name)
		}
	}
	return out
}

// IsRecord reports whether the variable grows along the unlimited dimension.
// Its values are appended from every input rather than copied once.
func (t *Table) IsRecord(name string) bool {
	v, ok := t.ref.Var(name)
	return ok && t.Unlimited != "" && len(v.Dims) > 0 && v.Dims[0] == t.Unlimited
}

// Reference is the first input's schema the table was built from.
func (t *Table) Reference() *grid.Schema {
	return t.ref
}

// Check verifies that another input agrees with the first on the variable
// set, every variable's dimensions and type, and the fixed dimension sizes.
func (t *Table) Check(path string, s *grid.Schema) error {
	mismatch := func(variable, format string, args ...any) error {
		return &SchemaMismatchError{Path: path, Variable: variable, Reason: fmt.Sprintf(format, args...)}
	}

	unlimited := ""
	if d, ok := s.Unlimited(); ok {
		unlimited = d.Name
	}
	if unlimited != t.Unlimited {
		return mismatch("", "unlimited dimension is %q, expected %q", unlimited, t.Unlimited)
	}
	for _, d := range t.ref.Dims {
		if d.Unlimited {
			continue
		}
		other, ok := s.Dim(d.Name)
		if !ok {
			return mismatch("", "dimension %q is missing", d.Name)
		}
		if other.Len != d.Len {
			return mismatch("", "dimension %q has length %d, expected %d", d.Name, other.Len, d.Len)
		}
	}

	if len(s.Vars) != len(t.ref.Vars) {
		return mismatch("", "has %d variables, expected %d", len(s.Vars), len(t.ref.Vars))
	}
	for _, want := range t.ref.Vars {
		got, ok := s.Var(want.Name)
		if !ok {
			return mismatch(want.Name, "variable is missing")
		}
		if !slices.Equal(got.Dims, want.Dims) {
			return mismatch(want.Name, "dimensions %v, expected %v", got.Dims, want.Dims)
		}
		if got.Type != want.Type {
			return mismatch(want.Name, "type %s, expected %s", got.Type, want.Type)
		}
	}
	return nil
}
