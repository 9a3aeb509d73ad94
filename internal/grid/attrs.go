package grid

import (
	"fmt"
	"reflect"
)

// AttrMap is an insertion-ordered attribute mapping. The zero value is an
// empty map ready to use.
type AttrMap struct {
	keys []string
	vals map[string]any
}

// NewAttrMap builds an AttrMap from alternating name/value pairs.
func NewAttrMap(pairs ...any) AttrMap {
	var m AttrMap
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(fmt.Sprint(pairs[i]), pairs[i+1])
	}
	return m
}

// Set adds or replaces an attribute. Replacing keeps the original position.
func (m *AttrMap) Set(name string, value any) {
	if m.vals == nil {
		m.vals = make(map[string]any)
	}
	if _, ok := m.vals[name]; !ok {
		m.keys = append(m.keys, name)
	}
	m.vals[name] = value
}

// Get returns the value of the named attribute.
func (m AttrMap) Get(name string) (any, bool) {
	v, ok := m.vals[name]
	return v, ok
}

// Keys returns the attribute names in insertion order.
func (m AttrMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len is the number of attributes.
func (m AttrMap) Len() int { return len(m.keys) }

// Clone returns a deep copy; slice values are copied too.
func (m AttrMap) Clone() AttrMap {
	var out AttrMap
	for _, k := range m.keys {
		out.Set(k, cloneValue(m.vals[k]))
	}
	return out
}

// Equal reports whether both maps hold the same names, in the same order,
// with deeply equal values.
func (m AttrMap) Equal(other AttrMap) bool {
	if len(m.keys) != len(other.keys) {
		return false
	}
	for i, k := range m.keys {
		if other.keys[i] != k {
			return false
		}
		if !reflect.DeepEqual(m.vals[k], other.vals[k]) {
			return false
		}
	}
	return true
}

// Map returns a plain map copy, convenient for assertions and logging.
func (m AttrMap) Map() map[string]any {
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[k] = m.vals[k]
	}
	return out
}

func cloneValue(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return v
	}
	cp := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	reflect.Copy(cp, rv)
	return cp.Interface()
}
