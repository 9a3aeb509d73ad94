package grid

import (
	"fmt"
	"reflect"
)

// Type is the element type of a variable or attribute.
type Type int

const (
	Invalid Type = iota
	Byte         // int8
	Char         // byte, strings when used for text
	Short        // int16
	Int          // int32
	Float        // float32
	Double       // float64
)

// Size is the element size in bytes.
func (t Type) Size() int {
	switch t {
	case Byte, Char:
		return 1
	case Short:
		return 2
	case Int, Float:
		return 4
	case Double:
		return 8
	default:
		return 0
	}
}

// String returns the CDL name of the type.
func (t Type) String() string {
	switch t {
	case Byte:
		return "byte"
	case Char:
		return "char"
	case Short:
		return "short"
	case Int:
		return "int"
	case Float:
		return "float"
	case Double:
		return "double"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// TypeOf maps a Go value (scalar, slice, or string) to its element Type.
func TypeOf(v any) Type {
	switch v.(type) {
	case string, []byte, uint8:
		return Char
	case int8, []int8:
		return Byte
	case int16, []int16:
		return Short
	case int32, []int32:
		return Int
	case float32, []float32:
		return Float
	case float64, []float64:
		return Double
	}
	return Invalid
}

// NewData allocates a flat slice of n elements of type t.
func NewData(t Type, n int) any {
	switch t {
	case Byte:
		return make([]int8, n)
	case Char:
		return make([]byte, n)
	case Short:
		return make([]int16, n)
	case Int:
		return make([]int32, n)
	case Float:
		return make([]float32, n)
	case Double:
		return make([]float64, n)
	}
	return nil
}

// Array is a dense, row-major block of values with an explicit shape.
type Array struct {
	Type  Type
	Shape []int
	Data  any
}

// NewArray wraps flat data with a shape. Data must be a slice of the Go type
// matching t and hold exactly prod(shape) elements.
func NewArray(t Type, shape []int, data any) (Array, error) {
	a := Array{Type: t, Shape: append([]int(nil), shape...), Data: data}
	if got := TypeOf(data); got != t {
		return Array{}, fmt.Errorf("array data is %T, want %s", data, t)
	}
	if n := reflect.ValueOf(data).Len(); n != product(shape) {
		return Array{}, fmt.Errorf("array has %d elements, shape %v wants %d", n, shape, product(shape))
	}
	return a, nil
}

// Len is the number of elements.
func (a Array) Len() int {
	if a.Data == nil {
		return 0
	}
	return reflect.ValueOf(a.Data).Len()
}

// Bytes is the payload size in bytes.
func (a Array) Bytes() int64 {
	return int64(a.Len()) * int64(a.Type.Size())
}

// Records is the extent of the leading dimension, or 1 for a scalar.
func (a Array) Records() int {
	if len(a.Shape) == 0 {
		return 1
	}
	return a.Shape[0]
}

// RecordSlice returns records [start, start+count) as a new array sharing
// the backing storage.
func (a Array) RecordSlice(start, count int) (Array, error) {
	if len(a.Shape) == 0 {
		return Array{}, fmt.Errorf("cannot slice records of a scalar")
	}
	if start < 0 || count < 0 || start+count > a.Shape[0] {
		return Array{}, fmt.Errorf("record range [%d,%d) out of bounds for %d records", start, start+count, a.Shape[0])
	}
	per := product(a.Shape[1:])
	shape := append([]int{count}, a.Shape[1:]...)
	data := reflect.ValueOf(a.Data).Slice(start*per, (start+count)*per).Interface()
	return Array{Type: a.Type, Shape: shape, Data: data}, nil
}

// Concat joins arrays along their leading dimension. All inputs must share
// type and trailing shape.
func Concat(parts ...Array) (Array, error) {
	if len(parts) == 0 {
		return Array{}, fmt.Errorf("nothing to concatenate")
	}
	first := parts[0]
	if first.Data == nil {
		return Array{}, fmt.Errorf("first part has no data")
	}
	out := reflect.MakeSlice(reflect.TypeOf(first.Data), 0, 0)
	records := 0
	for i, p := range parts {
		if p.Type != first.Type || len(p.Shape) != len(first.Shape) || len(p.Shape) == 0 {
			return Array{}, fmt.Errorf("part %d does not match the first part's type or rank", i)
		}
		for d := 1; d < len(p.Shape); d++ {
			if p.Shape[d] != first.Shape[d] {
				return Array{}, fmt.Errorf("part %d has shape %v, want trailing %v", i, p.Shape, first.Shape[1:])
			}
		}
		out = reflect.AppendSlice(out, reflect.ValueOf(p.Data))
		records += p.Shape[0]
	}
	shape := append([]int{records}, first.Shape[1:]...)
	return Array{Type: first.Type, Shape: shape, Data: out.Interface()}, nil
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
