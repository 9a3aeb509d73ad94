package netcdf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/specialistvlad/gridreshaper/internal/grid"
)

const (
	tagDimension = 0x0000000a
	tagVariable  = 0x0000000b
	tagAttribute = 0x0000000c
)

// ncType maps grid types to the classic nc_type codes.
func ncType(t grid.Type) (int32, error) {
	switch t {
	case grid.Byte:
		return 1, nil
	case grid.Char:
		return 2, nil
	case grid.Short:
		return 3, nil
	case grid.Int:
		return 4, nil
	case grid.Float:
		return 5, nil
	case grid.Double:
		return 6, nil
	}
	return 0, fmt.Errorf("type %s cannot be stored in a classic file", t)
}

func pad4(n int64) int64 {
	return (n + 3) &^ 3
}

// varLayout places one variable in the file.
type varLayout struct {
	v      grid.Var
	record bool
	slab   int64 // bytes per record for record variables, total bytes otherwise
	vsize  int64 // slab rounded up to a multiple of 4
	begin  int64
	shape  []int // per-record shape for record variables
}

// layout is the fully resolved placement of a schema in a file.
type layout struct {
	version  byte
	header   []byte
	vars     map[string]*varLayout
	recBegin int64
	recSize  int64
}

// newLayout encodes the header for s and assigns every variable its begin
// offset. Fixed-size variables follow the header in schema order; record
// variables are interleaved per record after them.
func newLayout(s *grid.Schema, version byte) (*layout, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	l := &layout{version: version, vars: make(map[string]*varLayout, len(s.Vars))}
	ordered := make([]*varLayout, 0, len(s.Vars))
	for _, v := range s.Vars {
		vl := &varLayout{v: v, record: s.IsRecordVar(v)}
		n := int64(1)
		for i, name := range v.Dims {
			if i == 0 && vl.record {
				continue
			}
			d, _ := s.Dim(name)
			n *= int64(d.Len)
			vl.shape = append(vl.shape, d.Len)
		}
		vl.slab = n * int64(v.Type.Size())
		vl.vsize = pad4(vl.slab)
		l.vars[v.Name] = vl
		ordered = append(ordered, vl)
	}

	// The header size does not depend on the offsets, so encode once with
	// zero offsets to measure it.
	draft, err := encodeHeader(s, ordered, version, 0)
	if err != nil {
		return nil, err
	}
	offset := int64(len(draft))
	for _, vl := range ordered {
		if vl.record {
			continue
		}
		vl.begin = offset
		offset += vl.vsize
	}
	l.recBegin = offset
	var records []*varLayout
	for _, vl := range ordered {
		if !vl.record {
			continue
		}
		vl.begin = offset
		offset += vl.vsize
		l.recSize += vl.vsize
		records = append(records, vl)
	}
	// A lone record variable is stored without per-record padding.
	if len(records) == 1 {
		l.recSize = records[0].slab
	}
	if version == 1 && offset > math.MaxInt32 {
		return nil, fmt.Errorf("data offsets exceed the CDF-1 limit, use the %s format", grid.FormatNetCDF64)
	}
	if l.header, err = encodeHeader(s, ordered, version, 0); err != nil {
		return nil, err
	}
	return l, nil
}

// encodeHeader serializes the header with the given record count.
func encodeHeader(s *grid.Schema, vars []*varLayout, version byte, numRecs int) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("CDF")
	buf.WriteByte(version)
	putInt32(&buf, int32(numRecs))

	dimIDs := make(map[string]int32, len(s.Dims))
	if len(s.Dims) == 0 {
		putInt32(&buf, 0)
		putInt32(&buf, 0)
	} else {
		putInt32(&buf, tagDimension)
		putInt32(&buf, int32(len(s.Dims)))
		for i, d := range s.Dims {
			dimIDs[d.Name] = int32(i)
			putName(&buf, d.Name)
			if d.Unlimited {
				putInt32(&buf, 0)
			} else {
				putInt32(&buf, int32(d.Len))
			}
		}
	}

	if err := putAttrs(&buf, s.Attrs); err != nil {
		return nil, fmt.Errorf("global attributes: %w", err)
	}

	if len(vars) == 0 {
		putInt32(&buf, 0)
		putInt32(&buf, 0)
		return buf.Bytes(), nil
	}
	putInt32(&buf, tagVariable)
	putInt32(&buf, int32(len(vars)))
	for _, vl := range vars {
		putName(&buf, vl.v.Name)
		putInt32(&buf, int32(len(vl.v.Dims)))
		for _, name := range vl.v.Dims {
			putInt32(&buf, dimIDs[name])
		}
		if err := putAttrs(&buf, vl.v.Attrs); err != nil {
			return nil, fmt.Errorf("variable %q: %w", vl.v.Name, err)
		}
		code, err := ncType(vl.v.Type)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", vl.v.Name, err)
		}
		putInt32(&buf, code)
		vsize := vl.vsize
		if vsize > math.MaxInt32 {
			vsize = math.MaxUint32 // the format's marker for "too large to record"
		}
		putInt32(&buf, int32(uint32(vsize)))
		if version == 1 {
			putInt32(&buf, int32(vl.begin))
		} else {
			putInt64(&buf, vl.begin)
		}
	}
	return buf.Bytes(), nil
}

func putInt32(buf *bytes.Buffer, v int32) {
	_ = binary.Write(buf, binary.BigEndian, v)
}

func putInt64(buf *bytes.Buffer, v int64) {
	_ = binary.Write(buf, binary.BigEndian, v)
}

func putName(buf *bytes.Buffer, name string) {
	putInt32(buf, int32(len(name)))
	buf.WriteString(name)
	putPadding(buf, int64(len(name)))
}

func putPadding(buf *bytes.Buffer, n int64) {
	for i := n; i < pad4(n); i++ {
		buf.WriteByte(0)
	}
}

func putAttrs(buf *bytes.Buffer, attrs grid.AttrMap) error {
	if attrs.Len() == 0 {
		putInt32(buf, 0)
		putInt32(buf, 0)
		return nil
	}
	putInt32(buf, tagAttribute)
	putInt32(buf, int32(attrs.Len()))
	for _, k := range attrs.Keys() {
		v, _ := attrs.Get(k)
		putName(buf, k)
		if err := putAttrValue(buf, v); err != nil {
			return fmt.Errorf("attribute %q: %w", k, err)
		}
	}
	return nil
}

func putAttrValue(buf *bytes.Buffer, v any) error {
	var payload any
	var n int
	switch x := v.(type) {
	case string:
		payload, n = []byte(x), len(x)
	case []byte:
		payload, n = x, len(x)
	case int8:
		payload, n = []int8{x}, 1
	case []int8:
		payload, n = x, len(x)
	case int16:
		payload, n = []int16{x}, 1
	case []int16:
		payload, n = x, len(x)
	case int32:
		payload, n = []int32{x}, 1
	case []int32:
		payload, n = x, len(x)
	case float32:
		payload, n = []float32{x}, 1
	case []float32:
		payload, n = x, len(x)
	case float64:
		payload, n = []float64{x}, 1
	case []float64:
		payload, n = x, len(x)
	default:
		return fmt.Errorf("unsupported attribute value of type %T", v)
	}
	t := grid.TypeOf(v)
	code, err := ncType(t)
	if err != nil {
		return err
	}
	putInt32(buf, code)
	putInt32(buf, int32(n))
	_ = binary.Write(buf, binary.BigEndian, payload)
	putPadding(buf, int64(n*t.Size()))
	return nil
}
