package thriftcompact

import (
	"bytes"
	"io"
	"math"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
	"github.com/pkg/errors"
)

// MaxDepth bounds struct/container nesting so hostile input cannot blow the
// stack. Parquet footers nest at most five or six levels.
const MaxDepth = 64

type reader struct {
	ks    *kaitai.Stream
	size  int64
	depth int
}

// Unmarshal parses one struct from the start of b and returns it with the
// number of bytes consumed. Parquet stores raw structs, not message envelopes.
func Unmarshal(b []byte) (*Struct, int, error) {
	br := bytes.NewReader(b)
	ks := kaitai.NewStream(br)

	st, err := ReadStruct(ks)
	if err != nil {
		return nil, 0, err
	}

	pos, _ := br.Seek(0, io.SeekCurrent)
	return st, int(pos), nil
}

// ReadStruct parses one struct starting at the current stream position.
func ReadStruct(ks *kaitai.Stream) (*Struct, error) {
	size, err := ks.Size()
	if err != nil {
		return nil, errors.Wrap(err, "thrift compact: stream size")
	}
	r := &reader{ks: ks, size: size}
	return r.readStruct()
}

func (r *reader) corrupt(what string, err error) error {
	if err == nil {
		return errors.Wrap(ErrCorrupt, what)
	}
	return errors.Wrapf(ErrCorrupt, "%s: %v", what, err)
}

func (r *reader) remaining() (int64, error) {
	pos, err := r.ks.Pos()
	if err != nil {
		return 0, err
	}
	return r.size - pos, nil
}

func (r *reader) readUvarint(maxBytes int) (uint64, error) {
	var x uint64
	var s uint
	for i := 0; i < maxBytes; i++ {
		b, err := r.ks.ReadU1()
		if err != nil {
			return 0, r.corrupt("varint", err)
		}
		x |= uint64(b&0x7f) << s
		if b < 0x80 {
			return x, nil
		}
		s += 7
	}
	return 0, r.corrupt("varint too long", nil)
}

func (r *reader) readZigzag(maxBytes int) (int64, error) {
	u, err := r.readUvarint(maxBytes)
	if err != nil {
		return 0, err
	}
	return int64(u>>1) ^ -int64(u&1), nil
}

func (r *reader) readSize() (int, error) {
	n, err := r.readUvarint(5)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 {
		return 0, r.corrupt("negative size", nil)
	}
	return int(n), nil
}

// checkCount rejects element counts that cannot possibly fit in the rest of
// the stream; every element occupies at least one byte.
func (r *reader) checkCount(n, perElem int) error {
	rem, err := r.remaining()
	if err != nil {
		return r.corrupt("position", err)
	}
	if int64(n)*int64(perElem) > rem {
		return r.corrupt("container size exceeds input", nil)
	}
	return nil
}

func (r *reader) readStruct() (*Struct, error) {
	if r.depth >= MaxDepth {
		return nil, r.corrupt("nesting too deep", nil)
	}
	r.depth++
	defer func() { r.depth-- }()

	st := &Struct{}
	var prevID int16
	for {
		b, err := r.ks.ReadU1()
		if err != nil {
			return nil, r.corrupt("field header", err)
		}
		if b == 0 {
			return st, nil
		}

		ft := Type(b & 0x0f)
		delta := int16(b >> 4)

		var id int16
		if delta == 0 {
			v, err := r.readZigzag(3)
			if err != nil {
				return nil, err
			}
			if v < math.MinInt16 || v > math.MaxInt16 {
				return nil, r.corrupt("field id out of range", nil)
			}
			id = int16(v)
		} else {
			id = prevID + delta
		}
		prevID = id

		var val *Value
		if ft.isBool() {
			val = &Value{Type: ft, Bool: ft == TypeBoolTrue}
		} else {
			val, err = r.readValue(ft)
			if err != nil {
				return nil, errors.WithMessagef(err, "field %d", id)
			}
		}
		st.Fields = append(st.Fields, Field{ID: id, Type: ft, Value: val})
	}
}

func (r *reader) readValue(t Type) (*Value, error) {
	switch t {
	case TypeBoolTrue, TypeBoolFalse:
		// container element: one byte per value
		b, err := r.ks.ReadU1()
		if err != nil {
			return nil, r.corrupt("bool", err)
		}
		return &Value{Type: t, Bool: b == byte(TypeBoolTrue), Int: int64(b)}, nil
	case TypeByte:
		b, err := r.ks.ReadU1()
		if err != nil {
			return nil, r.corrupt("byte", err)
		}
		return &Value{Type: t, Int: int64(int8(b))}, nil
	case TypeI16:
		v, err := r.readZigzag(3)
		if err != nil {
			return nil, err
		}
		if v < math.MinInt16 || v > math.MaxInt16 {
			return nil, r.corrupt("i16 out of range", nil)
		}
		return &Value{Type: t, Int: v}, nil
	case TypeI32:
		v, err := r.readZigzag(5)
		if err != nil {
			return nil, err
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, r.corrupt("i32 out of range", nil)
		}
		return &Value{Type: t, Int: v}, nil
	case TypeI64:
		v, err := r.readZigzag(10)
		if err != nil {
			return nil, err
		}
		return &Value{Type: t, Int: v}, nil
	case TypeDouble:
		bits, err := r.ks.ReadU8le()
		if err != nil {
			return nil, r.corrupt("double", err)
		}
		return &Value{Type: t, Double: math.Float64frombits(bits)}, nil
	case TypeBinary:
		n, err := r.readSize()
		if err != nil {
			return nil, err
		}
		if err := r.checkCount(n, 1); err != nil {
			return nil, err
		}
		b, err := r.ks.ReadBytes(n)
		if err != nil {
			return nil, r.corrupt("binary", err)
		}
		if b == nil {
			b = []byte{}
		}
		return &Value{Type: t, Binary: b}, nil
	case TypeList, TypeSet:
		lst, err := r.readList()
		if err != nil {
			return nil, err
		}
		return &Value{Type: t, List: lst}, nil
	case TypeMap:
		m, err := r.readMap()
		if err != nil {
			return nil, err
		}
		return &Value{Type: t, Map: m}, nil
	case TypeStruct:
		st, err := r.readStruct()
		if err != nil {
			return nil, err
		}
		return &Value{Type: t, Struct: st}, nil
	default:
		return nil, r.corrupt(t.String(), nil)
	}
}

func (r *reader) readList() (*List, error) {
	if r.depth >= MaxDepth {
		return nil, r.corrupt("nesting too deep", nil)
	}
	r.depth++
	defer func() { r.depth-- }()

	h, err := r.ks.ReadU1()
	if err != nil {
		return nil, r.corrupt("list header", err)
	}
	n := int(h >> 4)
	et := Type(h & 0x0f)
	if n == 15 {
		if n, err = r.readSize(); err != nil {
			return nil, err
		}
	}
	if err := r.checkCount(n, 1); err != nil {
		return nil, err
	}

	lst := &List{ElemType: et, Elements: make([]*Value, 0, n)}
	for i := 0; i < n; i++ {
		v, err := r.readValue(et)
		if err != nil {
			return nil, errors.WithMessagef(err, "element %d", i)
		}
		lst.Elements = append(lst.Elements, v)
	}
	return lst, nil
}

func (r *reader) readMap() (*Map, error) {
	if r.depth >= MaxDepth {
		return nil, r.corrupt("nesting too deep", nil)
	}
	r.depth++
	defer func() { r.depth-- }()

	n, err := r.readSize()
	if err != nil {
		return nil, err
	}
	m := &Map{}
	if n == 0 {
		return m, nil
	}
	if err := r.checkCount(n, 2); err != nil {
		return nil, err
	}
	h, err := r.ks.ReadU1()
	if err != nil {
		return nil, r.corrupt("map header", err)
	}
	m.KeyType, m.ValueType = Type(h>>4), Type(h&0x0f)
	m.Keys = make([]*Value, 0, n)
	m.Values = make([]*Value, 0, n)
	for i := 0; i < n; i++ {
		k, err := r.readValue(m.KeyType)
		if err != nil {
			return nil, err
		}
		v, err := r.readValue(m.ValueType)
		if err != nil {
			return nil, err
		}
		m.Keys = append(m.Keys, k)
		m.Values = append(m.Values, v)
	}
	return m, nil
}
