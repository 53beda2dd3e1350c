package thriftcompact

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Writer encodes compact protocol values into an in-memory buffer. The zero
// value is ready to use.
type Writer struct {
	buf   bytes.Buffer
	last  int16
	stack []int16
	tmp   [binary.MaxVarintLen64]byte
}

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) Len() int { return w.buf.Len() }

func (w *Writer) writeUvarint(x uint64) {
	n := binary.PutUvarint(w.tmp[:], x)
	w.buf.Write(w.tmp[:n])
}

func (w *Writer) writeZigzag(x int64) {
	w.writeUvarint(uint64((x << 1) ^ (x >> 63)))
}

func (w *Writer) WriteStructBegin() {
	w.stack = append(w.stack, w.last)
	w.last = 0
}

// WriteStructEnd writes the stop byte and restores the enclosing field id.
func (w *Writer) WriteStructEnd() {
	w.buf.WriteByte(byte(TypeStop))
	w.last = w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
}

// WriteFieldBegin writes a field header, using the short delta form whenever
// the id is 1..15 above the previous one.
func (w *Writer) WriteFieldBegin(id int16, t Type) {
	if delta := id - w.last; delta > 0 && delta <= 15 {
		w.buf.WriteByte(byte(delta)<<4 | byte(t))
	} else {
		w.buf.WriteByte(byte(t))
		w.writeZigzag(int64(id))
	}
	w.last = id
}

// WriteBoolField writes a boolean struct field; the value lives in the header.
func (w *Writer) WriteBoolField(id int16, v bool) {
	t := TypeBoolFalse
	if v {
		t = TypeBoolTrue
	}
	w.WriteFieldBegin(id, t)
}

// WriteBool writes a boolean container element.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.WriteByte(byte(TypeBoolTrue))
	} else {
		w.buf.WriteByte(byte(TypeBoolFalse))
	}
}

func (w *Writer) WriteI8(v int8)   { w.buf.WriteByte(byte(v)) }
func (w *Writer) WriteI16(v int16) { w.writeZigzag(int64(v)) }
func (w *Writer) WriteI32(v int32) { w.writeZigzag(int64(v)) }
func (w *Writer) WriteI64(v int64) { w.writeZigzag(v) }

func (w *Writer) WriteDouble(v float64) {
	binary.LittleEndian.PutUint64(w.tmp[:8], math.Float64bits(v))
	w.buf.Write(w.tmp[:8])
}

func (w *Writer) WriteBinary(b []byte) {
	w.writeUvarint(uint64(len(b)))
	w.buf.Write(b)
}

func (w *Writer) WriteString(s string) {
	w.writeUvarint(uint64(len(s)))
	w.buf.WriteString(s)
}

func (w *Writer) WriteListBegin(elem Type, size int) {
	if size < 15 {
		w.buf.WriteByte(byte(size)<<4 | byte(elem))
		return
	}
	w.buf.WriteByte(0xf0 | byte(elem))
	w.writeUvarint(uint64(size))
}

func (w *Writer) WriteMapBegin(key, value Type, size int) {
	w.writeUvarint(uint64(size))
	if size > 0 {
		w.buf.WriteByte(byte(key)<<4 | byte(value))
	}
}

// Marshal encodes st, including the trailing stop byte.
func Marshal(st *Struct) []byte {
	var w Writer
	w.writeStruct(st)
	return w.Bytes()
}

func (w *Writer) writeStruct(st *Struct) {
	w.WriteStructBegin()
	for _, f := range st.Fields {
		if f.Type.isBool() {
			w.WriteBoolField(f.ID, f.Value != nil && f.Value.Bool)
			continue
		}
		w.WriteFieldBegin(f.ID, f.Type)
		w.writeValue(f.Value)
	}
	w.WriteStructEnd()
}

func (w *Writer) writeValue(v *Value) {
	switch v.Type {
	case TypeBoolTrue, TypeBoolFalse:
		if v.Int != 0 {
			w.buf.WriteByte(byte(v.Int))
		} else {
			w.WriteBool(v.Bool)
		}
	case TypeByte:
		w.WriteI8(int8(v.Int))
	case TypeI16, TypeI32, TypeI64:
		w.writeZigzag(v.Int)
	case TypeDouble:
		w.WriteDouble(v.Double)
	case TypeBinary:
		w.WriteBinary(v.Binary)
	case TypeList, TypeSet:
		w.WriteListBegin(v.List.ElemType, len(v.List.Elements))
		for _, e := range v.List.Elements {
			w.writeValue(e)
		}
	case TypeMap:
		w.WriteMapBegin(v.Map.KeyType, v.Map.ValueType, len(v.Map.Keys))
		for i := range v.Map.Keys {
			w.writeValue(v.Map.Keys[i])
			w.writeValue(v.Map.Values[i])
		}
	case TypeStruct:
		w.writeStruct(v.Struct)
	}
}
