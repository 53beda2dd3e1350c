package thriftcompact

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var w Writer
	w.WriteStructBegin()
	w.WriteFieldBegin(1, TypeI32)
	w.WriteI32(-7)
	w.WriteFieldBegin(2, TypeBinary)
	w.WriteString("col_a")
	w.WriteBoolField(3, true)
	w.WriteFieldBegin(4, TypeList)
	w.WriteListBegin(TypeI64, 2)
	w.WriteI64(1 << 40)
	w.WriteI64(-1)
	// 40 is more than 15 ids away from 4: long form header
	w.WriteFieldBegin(40, TypeStruct)
	w.WriteStructBegin()
	w.WriteFieldBegin(1, TypeDouble)
	w.WriteDouble(2.5)
	w.WriteStructEnd()
	w.WriteFieldBegin(41, TypeMap)
	w.WriteMapBegin(TypeBinary, TypeI16, 1)
	w.WriteString("k")
	w.WriteI16(300)
	w.WriteStructEnd()

	in := append([]byte(nil), w.Bytes()...)
	st, n, err := Unmarshal(in)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)
	require.Len(t, st.Fields, 6)

	v, err := st.Field(1).Value.I32()
	require.NoError(t, err)
	assert.Equal(t, int32(-7), v)

	s, err := st.Field(2).Value.Str()
	require.NoError(t, err)
	assert.Equal(t, "col_a", s)

	b, err := st.Field(3).Value.AsBool()
	require.NoError(t, err)
	assert.True(t, b)

	lst, err := st.Field(4).Value.AsList()
	require.NoError(t, err)
	require.Len(t, lst.Elements, 2)
	assert.Equal(t, int64(1<<40), lst.Elements[0].Int)
	assert.Equal(t, int64(-1), lst.Elements[1].Int)

	inner, err := st.Field(40).Value.AsStruct()
	require.NoError(t, err)
	d, err := inner.Field(1).Value.F64()
	require.NoError(t, err)
	assert.Equal(t, 2.5, d)

	m, err := st.Field(41).Value.AsMap()
	require.NoError(t, err)
	require.Len(t, m.Keys, 1)
	assert.Equal(t, int64(300), m.Values[0].Int)

	assert.Equal(t, in, Marshal(st))
}

func TestUnmarshalReportsConsumedBytes(t *testing.T) {
	var w Writer
	w.WriteStructBegin()
	w.WriteFieldBegin(1, TypeI32)
	w.WriteI32(5)
	w.WriteStructEnd()
	enc := w.Bytes()

	buf := append(append([]byte(nil), enc...), 0xde, 0xad)
	_, n, err := Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, len(enc), n)
}

func TestLongList(t *testing.T) {
	var w Writer
	w.WriteStructBegin()
	w.WriteFieldBegin(1, TypeList)
	w.WriteListBegin(TypeI32, 20)
	for i := 0; i < 20; i++ {
		w.WriteI32(int32(i))
	}
	w.WriteStructEnd()

	st, _, err := Unmarshal(w.Bytes())
	require.NoError(t, err)
	lst, err := st.Field(1).Value.AsList()
	require.NoError(t, err)
	require.Len(t, lst.Elements, 20)
	assert.Equal(t, int64(19), lst.Elements[19].Int)
	assert.Equal(t, w.Bytes(), Marshal(st))
}

func TestBoolListElements(t *testing.T) {
	var w Writer
	w.WriteStructBegin()
	w.WriteFieldBegin(1, TypeList)
	w.WriteListBegin(TypeBoolTrue, 3)
	w.WriteBool(true)
	w.WriteBool(false)
	w.WriteBool(true)
	w.WriteStructEnd()

	st, _, err := Unmarshal(w.Bytes())
	require.NoError(t, err)
	lst, err := st.Field(1).Value.AsList()
	require.NoError(t, err)
	got := []bool{lst.Elements[0].Bool, lst.Elements[1].Bool, lst.Elements[2].Bool}
	assert.Equal(t, []bool{true, false, true}, got)
	assert.Equal(t, w.Bytes(), Marshal(st))
}

func TestCorruptInput(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"missing stop", []byte{0x15, 0x02}},
		{"truncated varint", []byte{0x15, 0x80}},
		{"binary longer than input", []byte{0x18, 0x7f, 'a'}},
		{"list longer than input", []byte{0x19, 0xf5, 0xff, 0xff, 0x03}},
		{"unknown type", []byte{0x1d, 0x00}},
		{"i32 overflow", []byte{0x15, 0xff, 0xff, 0xff, 0xff, 0x7f, 0x00}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Unmarshal(tc.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorrupt), "got %v", err)
		})
	}
}

func TestNestingLimit(t *testing.T) {
	var in []byte
	for i := 0; i < MaxDepth+1; i++ {
		in = append(in, 0x1c) // field 1, struct
	}
	_, _, err := Unmarshal(in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestAccessorTypeMismatch(t *testing.T) {
	v := &Value{Type: TypeI64, Int: 3}
	_, err := v.I32()
	assert.True(t, errors.Is(err, ErrTypeMismatch))
	_, err = v.Bytes()
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	var nilValue *Value
	_, err = nilValue.AsStruct()
	assert.True(t, errors.Is(err, ErrTypeMismatch))
}
