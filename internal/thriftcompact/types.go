// Package thriftcompact reads and writes the Thrift Compact Protocol encoding
// used by parquet footers and page headers.
//
// Reading produces a small AST (Struct, Field, Value, List, Map) that keeps
// every field, known or not, so that Marshal(Unmarshal(b)) reproduces b for
// canonically encoded input. Typed decoders in internal/format walk the AST
// and switch on field ids.
package thriftcompact

import (
	"fmt"

	"github.com/pkg/errors"
)

// Type is a compact protocol wire type.
type Type uint8

const (
	TypeStop      Type = 0
	TypeBoolTrue  Type = 1
	TypeBoolFalse Type = 2
	TypeByte      Type = 3
	TypeI16       Type = 4
	TypeI32       Type = 5
	TypeI64       Type = 6
	TypeDouble    Type = 7
	TypeBinary    Type = 8
	TypeList      Type = 9
	TypeSet       Type = 10
	TypeMap       Type = 11
	TypeStruct    Type = 12
)

func (t Type) String() string {
	switch t {
	case TypeStop:
		return "STOP"
	case TypeBoolTrue, TypeBoolFalse:
		return "BOOL"
	case TypeByte:
		return "BYTE"
	case TypeI16:
		return "I16"
	case TypeI32:
		return "I32"
	case TypeI64:
		return "I64"
	case TypeDouble:
		return "DOUBLE"
	case TypeBinary:
		return "BINARY"
	case TypeList:
		return "LIST"
	case TypeSet:
		return "SET"
	case TypeMap:
		return "MAP"
	case TypeStruct:
		return "STRUCT"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

func (t Type) isBool() bool { return t == TypeBoolTrue || t == TypeBoolFalse }

var (
	// ErrCorrupt is returned when the input is not a well formed compact
	// protocol encoding (truncated, oversized containers, unknown types).
	ErrCorrupt = errors.New("thrift compact: corrupt input")
	// ErrTypeMismatch is returned by Value accessors when the wire type of a
	// value differs from the one requested.
	ErrTypeMismatch = errors.New("thrift compact: type mismatch")
)

// Struct is a decoded struct. The terminating stop byte is not stored.
type Struct struct {
	Fields []Field
}

// Field is one struct field with its absolute id.
type Field struct {
	ID    int16
	Type  Type
	Value *Value
}

// Value carries exactly one payload selected by Type.
//
// Integers of every width are held in Int. Booleans stored as struct fields
// carry their value in Bool; booleans inside containers additionally keep the
// raw element byte in Int.
type Value struct {
	Type   Type
	Bool   bool
	Int    int64
	Double float64
	Binary []byte
	List   *List
	Map    *Map
	Struct *Struct
}

// List is a list or set payload.
type List struct {
	ElemType Type
	Elements []*Value
}

// Map is a map payload with parallel key and value slices.
type Map struct {
	KeyType   Type
	ValueType Type
	Keys      []*Value
	Values    []*Value
}

// Field returns the first field with the given id, or nil.
func (s *Struct) Field(id int16) *Field {
	for i := range s.Fields {
		if s.Fields[i].ID == id {
			return &s.Fields[i]
		}
	}
	return nil
}

func mismatch(want Type, v *Value) error {
	if v == nil {
		return errors.Wrapf(ErrTypeMismatch, "want %s, got nothing", want)
	}
	return errors.Wrapf(ErrTypeMismatch, "want %s, got %s", want, v.Type)
}

func (v *Value) AsBool() (bool, error) {
	if v == nil || !v.Type.isBool() {
		return false, mismatch(TypeBoolTrue, v)
	}
	return v.Bool, nil
}

func (v *Value) I8() (int8, error) {
	if v == nil || v.Type != TypeByte {
		return 0, mismatch(TypeByte, v)
	}
	return int8(v.Int), nil
}

func (v *Value) I16() (int16, error) {
	if v == nil || v.Type != TypeI16 {
		return 0, mismatch(TypeI16, v)
	}
	return int16(v.Int), nil
}

func (v *Value) I32() (int32, error) {
	if v == nil || v.Type != TypeI32 {
		return 0, mismatch(TypeI32, v)
	}
	return int32(v.Int), nil
}

func (v *Value) I64() (int64, error) {
	if v == nil || v.Type != TypeI64 {
		return 0, mismatch(TypeI64, v)
	}
	return v.Int, nil
}

func (v *Value) F64() (float64, error) {
	if v == nil || v.Type != TypeDouble {
		return 0, mismatch(TypeDouble, v)
	}
	return v.Double, nil
}

// Bytes returns the binary payload. The slice is shared with the AST.
func (v *Value) Bytes() ([]byte, error) {
	if v == nil || v.Type != TypeBinary {
		return nil, mismatch(TypeBinary, v)
	}
	return v.Binary, nil
}

func (v *Value) Str() (string, error) {
	b, err := v.Bytes()
	return string(b), err
}

func (v *Value) AsStruct() (*Struct, error) {
	if v == nil || v.Type != TypeStruct {
		return nil, mismatch(TypeStruct, v)
	}
	return v.Struct, nil
}

// AsList accepts both lists and sets.
func (v *Value) AsList() (*List, error) {
	if v == nil || (v.Type != TypeList && v.Type != TypeSet) {
		return nil, mismatch(TypeList, v)
	}
	return v.List, nil
}

func (v *Value) AsMap() (*Map, error) {
	if v == nil || v.Type != TypeMap {
		return nil, mismatch(TypeMap, v)
	}
	return v.Map, nil
}
