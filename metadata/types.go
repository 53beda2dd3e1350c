package metadata

import "kaitai_parquet_meta/internal/format"

type (
	Type              = format.Type
	Repetition        = format.FieldRepetitionType
	ConvertedType     = format.ConvertedType
	LogicalType       = format.LogicalType
	Encoding          = format.Encoding
	CompressionCodec  = format.CompressionCodec
	PageType          = format.PageType
	KeyValue          = format.KeyValue
	SortingColumn     = format.SortingColumn
	PageEncodingStats = format.PageEncodingStats
)

const (
	Boolean           = format.Boolean
	Int32             = format.Int32
	Int64             = format.Int64
	Int96             = format.Int96
	Float             = format.Float
	Double            = format.Double
	ByteArray         = format.ByteArray
	FixedLenByteArray = format.FixedLenByteArray
)

const (
	Required = format.Required
	Optional = format.Optional
	Repeated = format.Repeated
)

// SortOrder is the ordering used to compare statistics values of a column.
type SortOrder int

const (
	SortUnknown SortOrder = iota
	SortSigned
	SortUnsigned
)

func (o SortOrder) String() string {
	switch o {
	case SortSigned:
		return "SIGNED"
	case SortUnsigned:
		return "UNSIGNED"
	default:
		return "UNKNOWN"
	}
}

// Location is a byte range inside the file.
type Location struct {
	Offset int64
	Length int64
}
