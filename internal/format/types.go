// Package format holds the raw parquet footer structures as they appear on
// the wire, and converts them to and from the Thrift Compact encoding.
//
// Optional thrift fields are pointers; nil means the writer omitted them.
package format

import "fmt"

// FileMetaData is the decoded parquet footer.
type FileMetaData struct {
	Version          int32
	Schema           []SchemaElement
	NumRows          int64
	RowGroups        []RowGroup
	KeyValueMetadata []KeyValue
	CreatedBy        *string
}

type SchemaElement struct {
	Type           *Type
	TypeLength     *int32
	RepetitionType *FieldRepetitionType
	Name           string
	NumChildren    *int32
	ConvertedType  *ConvertedType
	Scale          *int32
	Precision      *int32
	FieldID        *int32
	LogicalType    *LogicalType
}

// LogicalType is the thrift LogicalType union. At most one member is set.
type LogicalType struct {
	UTF8      *Empty
	Map       *Empty
	List      *Empty
	Enum      *Empty
	Decimal   *DecimalType
	Date      *Empty
	Time      *TimeType
	Timestamp *TimeType
	Integer   *IntType
	Unknown   *Empty
	JSON      *Empty
	BSON      *Empty
	UUID      *Empty
	Float16   *Empty
}

// Empty stands in for the parameterless logical type structs.
type Empty struct{}

type DecimalType struct {
	Scale     int32
	Precision int32
}

type TimeUnit int8

const (
	Millis TimeUnit = 1
	Micros TimeUnit = 2
	Nanos  TimeUnit = 3
)

type TimeType struct {
	IsAdjustedToUTC bool
	Unit            TimeUnit
}

type IntType struct {
	BitWidth int8
	IsSigned bool
}

type RowGroup struct {
	Columns             []ColumnChunk
	TotalByteSize       int64
	NumRows             int64
	SortingColumns      []SortingColumn
	FileOffset          *int64
	TotalCompressedSize *int64
	Ordinal             *int16
}

type ColumnChunk struct {
	FilePath          *string
	FileOffset        int64
	MetaData          *ColumnMetaData
	OffsetIndexOffset *int64
	OffsetIndexLength *int32
	ColumnIndexOffset *int64
	ColumnIndexLength *int32
}

type ColumnMetaData struct {
	Type                  Type
	Encodings             []Encoding
	PathInSchema          []string
	Codec                 CompressionCodec
	NumValues             int64
	TotalUncompressedSize int64
	TotalCompressedSize   int64
	KeyValueMetadata      []KeyValue
	DataPageOffset        int64
	IndexPageOffset       *int64
	DictionaryPageOffset  *int64
	Statistics            *Statistics
	EncodingStats         []PageEncodingStats
	BloomFilterOffset     *int64
	BloomFilterLength     *int32
}

type KeyValue struct {
	Key   string
	Value *string
}

// Statistics carries plain-encoded bounds. Max/Min are the deprecated fields
// whose ordering depended on the writer; MaxValue/MinValue follow the column
// sort order.
type Statistics struct {
	Max           []byte
	Min           []byte
	NullCount     *int64
	DistinctCount *int64
	MaxValue      []byte
	MinValue      []byte
}

type PageEncodingStats struct {
	PageType PageType
	Encoding Encoding
	Count    int32
}

type SortingColumn struct {
	ColumnIdx  int32
	Descending bool
	NullsFirst bool
}

type PageHeader struct {
	Type                 PageType
	UncompressedPageSize int32
	CompressedPageSize   int32
	CRC                  *int32
	DataPageHeader       *DataPageHeader
	DictionaryPageHeader *DictionaryPageHeader
	DataPageHeaderV2     *DataPageHeaderV2
}

type DataPageHeader struct {
	NumValues               int32
	Encoding                Encoding
	DefinitionLevelEncoding Encoding
	RepetitionLevelEncoding Encoding
	Statistics              *Statistics
}

type DictionaryPageHeader struct {
	NumValues int32
	Encoding  Encoding
	IsSorted  *bool
}

type DataPageHeaderV2 struct {
	NumValues                  int32
	NumNulls                   int32
	NumRows                    int32
	Encoding                   Encoding
	DefinitionLevelsByteLength int32
	RepetitionLevelsByteLength int32
	IsCompressed               *bool
	Statistics                 *Statistics
}

func (u TimeUnit) String() string {
	switch u {
	case Millis:
		return "MILLIS"
	case Micros:
		return "MICROS"
	case Nanos:
		return "NANOS"
	default:
		return "UNKNOWN"
	}
}

func (t *LogicalType) String() string {
	switch {
	case t == nil:
		return ""
	case t.UTF8 != nil:
		return "STRING"
	case t.Map != nil:
		return "MAP"
	case t.List != nil:
		return "LIST"
	case t.Enum != nil:
		return "ENUM"
	case t.Decimal != nil:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Decimal.Precision, t.Decimal.Scale)
	case t.Date != nil:
		return "DATE"
	case t.Time != nil:
		return fmt.Sprintf("TIME(%s,%t)", t.Time.Unit, t.Time.IsAdjustedToUTC)
	case t.Timestamp != nil:
		return fmt.Sprintf("TIMESTAMP(%s,%t)", t.Timestamp.Unit, t.Timestamp.IsAdjustedToUTC)
	case t.Integer != nil:
		return fmt.Sprintf("INT(%d,%t)", t.Integer.BitWidth, t.Integer.IsSigned)
	case t.Unknown != nil:
		return "UNKNOWN"
	case t.JSON != nil:
		return "JSON"
	case t.BSON != nil:
		return "BSON"
	case t.UUID != nil:
		return "UUID"
	case t.Float16 != nil:
		return "FLOAT16"
	default:
		return ""
	}
}
