package metadata

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"kaitai_parquet_meta/internal/format"
)

func ptr[T any](v T) *T { return &v }

func leaf(name string, typ format.Type, rep format.FieldRepetitionType) format.SchemaElement {
	return format.SchemaElement{Name: name, Type: ptr(typ), RepetitionType: ptr(rep)}
}

func group(name string, rep format.FieldRepetitionType, children int32) format.SchemaElement {
	return format.SchemaElement{Name: name, RepetitionType: ptr(rep), NumChildren: ptr(children)}
}

func le32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

func le64(v uint64) []byte { return binary.LittleEndian.AppendUint64(nil, v) }

// threeColumnFooter is one row group of 1000 rows over (id int32, score
// double, name string), 40000 bytes uncompressed. Column data occupies
// [4, 29004).
func threeColumnFooter() *format.FileMetaData {
	name := leaf("name", format.ByteArray, format.Optional)
	name.LogicalType = &format.LogicalType{UTF8: &format.Empty{}}
	name.ConvertedType = ptr(format.UTF8)

	return &format.FileMetaData{
		Version: 2,
		Schema: []format.SchemaElement{
			{Name: "schema", NumChildren: ptr(int32(3))},
			leaf("id", format.Int32, format.Required),
			leaf("score", format.Double, format.Optional),
			name,
		},
		NumRows: 1000,
		RowGroups: []format.RowGroup{{
			Columns: []format.ColumnChunk{
				{FileOffset: 4, MetaData: &format.ColumnMetaData{
					Type: format.Int32, Encodings: []format.Encoding{format.Plain, format.RLE},
					PathInSchema: []string{"id"}, Codec: format.Snappy, NumValues: 1000,
					TotalUncompressedSize: 10000, TotalCompressedSize: 8000, DataPageOffset: 4,
					Statistics: &format.Statistics{NullCount: ptr(int64(0)), MinValue: le32(1), MaxValue: le32(1000)},
				}},
				{FileOffset: 8004, MetaData: &format.ColumnMetaData{
					Type: format.Double, Encodings: []format.Encoding{format.Plain},
					PathInSchema: []string{"score"}, Codec: format.Zstd, NumValues: 1000,
					TotalUncompressedSize: 20000, TotalCompressedSize: 15000, DataPageOffset: 8004,
				}},
				{FileOffset: 23004, MetaData: &format.ColumnMetaData{
					Type: format.ByteArray, Encodings: []format.Encoding{format.RLEDictionary, format.Plain},
					PathInSchema: []string{"name"}, Codec: format.Gzip, NumValues: 1000,
					TotalUncompressedSize: 10000, TotalCompressedSize: 6000, DataPageOffset: 23100,
					DictionaryPageOffset: ptr(int64(23004)),
					Statistics:           &format.Statistics{NullCount: ptr(int64(12)), MinValue: []byte{0x7f}, MaxValue: []byte{0xff}},
				}},
			},
			TotalByteSize: 40000,
			NumRows:       1000,
		}},
		CreatedBy: ptr("kaitai_parquet_meta test"),
	}
}

func parseFooter(t *testing.T, meta *format.FileMetaData, opts ...Option) *FileMetaData {
	t.Helper()
	md, err := Parse(format.EncodeFileMetaData(meta), opts...)
	require.NoError(t, err)
	return md
}

// parquetFile frames footer as a complete file with dataLen bytes of column
// data after the leading magic.
func parquetFile(footer []byte, dataLen int, tailMagic string) []byte {
	var buf bytes.Buffer
	buf.WriteString("PAR1")
	buf.Write(make([]byte, dataLen))
	buf.Write(footer)
	buf.Write(le32(uint32(len(footer))))
	buf.WriteString(tailMagic)
	return buf.Bytes()
}
