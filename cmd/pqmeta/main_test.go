package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/google/uuid"
	pqgzip "github.com/parquet-go/parquet-go/compress/gzip"
	pqsnappy "github.com/parquet-go/parquet-go/compress/snappy"
	"github.com/parquet-go/parquet-go/compress/uncompressed"
	pqzstd "github.com/parquet-go/parquet-go/compress/zstd"
	"github.com/parquet-go/parquet-go/encoding/thrift"
	pqformat "github.com/parquet-go/parquet-go/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"kaitai_parquet_meta/internal/format"
)

func ptr[T any](v T) *T { return &v }

var testUUID = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

type testColumn struct {
	elem  format.SchemaElement
	codec format.CompressionCodec
	comp  interface {
		Encode(dst, src []byte) ([]byte, error)
	}
	nulls int
	stats *format.Statistics
}

// writeTestFile writes a single row group file of 10 rows where every column
// chunk is one data page.
func writeTestFile(t *testing.T) string {
	t.Helper()

	uid := format.SchemaElement{
		Name: "uid", Type: ptr(format.FixedLenByteArray), TypeLength: ptr(int32(16)),
		RepetitionType: ptr(format.Required), LogicalType: &format.LogicalType{UUID: &format.Empty{}},
	}
	price := format.SchemaElement{
		Name: "price", Type: ptr(format.FixedLenByteArray), TypeLength: ptr(int32(2)),
		RepetitionType: ptr(format.Optional),
		LogicalType:    &format.LogicalType{Decimal: &format.DecimalType{Precision: 4, Scale: 2}},
	}
	columns := []testColumn{
		{
			elem:  format.SchemaElement{Name: "id", Type: ptr(format.Int32), RepetitionType: ptr(format.Required)},
			codec: format.Snappy,
			comp:  new(pqsnappy.Codec),
			stats: &format.Statistics{
				NullCount: ptr(int64(0)),
				MinValue:  binary.LittleEndian.AppendUint32(nil, 1),
				MaxValue:  binary.LittleEndian.AppendUint32(nil, 10),
			},
		},
		{
			elem: format.SchemaElement{
				Name: "name", Type: ptr(format.ByteArray), RepetitionType: ptr(format.Optional),
				LogicalType: &format.LogicalType{UTF8: &format.Empty{}},
			},
			codec: format.Zstd,
			comp:  new(pqzstd.Codec),
			nulls: 2,
			stats: &format.Statistics{NullCount: ptr(int64(2)), MinValue: []byte("alice"), MaxValue: []byte("zoe")},
		},
		{elem: uid, codec: format.Gzip, comp: &pqgzip.Codec{Level: 6}, stats: &format.Statistics{MinValue: testUUID[:], MaxValue: testUUID[:]}},
		{elem: price, codec: format.Uncompressed, comp: new(uncompressed.Codec), stats: &format.Statistics{MinValue: []byte{0xff, 0x6a}, MaxValue: []byte{0x01, 0xf4}}},
	}

	meta := &format.FileMetaData{
		Version:   2,
		Schema:    []format.SchemaElement{{Name: "schema", NumChildren: ptr(int32(len(columns)))}},
		NumRows:   10,
		CreatedBy: ptr("pqmeta test"),
	}
	var file bytes.Buffer
	file.WriteString("PAR1")
	rg := format.RowGroup{NumRows: 10}
	for _, c := range columns {
		meta.Schema = append(meta.Schema, c.elem)

		raw := bytes.Repeat([]byte{0x5a}, 80)
		if *c.elem.RepetitionType == format.Optional {
			// hybrid runs at bit width 1: 10-nulls ones, then nulls zeros
			lv := append(binary.AppendUvarint(nil, uint64(10-c.nulls)<<1), 1)
			if c.nulls > 0 {
				lv = append(binary.AppendUvarint(lv, uint64(c.nulls)<<1), 0)
			}
			raw = append(binary.LittleEndian.AppendUint32(nil, uint32(len(lv))), append(lv, raw...)...)
		}
		comp, err := c.comp.Encode(nil, raw)
		require.NoError(t, err)
		hdr, err := thrift.Marshal(new(thrift.CompactProtocol), &pqformat.PageHeader{
			Type: pqformat.DataPage, UncompressedPageSize: int32(len(raw)), CompressedPageSize: int32(len(comp)),
			DataPageHeader: &pqformat.DataPageHeader{
				NumValues: 10, Encoding: pqformat.Plain,
				DefinitionLevelEncoding: pqformat.RLE, RepetitionLevelEncoding: pqformat.RLE,
			},
		})
		require.NoError(t, err)

		off := int64(file.Len())
		file.Write(hdr)
		file.Write(comp)
		cm := &format.ColumnMetaData{
			Type: *c.elem.Type, Encodings: []format.Encoding{format.Plain, format.RLE},
			PathInSchema: []string{c.elem.Name}, Codec: c.codec, NumValues: 10,
			TotalUncompressedSize: int64(len(hdr) + len(raw)), TotalCompressedSize: int64(len(hdr) + len(comp)),
			DataPageOffset: off, Statistics: c.stats,
		}
		rg.Columns = append(rg.Columns, format.ColumnChunk{FileOffset: off, MetaData: cm})
		rg.TotalByteSize += cm.TotalUncompressedSize
	}
	meta.RowGroups = []format.RowGroup{rg}

	footer := format.EncodeFileMetaData(meta)
	file.Write(footer)
	file.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(footer))))
	file.WriteString("PAR1")

	path := filepath.Join(t.TempDir(), "test.parquet")
	require.NoError(t, os.WriteFile(path, file.Bytes(), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	c := &cli{out: &out, errOut: &errOut, logger: log.NewNopLogger()}
	_, err := newApp(c).Parse(args)
	return out.String(), err
}

func TestSchemaJSON(t *testing.T) {
	path := writeTestFile(t)
	out, err := run(t, "--format=json", "schema", path)
	require.NoError(t, err)

	var v schemaView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "schema", v.Name)
	assert.Equal(t, int64(10), v.NumRows)
	assert.Equal(t, "pqmeta test", v.CreatedBy)
	require.Len(t, v.Columns, 4)
	assert.Equal(t, "uid", v.Columns[2].Path)
	assert.Equal(t, 16, v.Columns[2].TypeLength)
	assert.Equal(t, "UUID", v.Columns[2].LogicalType)
	assert.Equal(t, "UNSIGNED", v.Columns[1].SortOrder)
	assert.Equal(t, int16(1), v.Columns[1].MaxDefinition)
}

func TestRowGroupsYAML(t *testing.T) {
	path := writeTestFile(t)
	out, err := run(t, "--format=yaml", "rowgroups", path)
	require.NoError(t, err)

	var v rowGroupsView
	require.NoError(t, yaml.Unmarshal([]byte(out), &v))
	require.Len(t, v, 1)
	assert.Equal(t, int64(10), v[0].NumRows)
	require.Len(t, v[0].Chunks, 4)
	assert.Equal(t, "ZSTD", v[0].Chunks[1].Codec)
	assert.Equal(t, []string{"PLAIN", "RLE"}, v[0].Chunks[1].Encodings)
	assert.Equal(t, v[0].TotalByteSize, v[0].DeclaredTotalByteSize)
}

func TestStatsTable(t *testing.T) {
	path := writeTestFile(t)
	out, err := run(t, "--no-color", "stats", path)
	require.NoError(t, err)

	assert.Contains(t, out, `"alice"`)
	assert.Contains(t, out, `"zoe"`)
	assert.Contains(t, out, testUUID.String())
	assert.Contains(t, out, "-1.50")
	assert.Contains(t, out, "5.00")
}

func TestStatsFilters(t *testing.T) {
	path := writeTestFile(t)
	out, err := run(t, "--format=json", "stats", "--column=name", "--row-group=0", path)
	require.NoError(t, err)

	var v statsViews
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.Len(t, v, 1)
	assert.True(t, v[0].Set)
	assert.Equal(t, `"alice"`, v[0].Min)
	require.NotNil(t, v[0].NullCount)
	assert.Equal(t, int64(2), *v[0].NullCount)
	assert.Nil(t, v[0].DistinctCount)

	_, err = run(t, "stats", "--column=nope", path)
	assert.Error(t, err)
	_, err = run(t, "stats", "--row-group=3", path)
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	path := writeTestFile(t)
	out, err := run(t, "--no-color", "verify", "--parallelism=2", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "re-encodes identically")
	assert.NotContains(t, out, "problems")

	out, err = run(t, "--format=json", "verify", path)
	require.NoError(t, err)
	var v verifyView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.Len(t, v.Chunks, 4)
	require.NotNil(t, v.Chunks[1].Nulls)
	assert.Equal(t, int64(2), *v.Chunks[1].Nulls)
	require.NotNil(t, v.Footer)
	assert.True(t, v.Footer.Identical)
	assert.Equal(t, v.Footer.Bytes, v.Footer.Reencoded)
}

func TestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.parquet")
	require.NoError(t, os.WriteFile(path, []byte("PAR1 not really parquet PAR1"), 0o644))

	_, err := run(t, "schema", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt parquet metadata")
}

func TestScaled(t *testing.T) {
	assert.Equal(t, "-1.50", scaled(twosComplement([]byte{0xff, 0x6a}), 2))
	assert.Equal(t, "0.05", scaled(big.NewInt(5), 2))
	assert.Equal(t, "-0.005", scaled(big.NewInt(-5), 3))
	assert.Equal(t, "1234", scaled(big.NewInt(1234), 0))
	assert.Equal(t, "0", twosComplement(nil).String())
}
