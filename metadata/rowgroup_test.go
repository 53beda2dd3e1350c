package metadata

import (
	"bytes"
	"sync"
	"testing"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaitai_parquet_meta/internal/format"
)

func TestThreeColumnRowGroup(t *testing.T) {
	md := parseFooter(t, threeColumnFooter())

	assert.Equal(t, int32(2), md.Version())
	assert.Equal(t, int64(1000), md.NumRows())
	assert.Equal(t, 1, md.NumRowGroups())
	createdBy, ok := md.CreatedBy()
	require.True(t, ok)
	assert.Equal(t, "kaitai_parquet_meta test", createdBy)

	rg, err := md.RowGroup(0)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), rg.NumRows())
	assert.Equal(t, 3, rg.NumColumns())
	assert.Equal(t, int64(40000), rg.TotalByteSize())
	assert.Equal(t, int64(40000), rg.DeclaredTotalByteSize())
	assert.Equal(t, int64(29000), rg.TotalCompressedSize())
	assert.Equal(t, int64(4), rg.FileOffset())
	_, ok = rg.Ordinal()
	assert.False(t, ok)

	cc, err := rg.ColumnChunk(2)
	require.NoError(t, err)
	assert.Equal(t, ByteArray, cc.PhysicalType())
	assert.Equal(t, []string{"name"}, cc.PathInSchema())
	assert.Equal(t, format.Gzip, cc.Compression())
	assert.Equal(t, []Encoding{format.RLEDictionary, format.Plain}, cc.Encodings())
	assert.True(t, cc.HasDictionaryPage())
	off, n := cc.ByteRange()
	assert.Equal(t, int64(23004), off)
	assert.Equal(t, int64(6000), n)
	assert.Equal(t, SortUnsigned, cc.Descriptor().SortOrder())

	require.True(t, cc.StatsSet())
	st, ok := cc.Statistics()
	require.True(t, ok)
	bs, err := StatisticsAs[*ByteArrayStatistics](st)
	require.NoError(t, err)
	lo, ok := bs.Min()
	require.True(t, ok)
	hi, _ := bs.Max()
	assert.Equal(t, []byte{0x7f}, lo)
	assert.Equal(t, []byte{0xff}, hi)
	assert.Negative(t, bs.Compare(lo, hi))
	nulls, ok := bs.NullCount()
	assert.True(t, ok)
	assert.Equal(t, int64(12), nulls)
	_, ok = bs.DistinctCount()
	assert.False(t, ok)

	id, err := rg.ColumnChunk(0)
	require.NoError(t, err)
	st, ok = id.Statistics()
	require.True(t, ok)
	is, err := StatisticsAs[*Int32Statistics](st)
	require.NoError(t, err)
	v, ok := is.Min()
	assert.True(t, ok)
	assert.Equal(t, int32(1), v)
	v, _ = is.Max()
	assert.Equal(t, int32(1000), v)
	assert.Equal(t, le32(1000), is.EncodeMax())
	assert.False(t, id.HasDictionaryPage())
}

func TestIndexedGettersAreBoundsChecked(t *testing.T) {
	md := parseFooter(t, threeColumnFooter())

	for _, i := range []int{-1, 1} {
		_, err := md.RowGroup(i)
		assert.True(t, errors.Is(err, ErrOutOfRange), "row group %d", i)
	}

	rg, err := md.RowGroup(0)
	require.NoError(t, err)
	for _, i := range []int{-1, 3, 100} {
		_, err := rg.ColumnChunk(i)
		assert.True(t, errors.Is(err, ErrOutOfRange), "column chunk %d", i)
	}
	_, err = md.Schema().Column(3)
	assert.True(t, errors.Is(err, ErrOutOfRange))

	// a failed lookup leaves valid indices usable
	_, err = rg.ColumnChunk(2)
	assert.NoError(t, err)
}

func TestAbsentStatisticsAreNotZero(t *testing.T) {
	meta := threeColumnFooter()
	id := meta.RowGroups[0].Columns[0].MetaData
	// null count only, no bounds
	id.Statistics = &format.Statistics{NullCount: ptr(int64(0))}
	md := parseFooter(t, meta)
	rg, err := md.RowGroup(0)
	require.NoError(t, err)

	score, err := rg.ColumnChunk(1)
	require.NoError(t, err)
	assert.False(t, score.StatsSet())
	st, ok := score.Statistics()
	assert.False(t, ok)
	assert.Nil(t, st)

	cc, err := rg.ColumnChunk(0)
	require.NoError(t, err)
	require.True(t, cc.StatsSet())
	st, ok = cc.Statistics()
	require.True(t, ok)
	assert.False(t, st.HasMinMax())
	assert.Nil(t, st.EncodeMin())
	assert.Nil(t, st.EncodeMax())
	is, err := StatisticsAs[*Int32Statistics](st)
	require.NoError(t, err)
	_, ok = is.Min()
	assert.False(t, ok)
	nulls, ok := st.NullCount()
	assert.True(t, ok)
	assert.Zero(t, nulls)

	_, err = StatisticsAs[*Int32Statistics](nil)
	assert.True(t, errors.Is(err, ErrTypeMismatch))
}

func TestStatisticsTypeMismatch(t *testing.T) {
	md := parseFooter(t, threeColumnFooter())
	rg, err := md.RowGroup(0)
	require.NoError(t, err)
	cc, err := rg.ColumnChunk(0)
	require.NoError(t, err)
	st, ok := cc.Statistics()
	require.True(t, ok)

	_, err = StatisticsAs[*Int64Statistics](st)
	assert.True(t, errors.Is(err, ErrTypeMismatch))
	_, err = StatisticsAs[*ByteArrayStatistics](st)
	assert.True(t, errors.Is(err, ErrTypeMismatch))
}

func TestChunkCountMustMatchSchema(t *testing.T) {
	meta := threeColumnFooter()
	rg := &meta.RowGroups[0]
	rg.Columns = append(rg.Columns, rg.Columns[0], rg.Columns[1])
	require.Len(t, rg.Columns, 5)

	_, err := Parse(format.EncodeFileMetaData(meta))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorruptMetadata))

	_, err = NewRowGroupMetaData(rg, mustSchema(t, meta.Schema))
	assert.True(t, errors.Is(err, ErrCorruptMetadata))
}

func TestCorruptRowGroups(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*format.FileMetaData)
	}{
		{"negative rows", func(m *format.FileMetaData) { m.RowGroups[0].NumRows = -1 }},
		{"file rows disagree", func(m *format.FileMetaData) { m.NumRows = 999 }},
		{"missing meta_data", func(m *format.FileMetaData) { m.RowGroups[0].Columns[1].MetaData = nil }},
		{"type disagrees with schema", func(m *format.FileMetaData) { m.RowGroups[0].Columns[1].MetaData.Type = format.Float }},
		{"path disagrees with schema", func(m *format.FileMetaData) {
			m.RowGroups[0].Columns[1].MetaData.PathInSchema = []string{"other"}
		}},
		{"negative size", func(m *format.FileMetaData) { m.RowGroups[0].Columns[0].MetaData.TotalCompressedSize = -5 }},
		{"sorting column out of range", func(m *format.FileMetaData) {
			m.RowGroups[0].SortingColumns = []format.SortingColumn{{ColumnIdx: 3}}
		}},
		{"inverted int32 bounds", func(m *format.FileMetaData) {
			st := m.RowGroups[0].Columns[0].MetaData.Statistics
			st.MinValue, st.MaxValue = le32(1000), le32(1)
		}},
		{"short int32 bound", func(m *format.FileMetaData) {
			m.RowGroups[0].Columns[0].MetaData.Statistics.MinValue = []byte{1, 0}
		}},
		{"negative null count", func(m *format.FileMetaData) {
			m.RowGroups[0].Columns[2].MetaData.Statistics.NullCount = ptr(int64(-1))
		}},
		{"negative distinct count", func(m *format.FileMetaData) {
			m.RowGroups[0].Columns[2].MetaData.Statistics.DistinctCount = ptr(int64(-3))
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			meta := threeColumnFooter()
			tc.mutate(meta)
			md, err := Parse(format.EncodeFileMetaData(meta))
			require.Error(t, err)
			assert.Nil(t, md)
			assert.True(t, errors.Is(err, ErrCorruptMetadata), err.Error())
		})
	}
}

func TestByteArrayBoundsUseUnsignedOrder(t *testing.T) {
	assert.Positive(t, CompareByteArray([]byte{0xff}, []byte{0x7f}))
	assert.Negative(t, CompareByteArray([]byte{0x7f}, []byte{0x80}))
	assert.Negative(t, CompareByteArray([]byte("ab"), []byte("abc")))
	assert.Zero(t, CompareByteArray(nil, []byte{}))

	meta := threeColumnFooter()
	st := meta.RowGroups[0].Columns[2].MetaData.Statistics
	st.MinValue, st.MaxValue = []byte{0xff}, []byte{0x7f}
	_, err := Parse(format.EncodeFileMetaData(meta))
	assert.True(t, errors.Is(err, ErrCorruptMetadata), "signed order would accept [0xff] <= [0x7f]")
}

func TestDecimalByteArraySkipsOrderCheck(t *testing.T) {
	meta := threeColumnFooter()
	meta.Schema[3] = leaf("name", format.FixedLenByteArray, format.Optional)
	meta.Schema[3].TypeLength = ptr(int32(2))
	meta.Schema[3].LogicalType = &format.LogicalType{Decimal: &format.DecimalType{Precision: 4, Scale: 2}}
	m := meta.RowGroups[0].Columns[2].MetaData
	m.Type = format.FixedLenByteArray
	// -1 and 1 as two's-complement big endian
	m.Statistics.MinValue, m.Statistics.MaxValue = []byte{0xff, 0xff}, []byte{0x00, 0x01}

	md := parseFooter(t, meta)
	rg, err := md.RowGroup(0)
	require.NoError(t, err)
	cc, err := rg.ColumnChunk(2)
	require.NoError(t, err)
	st, ok := cc.Statistics()
	require.True(t, ok)
	assert.True(t, st.HasMinMax())
	assert.Equal(t, FixedLenByteArray, st.PhysicalType())
}

func TestUnsignedIntegerBounds(t *testing.T) {
	meta := threeColumnFooter()
	meta.Schema[1].LogicalType = &format.LogicalType{Integer: &format.IntType{BitWidth: 32, IsSigned: false}}
	st := meta.RowGroups[0].Columns[0].MetaData.Statistics
	st.MinValue, st.MaxValue = le32(1), le32(0xffffffff)

	md := parseFooter(t, meta)
	col, err := md.Schema().Column(0)
	require.NoError(t, err)
	assert.Equal(t, SortUnsigned, col.SortOrder())

	rg, _ := md.RowGroup(0)
	cc, _ := rg.ColumnChunk(0)
	s, _ := cc.Statistics()
	is, err := StatisticsAs[*Int32Statistics](s)
	require.NoError(t, err)
	assert.True(t, is.Unsigned())
	hi, _ := is.Max()
	assert.Equal(t, int32(-1), hi)
	assert.Positive(t, is.Compare(-1, 1))

	// the same bounds are inverted for a signed column
	meta.Schema[1].LogicalType = nil
	_, err = Parse(format.EncodeFileMetaData(meta))
	assert.True(t, errors.Is(err, ErrCorruptMetadata))
}

func TestLegacyBounds(t *testing.T) {
	meta := threeColumnFooter()
	meta.RowGroups[0].Columns[0].MetaData.Statistics = &format.Statistics{Min: le32(5), Max: le32(9)}
	meta.RowGroups[0].Columns[2].MetaData.Statistics = &format.Statistics{Min: []byte("a"), Max: []byte("z")}

	md := parseFooter(t, meta)
	rg, _ := md.RowGroup(0)

	cc, _ := rg.ColumnChunk(0)
	s, ok := cc.Statistics()
	require.True(t, ok)
	is, _ := StatisticsAs[*Int32Statistics](s)
	lo, ok := is.Min()
	assert.True(t, ok)
	assert.Equal(t, int32(5), lo)

	// legacy byte array bounds may have been written with signed bytes
	cc, _ = rg.ColumnChunk(2)
	s, ok = cc.Statistics()
	require.True(t, ok)
	assert.False(t, s.HasMinMax())
}

func TestNaNBoundsAreDropped(t *testing.T) {
	meta := threeColumnFooter()
	nan := le64(0x7ff8000000000001)
	meta.RowGroups[0].Columns[1].MetaData.Statistics = &format.Statistics{
		NullCount: ptr(int64(4)), MinValue: nan, MaxValue: le64(0x4000000000000000),
	}

	md := parseFooter(t, meta)
	rg, _ := md.RowGroup(0)
	cc, _ := rg.ColumnChunk(1)
	s, ok := cc.Statistics()
	require.True(t, ok)
	ds, err := StatisticsAs[*DoubleStatistics](s)
	require.NoError(t, err)
	assert.False(t, ds.HasMinMax())
	_, ok = ds.Max()
	assert.False(t, ok)
	nulls, _ := ds.NullCount()
	assert.Equal(t, int64(4), nulls)
}

func TestInt96StatisticsAreIgnored(t *testing.T) {
	meta := threeColumnFooter()
	meta.Schema[1].Type = ptr(format.Int96)
	m := meta.RowGroups[0].Columns[0].MetaData
	m.Type = format.Int96
	m.Statistics = &format.Statistics{MinValue: make([]byte, 12), MaxValue: make([]byte, 12)}

	md := parseFooter(t, meta)
	rg, _ := md.RowGroup(0)
	cc, _ := rg.ColumnChunk(0)
	assert.False(t, cc.StatsSet())
	_, ok := cc.Statistics()
	assert.False(t, ok)
}

func TestSchemaIsSharedAcrossRowGroups(t *testing.T) {
	meta := threeColumnFooter()
	meta.RowGroups = append(meta.RowGroups, meta.RowGroups[0])
	meta.RowGroups[1].Ordinal = ptr(int16(1))
	meta.NumRows = 2000

	md := parseFooter(t, meta)
	rg0, err := md.RowGroup(0)
	require.NoError(t, err)
	rg1, err := md.RowGroup(1)
	require.NoError(t, err)

	assert.Same(t, md.Schema(), rg0.Schema())
	assert.Same(t, rg0.Schema(), rg1.Schema())
	assert.Same(t, rg1.Schema(), rg1.Schema())
	ord, ok := rg1.Ordinal()
	assert.True(t, ok)
	assert.Equal(t, int16(1), ord)

	a, _ := rg0.ColumnChunk(0)
	b, _ := rg1.ColumnChunk(0)
	assert.NotSame(t, a, b)
	assert.Same(t, a.Descriptor(), b.Descriptor())
}

func TestConcurrentColumnChunkAccess(t *testing.T) {
	md := parseFooter(t, threeColumnFooter())
	rg, err := md.RowGroup(0)
	require.NoError(t, err)

	const workers = 32
	got := make([][3]*ColumnChunkMetaData, workers)
	roots := make([]*GroupNode, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				cc, err := rg.ColumnChunk(i)
				if err != nil {
					return
				}
				got[w][i] = cc
			}
			roots[w] = md.Schema().Root()
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		for i := 0; i < 3; i++ {
			require.NotNil(t, got[w][i])
			assert.Same(t, got[0][i], got[w][i])
		}
		assert.Same(t, roots[0], roots[w])
	}
}

func TestTotalByteSizeMismatch(t *testing.T) {
	meta := threeColumnFooter()
	meta.RowGroups[0].TotalByteSize = 12345

	var logs bytes.Buffer
	md := parseFooter(t, meta, WithLogger(log.NewLogfmtLogger(&logs)))
	rg, _ := md.RowGroup(0)
	assert.Equal(t, int64(40000), rg.TotalByteSize())
	assert.Equal(t, int64(12345), rg.DeclaredTotalByteSize())
	assert.Contains(t, logs.String(), "level=warn")
	assert.Contains(t, logs.String(), "declared=12345")

	_, err := Parse(format.EncodeFileMetaData(meta), WithStrictSizes())
	assert.True(t, errors.Is(err, ErrCorruptMetadata))
}

func TestParseRejectsUndecodableFooter(t *testing.T) {
	footer := format.EncodeFileMetaData(threeColumnFooter())
	_, err := Parse(footer[:len(footer)/2])
	assert.True(t, errors.Is(err, ErrCorruptMetadata))

	_, err = Parse(nil)
	assert.True(t, errors.Is(err, ErrCorruptMetadata))
}

func TestColumnChunkOptionalLocations(t *testing.T) {
	meta := threeColumnFooter()
	cc := &meta.RowGroups[0].Columns[1]
	cc.OffsetIndexOffset, cc.OffsetIndexLength = ptr(int64(30000)), ptr(int32(40))
	cc.MetaData.BloomFilterOffset = ptr(int64(30100))
	cc.MetaData.IndexPageOffset = ptr(int64(8000))

	md := parseFooter(t, meta)
	rg, _ := md.RowGroup(0)
	c, _ := rg.ColumnChunk(1)

	loc, ok := c.OffsetIndexLocation()
	assert.True(t, ok)
	assert.Equal(t, Location{Offset: 30000, Length: 40}, loc)
	_, ok = c.ColumnIndexLocation()
	assert.False(t, ok)
	loc, ok = c.BloomFilterLocation()
	assert.True(t, ok)
	assert.Equal(t, Location{Offset: 30100, Length: -1}, loc)
	off, ok := c.IndexPageOffset()
	assert.True(t, ok)
	assert.Equal(t, int64(8000), off)
	_, ok = c.DictionaryPageOffset()
	assert.False(t, ok)
	_, ok = c.FilePath()
	assert.False(t, ok)
}

func mustSchema(t *testing.T, elements []format.SchemaElement) *SchemaDescriptor {
	t.Helper()
	s, err := NewSchemaDescriptor(elements)
	require.NoError(t, err)
	return s
}

func TestColumnChunkIndexMatchesDescriptor(t *testing.T) {
	md := parseFooter(t, threeColumnFooter())
	rg, err := md.RowGroup(0)
	require.NoError(t, err)

	for _, i := range []int{2, 0, 1, 2, 0} {
		cc, err := rg.ColumnChunk(i)
		require.NoError(t, err)
		assert.Equal(t, i, cc.ColumnIndex())
		assert.Equal(t, i, cc.Descriptor().Index())
		assert.Equal(t, cc.PathInSchema(), cc.Descriptor().Path())
		col, err := md.Schema().Column(i)
		require.NoError(t, err)
		assert.Same(t, col, cc.Descriptor())
	}
}

func TestFixedLenByteArrayBoundsMustMatchTypeLength(t *testing.T) {
	flba := func(minValue, maxValue []byte) *format.FileMetaData {
		meta := threeColumnFooter()
		meta.Schema[3] = leaf("name", format.FixedLenByteArray, format.Optional)
		meta.Schema[3].TypeLength = ptr(int32(2))
		m := meta.RowGroups[0].Columns[2].MetaData
		m.Type = format.FixedLenByteArray
		m.Statistics.MinValue, m.Statistics.MaxValue = minValue, maxValue
		return meta
	}

	parseFooter(t, flba([]byte{0x00, 0x01}, []byte{0x00, 0x02}))

	for _, tc := range []struct {
		name     string
		min, max []byte
	}{
		{"short min", []byte{0x01}, []byte{0x00, 0x02}},
		{"long max", []byte{0x00, 0x01}, []byte{0x00, 0x02, 0x03}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(format.EncodeFileMetaData(flba(tc.min, tc.max)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorruptMetadata), err.Error())
		})
	}
}
