package metadata

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaitai_parquet_meta/internal/format"
)

func TestOpen(t *testing.T) {
	footer := format.EncodeFileMetaData(threeColumnFooter())
	file := parquetFile(footer, 29000, "PAR1")

	got, size, err := ReadFooter(bytes.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, footer, got)
	assert.Equal(t, int64(len(file)), size)

	md, err := Open(bytes.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, len(footer), md.Size())
	assert.Equal(t, int64(1000), md.NumRows())
	assert.Equal(t, 3, md.NumColumns())
}

func TestOpenRejectsChunksOutsideFile(t *testing.T) {
	footer := format.EncodeFileMetaData(threeColumnFooter())

	// the name chunk ends at 29004, one byte past the data region
	_, err := Open(bytes.NewReader(parquetFile(footer, 28999, "PAR1")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorruptMetadata))

	// without a file size the same footer is accepted
	_, err = Parse(footer)
	assert.NoError(t, err)

	meta := threeColumnFooter()
	meta.RowGroups[0].Columns[0].MetaData.DataPageOffset = 0
	_, err = Parse(format.EncodeFileMetaData(meta), WithFileSize(1<<20))
	assert.True(t, errors.Is(err, ErrCorruptMetadata), "chunk overlapping the leading magic")

	meta = threeColumnFooter()
	meta.RowGroups[0].Columns[1].MetaData.TotalCompressedSize = 1<<62 + 1
	meta.RowGroups[0].Columns[1].MetaData.DataPageOffset = 1 << 62
	_, err = Parse(format.EncodeFileMetaData(meta), WithFileSize(1<<20))
	assert.True(t, errors.Is(err, ErrCorruptMetadata), "range end overflows")
}

func TestChunksInOtherFilesSkipRangeCheck(t *testing.T) {
	meta := threeColumnFooter()
	cc := &meta.RowGroups[0].Columns[1]
	cc.FilePath = ptr("part-0001.parquet")
	cc.MetaData.DataPageOffset = 1 << 40

	md := parseFooter(t, meta, WithFileSize(1<<20))
	rg, _ := md.RowGroup(0)
	c, _ := rg.ColumnChunk(1)
	p, ok := c.FilePath()
	assert.True(t, ok)
	assert.Equal(t, "part-0001.parquet", p)
}

func TestReadFooterFraming(t *testing.T) {
	footer := format.EncodeFileMetaData(threeColumnFooter())

	for _, tc := range []struct {
		name string
		file []byte
	}{
		{"too small", []byte("PAR1PAR1")},
		{"bad header magic", append([]byte("PAR0"), parquetFile(footer, 0, "PAR1")[4:]...)},
		{"bad footer magic", parquetFile(footer, 0, "PAR2")},
		{"encrypted footer", parquetFile(footer, 0, "PARE")},
		{"footer length past start", func() []byte {
			f := parquetFile(footer, 0, "PAR1")
			copy(f[len(f)-8:], le32(uint32(len(f))))
			return f
		}()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ReadFooter(bytes.NewReader(tc.file))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorruptMetadata), err.Error())
		})
	}

	_, _, err := ReadFooter(bytes.NewReader(parquetFile(footer, 0, "PARE")))
	assert.Contains(t, err.Error(), "encrypted")
}

func TestParseRejectsFileTooSmallForFooter(t *testing.T) {
	footer := format.EncodeFileMetaData(threeColumnFooter())

	for _, size := range []int64{0, 64, int64(len(footer)) + 11} {
		_, err := Parse(footer, WithFileSize(size))
		require.Error(t, err, "file size %d", size)
		assert.True(t, errors.Is(err, ErrCorruptMetadata), "file size %d", size)
	}

	// a footer with no row groups fits in a minimal file
	meta := threeColumnFooter()
	meta.NumRows = 0
	meta.RowGroups = nil
	empty := format.EncodeFileMetaData(meta)
	_, err := Parse(empty, WithFileSize(int64(len(empty))+12))
	assert.NoError(t, err)
}

func TestSerializeReproducesFooter(t *testing.T) {
	footer := format.EncodeFileMetaData(threeColumnFooter())
	md, err := Parse(footer)
	require.NoError(t, err)
	assert.Equal(t, footer, md.Footer())
	assert.Equal(t, footer, md.Serialize())

	md, err = NewFileMetaData(threeColumnFooter())
	require.NoError(t, err)
	assert.Nil(t, md.Footer())
	assert.Zero(t, md.Size())
	assert.Equal(t, footer, md.Serialize())
}
