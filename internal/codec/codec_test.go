package codec

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/klauspost/compress/snappy"
	pqbrotli "github.com/parquet-go/parquet-go/compress/brotli"
	pqgzip "github.com/parquet-go/parquet-go/compress/gzip"
	pqlz4 "github.com/parquet-go/parquet-go/compress/lz4"
	pqsnappy "github.com/parquet-go/parquet-go/compress/snappy"
	pqzstd "github.com/parquet-go/parquet-go/compress/zstd"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaitai_parquet_meta/internal/format"
)

type encoder interface {
	Encode(dst, src []byte) ([]byte, error)
}

// pages are compressed with parquet-go's codecs, the way its writer does.
var encoders = map[format.CompressionCodec]encoder{
	format.Snappy: new(pqsnappy.Codec),
	format.Gzip:   &pqgzip.Codec{Level: 6},
	format.Brotli: new(pqbrotli.Codec),
	format.Zstd:   new(pqzstd.Codec),
	format.LZ4Raw: new(pqlz4.Codec),
}

func TestDecompressParquetGoPages(t *testing.T) {
	payload := bytes.Repeat([]byte("row group metadata "), 200)

	for c, enc := range encoders {
		t.Run(c.String(), func(t *testing.T) {
			require.True(t, Supported(c))
			compressed, err := enc.Encode(nil, payload)
			require.NoError(t, err)
			assert.Less(t, len(compressed), len(payload))

			got, err := Decompress(c, compressed, len(payload))
			require.NoError(t, err)
			assert.Equal(t, payload, got)

			// one byte short of the real size
			_, err = Decompress(c, compressed, len(payload)-1)
			assert.Error(t, err)
		})
	}

	got, err := Decompress(format.Uncompressed, payload, len(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDeclaredSizeDoesNotDriveAllocation(t *testing.T) {
	payload := []byte("tiny page")
	for c, enc := range encoders {
		t.Run(c.String(), func(t *testing.T) {
			compressed, err := enc.Encode(nil, payload)
			require.NoError(t, err)

			got, err := Decompress(c, compressed, MaxPageSize)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
			assert.Less(t, cap(got), 1<<20)

			_, err = Decompress(c, compressed, math.MaxInt32)
			assert.Error(t, err)
		})
	}
}

func TestSnappyLengthBeyondExpansion(t *testing.T) {
	// a block header claiming 1 GiB followed by a single literal byte
	src := append(binary.AppendUvarint(nil, 1<<30), 0x00, 'x')
	_, err := Decompress(format.Snappy, src, MaxPageSize)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block declares")
}

func TestSnappyBlockFormat(t *testing.T) {
	// parquet stores raw snappy blocks, not the framed stream format
	got, err := Decompress(format.Snappy, snappy.Encode(nil, []byte("abc")), 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestUnsupportedCodecs(t *testing.T) {
	for _, c := range []format.CompressionCodec{format.LZO, format.LZ4, format.CompressionCodec(99)} {
		assert.False(t, Supported(c))
		_, err := Decompress(c, []byte{1, 2, 3}, 3)
		assert.True(t, errors.Is(err, ErrUnsupported), c.String())
	}
}

func TestCorruptPayload(t *testing.T) {
	garbage := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x11}
	for _, c := range []format.CompressionCodec{format.Snappy, format.Gzip, format.Zstd} {
		_, err := Decompress(c, garbage, 64)
		assert.Error(t, err, c.String())
	}

	_, err := Decompress(format.Snappy, nil, -1)
	assert.Error(t, err)
}
