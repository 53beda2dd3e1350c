// Package codec maps parquet compression codecs onto their decompressors.
package codec

import (
	"bytes"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"

	"kaitai_parquet_meta/internal/format"
)

// ErrUnsupported is returned for codecs this package cannot decode: LZO and
// the Hadoop framed LZ4.
var ErrUnsupported = errors.New("unsupported compression codec")

// Supported reports whether Decompress can handle c.
func Supported(c format.CompressionCodec) bool {
	switch c {
	case format.Uncompressed, format.Snappy, format.Gzip, format.Brotli, format.Zstd, format.LZ4Raw:
		return true
	default:
		return false
	}
}

// MaxPageSize bounds the decompressed size of a single page.
const MaxPageSize = 1 << 30

// maxRatio is the best compression ratio a snappy or LZ4 block can reach,
// rounded up. It bounds what a block codec can produce from len(src) bytes.
const maxRatio = 255

// Decompress returns the page payload src decoded with c. uncompressedSize is
// the size declared in the page header. Output beyond it is an error, and it
// is required for LZ4_RAW, which does not record it. The declared size only
// caps allocations; buffers grow as data is actually produced.
func Decompress(c format.CompressionCodec, src []byte, uncompressedSize int) ([]byte, error) {
	if uncompressedSize < 0 {
		return nil, errors.Errorf("negative uncompressed size %d", uncompressedSize)
	}
	if uncompressedSize > MaxPageSize {
		return nil, errors.Errorf("uncompressed size %d exceeds %d", uncompressedSize, MaxPageSize)
	}
	bound := min(uncompressedSize, maxRatio*len(src)+64)
	switch c {
	case format.Uncompressed:
		return src, nil
	case format.Snappy:
		n, err := snappy.DecodedLen(src)
		if err != nil {
			return nil, errors.Wrap(err, "snappy")
		}
		if n > bound {
			return nil, errors.Errorf("snappy: block declares %d bytes, at most %d expected", n, bound)
		}
		out, err := snappy.Decode(make([]byte, n), src)
		return out, errors.Wrap(err, "snappy")
	case format.Gzip:
		zr, err := gzip.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer zr.Close()
		return readAll(zr, uncompressedSize, bound, "gzip")
	case format.Brotli:
		return readAll(brotli.NewReader(bytes.NewReader(src)), uncompressedSize, bound, "brotli")
	case format.Zstd:
		var h zstd.Header
		if err := h.Decode(src); err != nil {
			return nil, errors.Wrap(err, "zstd")
		}
		if h.HasFCS && h.FrameContentSize > uint64(uncompressedSize) {
			return nil, errors.Errorf("zstd: frame declares %d bytes, at most %d expected", h.FrameContentSize, uncompressedSize)
		}
		zd, err := getZstdDecoder()
		if err != nil {
			return nil, errors.Wrap(err, "zstd")
		}
		// DecodeAll is safe for concurrent use on a shared decoder
		out, err := zd.DecodeAll(src, make([]byte, 0, bound))
		if err != nil {
			return nil, errors.Wrap(err, "zstd")
		}
		if len(out) > uncompressedSize {
			return nil, errors.Errorf("zstd: output exceeds %d bytes", uncompressedSize)
		}
		return out, nil
	case format.LZ4Raw:
		out := make([]byte, bound)
		n, err := lz4.UncompressBlock(src, out)
		if err != nil {
			return nil, errors.Wrap(err, "lz4_raw")
		}
		return out[:n], nil
	default:
		return nil, errors.Wrapf(ErrUnsupported, "%s", c)
	}
}

// readAll drains r, failing once it yields more than limit bytes. hint sizes
// the initial buffer.
func readAll(r io.Reader, limit, hint int, name string) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, hint))
	n, err := io.Copy(buf, io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	if n > int64(limit) {
		return nil, errors.Errorf("%s: output exceeds %d bytes", name, limit)
	}
	return buf.Bytes(), nil
}

var getZstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	// a concurrency of 0 uses GOMAXPROCS workers
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0), zstd.WithDecoderMaxMemory(MaxPageSize))
})
