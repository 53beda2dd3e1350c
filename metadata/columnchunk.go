package metadata

import (
	"kaitai_parquet_meta/internal/format"
)

// ColumnChunkMetaData describes one column of one row group: where its pages
// live in the file, how they are encoded and what the writer recorded about
// their values.
type ColumnChunkMetaData struct {
	index int
	col   *ColumnDescriptor
	chunk *format.ColumnChunk
	meta  *format.ColumnMetaData
	stats Statistics
}

// newColumnChunk expects raw to have passed validateColumnChunk.
func newColumnChunk(i int, col *ColumnDescriptor, raw *format.ColumnChunk) *ColumnChunkMetaData {
	cc := &ColumnChunkMetaData{
		index: i,
		col:   col,
		chunk: raw,
		meta:  raw.MetaData,
	}
	if cc.StatsSet() {
		cc.stats, _ = newStatistics(col, raw.MetaData.Statistics)
	}
	return cc
}

func (c *ColumnChunkMetaData) ColumnIndex() int { return c.index }

func (c *ColumnChunkMetaData) Descriptor() *ColumnDescriptor { return c.col }

func (c *ColumnChunkMetaData) PhysicalType() Type { return c.meta.Type }

func (c *ColumnChunkMetaData) PathInSchema() []string {
	return append([]string(nil), c.meta.PathInSchema...)
}

// FilePath is set when the chunk lives in a file other than the footer's.
func (c *ColumnChunkMetaData) FilePath() (string, bool) {
	if c.chunk.FilePath == nil {
		return "", false
	}
	return *c.chunk.FilePath, true
}

// FileOffset is the deprecated column chunk file_offset as written.
func (c *ColumnChunkMetaData) FileOffset() int64 { return c.chunk.FileOffset }

func (c *ColumnChunkMetaData) DataPageOffset() int64 { return c.meta.DataPageOffset }

func (c *ColumnChunkMetaData) DictionaryPageOffset() (int64, bool) {
	if c.meta.DictionaryPageOffset == nil {
		return 0, false
	}
	return *c.meta.DictionaryPageOffset, true
}

func (c *ColumnChunkMetaData) IndexPageOffset() (int64, bool) {
	if c.meta.IndexPageOffset == nil {
		return 0, false
	}
	return *c.meta.IndexPageOffset, true
}

// HasDictionaryPage reports whether the chunk starts with a dictionary page.
// Some writers leave dictionary_page_offset at zero when there is none.
func (c *ColumnChunkMetaData) HasDictionaryPage() bool {
	off, ok := c.DictionaryPageOffset()
	return ok && off > 0
}

// ByteRange returns the chunk's first byte and its compressed length.
func (c *ColumnChunkMetaData) ByteRange() (offset, length int64) {
	return chunkRange(c.meta)
}

func chunkRange(m *format.ColumnMetaData) (offset, length int64) {
	offset = m.DataPageOffset
	if d := m.DictionaryPageOffset; d != nil && *d > 0 && *d < offset {
		offset = *d
	}
	return offset, m.TotalCompressedSize
}

func (c *ColumnChunkMetaData) TotalCompressedSize() int64 { return c.meta.TotalCompressedSize }

func (c *ColumnChunkMetaData) TotalUncompressedSize() int64 { return c.meta.TotalUncompressedSize }

// NumValues counts values including nulls.
func (c *ColumnChunkMetaData) NumValues() int64 { return c.meta.NumValues }

func (c *ColumnChunkMetaData) Compression() CompressionCodec { return c.meta.Codec }

// Encodings returns the encodings used by the chunk's pages in footer order.
func (c *ColumnChunkMetaData) Encodings() []Encoding {
	return append([]Encoding(nil), c.meta.Encodings...)
}

func (c *ColumnChunkMetaData) EncodingStats() []PageEncodingStats {
	return append([]PageEncodingStats(nil), c.meta.EncodingStats...)
}

func (c *ColumnChunkMetaData) KeyValueMetadata() []KeyValue {
	return append([]KeyValue(nil), c.meta.KeyValueMetadata...)
}

func (c *ColumnChunkMetaData) BloomFilterLocation() (Location, bool) {
	if c.meta.BloomFilterOffset == nil {
		return Location{}, false
	}
	loc := Location{Offset: *c.meta.BloomFilterOffset, Length: -1}
	if c.meta.BloomFilterLength != nil {
		loc.Length = int64(*c.meta.BloomFilterLength)
	}
	return loc, true
}

func (c *ColumnChunkMetaData) OffsetIndexLocation() (Location, bool) {
	if c.chunk.OffsetIndexOffset == nil || c.chunk.OffsetIndexLength == nil {
		return Location{}, false
	}
	return Location{Offset: *c.chunk.OffsetIndexOffset, Length: int64(*c.chunk.OffsetIndexLength)}, true
}

func (c *ColumnChunkMetaData) ColumnIndexLocation() (Location, bool) {
	if c.chunk.ColumnIndexOffset == nil || c.chunk.ColumnIndexLength == nil {
		return Location{}, false
	}
	return Location{Offset: *c.chunk.ColumnIndexOffset, Length: int64(*c.chunk.ColumnIndexLength)}, true
}

// StatsSet reports whether usable statistics were written for the chunk.
// Statistics of columns without a defined sort order (INT96) are ignored.
// Check it before reading statistics; absent is not the same as zero.
func (c *ColumnChunkMetaData) StatsSet() bool {
	return c.meta.Statistics != nil && c.col.SortOrder() != SortUnknown
}

// Statistics returns the chunk statistics, or false when none were written.
func (c *ColumnChunkMetaData) Statistics() (Statistics, bool) {
	if c.stats == nil {
		return nil, false
	}
	return c.stats, true
}
