package metadata

import (
	"slices"
	"sync/atomic"

	"github.com/go-kit/log/level"

	"kaitai_parquet_meta/internal/format"
)

// RowGroupMetaData describes a horizontal partition of the file. It is
// immutable and safe for concurrent use; column chunks are materialized on
// first access and cached.
type RowGroupMetaData struct {
	raw                 *format.RowGroup
	schema              *SchemaDescriptor
	totalByteSize       int64
	totalCompressedSize int64
	chunks              []atomic.Pointer[ColumnChunkMetaData]
}

// NewRowGroupMetaData validates a decoded row group against schema. Any
// inconsistency is reported as ErrCorruptMetadata and no row group is
// returned.
func NewRowGroupMetaData(raw *format.RowGroup, schema *SchemaDescriptor, opts ...Option) (*RowGroupMetaData, error) {
	return newRowGroup(-1, raw, schema, newOptions(opts))
}

func newRowGroup(idx int, raw *format.RowGroup, schema *SchemaDescriptor, o *options) (*RowGroupMetaData, error) {
	if raw == nil {
		return nil, corruptf("row group %d is missing", idx)
	}
	if schema == nil {
		return nil, corruptf("row group %d has no schema", idx)
	}
	if len(raw.Columns) != schema.NumColumns() {
		return nil, corruptf("row group %d has %d column chunks, schema has %d columns", idx, len(raw.Columns), schema.NumColumns())
	}
	if raw.NumRows < 0 {
		return nil, corruptf("row group %d has negative num_rows %d", idx, raw.NumRows)
	}
	if raw.TotalByteSize < 0 {
		return nil, corruptf("row group %d has negative total_byte_size %d", idx, raw.TotalByteSize)
	}
	if raw.TotalCompressedSize != nil && *raw.TotalCompressedSize < 0 {
		return nil, corruptf("row group %d has negative total_compressed_size %d", idx, *raw.TotalCompressedSize)
	}
	for _, sc := range raw.SortingColumns {
		if sc.ColumnIdx < 0 || int(sc.ColumnIdx) >= schema.NumColumns() {
			return nil, corruptf("row group %d sorts by column %d, schema has %d columns", idx, sc.ColumnIdx, schema.NumColumns())
		}
	}

	rg := &RowGroupMetaData{
		raw:    raw,
		schema: schema,
		chunks: make([]atomic.Pointer[ColumnChunkMetaData], len(raw.Columns)),
	}

	dataEnd, sizeKnown := o.dataEnd()
	for i := range raw.Columns {
		col := schema.columns[i]
		if err := validateColumnChunk(&raw.Columns[i], col, dataEnd, sizeKnown); err != nil {
			return nil, err
		}
		m := raw.Columns[i].MetaData
		rg.totalByteSize += m.TotalUncompressedSize
		rg.totalCompressedSize += m.TotalCompressedSize
		if rg.totalByteSize < 0 || rg.totalCompressedSize < 0 {
			return nil, corruptf("row group %d column sizes overflow", idx)
		}
	}

	if rg.totalByteSize != raw.TotalByteSize {
		if o.strictSizes {
			return nil, corruptf("row group %d declares total_byte_size %d, column chunks sum to %d", idx, raw.TotalByteSize, rg.totalByteSize)
		}
		level.Warn(o.logger).Log("msg", "row group total_byte_size does not match column chunks",
			"row_group", idx, "declared", raw.TotalByteSize, "computed", rg.totalByteSize)
	}
	return rg, nil
}

func validateColumnChunk(cc *format.ColumnChunk, col *ColumnDescriptor, dataEnd int64, sizeKnown bool) error {
	path := col.DottedPath()
	m := cc.MetaData
	if m == nil {
		return corruptf("column %q: chunk has no meta_data", path)
	}
	if m.Type != col.PhysicalType() {
		return corruptf("column %q: chunk type %s, schema type %s", path, m.Type, col.PhysicalType())
	}
	if !slices.Equal(m.PathInSchema, col.Path()) {
		return corruptf("column %q: chunk path_in_schema %v does not match", path, m.PathInSchema)
	}
	if m.NumValues < 0 || m.TotalCompressedSize < 0 || m.TotalUncompressedSize < 0 {
		return corruptf("column %q: negative num_values or sizes", path)
	}
	if m.DataPageOffset < 0 {
		return corruptf("column %q: negative data_page_offset %d", path, m.DataPageOffset)
	}

	// chunks stored in other files cannot be checked against this one
	if sizeKnown && cc.FilePath == nil {
		off, n := chunkRange(m)
		if off < 4 || off > dataEnd || n > dataEnd-off {
			return corruptf("column %q: byte range [%d, +%d) outside data region [4, %d)", path, off, n, dataEnd)
		}
	}

	if m.Statistics != nil && col.SortOrder() != SortUnknown {
		if _, err := newStatistics(col, m.Statistics); err != nil {
			return err
		}
	}
	return nil
}

func (rg *RowGroupMetaData) NumColumns() int { return len(rg.chunks) }

func (rg *RowGroupMetaData) NumRows() int64 { return rg.raw.NumRows }

// TotalByteSize is the total uncompressed size of all column data in the row
// group, summed over its column chunks.
func (rg *RowGroupMetaData) TotalByteSize() int64 { return rg.totalByteSize }

// DeclaredTotalByteSize is total_byte_size as the writer recorded it.
func (rg *RowGroupMetaData) DeclaredTotalByteSize() int64 { return rg.raw.TotalByteSize }

// TotalCompressedSize is the on-disk size of all column chunks.
func (rg *RowGroupMetaData) TotalCompressedSize() int64 { return rg.totalCompressedSize }

// Schema returns the file's schema. Every row group of a file returns the same
// pointer.
func (rg *RowGroupMetaData) Schema() *SchemaDescriptor { return rg.schema }

func (rg *RowGroupMetaData) Ordinal() (int16, bool) {
	if rg.raw.Ordinal == nil {
		return 0, false
	}
	return *rg.raw.Ordinal, true
}

// FileOffset is the offset of the first page of the row group. Writers that
// omit it get the start of the first column chunk.
func (rg *RowGroupMetaData) FileOffset() int64 {
	if rg.raw.FileOffset != nil {
		return *rg.raw.FileOffset
	}
	if len(rg.raw.Columns) == 0 {
		return 0
	}
	off, _ := chunkRange(rg.raw.Columns[0].MetaData)
	return off
}

func (rg *RowGroupMetaData) SortingColumns() []SortingColumn {
	return append([]SortingColumn(nil), rg.raw.SortingColumns...)
}

// ColumnChunk returns the metadata of the i-th column chunk. Concurrent first
// calls for the same index may each build one; the first one published is
// returned to everybody.
func (rg *RowGroupMetaData) ColumnChunk(i int) (*ColumnChunkMetaData, error) {
	if i < 0 || i >= len(rg.chunks) {
		return nil, outOfRange("column chunk", i, len(rg.chunks))
	}
	slot := &rg.chunks[i]
	if cc := slot.Load(); cc != nil {
		return cc, nil
	}
	cc := newColumnChunk(i, rg.schema.columns[i], &rg.raw.Columns[i])
	if slot.CompareAndSwap(nil, cc) {
		return cc, nil
	}
	return slot.Load(), nil
}
