// Package metadata exposes the footer of a parquet file: its schema, row
// groups and column chunks, together with the statistics writers record per
// chunk.
//
// Everything is validated when the footer is parsed. Objects handed out
// afterwards are immutable and safe for concurrent use.
package metadata

import (
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"kaitai_parquet_meta/internal/format"
)

type FileMetaData struct {
	raw       *format.FileMetaData
	schema    *SchemaDescriptor
	rowGroups []*RowGroupMetaData
	footer    []byte
}

// Parse decodes and validates a serialized footer, the bytes between the
// first page data and the trailing length and magic.
func Parse(footer []byte, opts ...Option) (*FileMetaData, error) {
	o := newOptions(append([]Option{withFooterLen(int64(len(footer)))}, opts...))

	raw, err := format.DecodeFileMetaData(footer)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptMetadata, "decode footer: %v", err)
	}
	md, err := newFileMetaData(raw, o)
	if err != nil {
		return nil, err
	}
	md.footer = footer
	level.Debug(o.logger).Log("msg", "parsed footer", "bytes", len(footer),
		"columns", md.schema.NumColumns(), "row_groups", len(md.rowGroups), "rows", raw.NumRows)
	return md, nil
}

// NewFileMetaData validates an already decoded footer.
func NewFileMetaData(raw *format.FileMetaData, opts ...Option) (*FileMetaData, error) {
	return newFileMetaData(raw, newOptions(opts))
}

func newFileMetaData(raw *format.FileMetaData, o *options) (*FileMetaData, error) {
	if err := o.checkFileSize(); err != nil {
		return nil, err
	}
	if raw.NumRows < 0 {
		return nil, corruptf("negative num_rows %d", raw.NumRows)
	}
	schema, err := NewSchemaDescriptor(raw.Schema)
	if err != nil {
		return nil, err
	}

	md := &FileMetaData{
		raw:       raw,
		schema:    schema,
		rowGroups: make([]*RowGroupMetaData, len(raw.RowGroups)),
	}
	var rows int64
	for i := range raw.RowGroups {
		rg, err := newRowGroup(i, &raw.RowGroups[i], schema, o)
		if err != nil {
			return nil, err
		}
		md.rowGroups[i] = rg
		rows += rg.NumRows()
		if rows < 0 {
			return nil, corruptf("row counts overflow at row group %d", i)
		}
	}
	if rows != raw.NumRows {
		return nil, corruptf("file declares %d rows, row groups hold %d", raw.NumRows, rows)
	}
	return md, nil
}

func (md *FileMetaData) Version() int32 { return md.raw.Version }

func (md *FileMetaData) NumRows() int64 { return md.raw.NumRows }

// CreatedBy is the writer's application string, e.g. "parquet-mr version 1.12.3".
func (md *FileMetaData) CreatedBy() (string, bool) {
	if md.raw.CreatedBy == nil {
		return "", false
	}
	return *md.raw.CreatedBy, true
}

func (md *FileMetaData) KeyValueMetadata() []KeyValue {
	return append([]KeyValue(nil), md.raw.KeyValueMetadata...)
}

func (md *FileMetaData) Schema() *SchemaDescriptor { return md.schema }

func (md *FileMetaData) NumColumns() int { return md.schema.NumColumns() }

func (md *FileMetaData) NumRowGroups() int { return len(md.rowGroups) }

func (md *FileMetaData) RowGroup(i int) (*RowGroupMetaData, error) {
	if i < 0 || i >= len(md.rowGroups) {
		return nil, outOfRange("row group", i, len(md.rowGroups))
	}
	return md.rowGroups[i], nil
}

// Size is the serialized footer length, zero when built from decoded structs.
func (md *FileMetaData) Size() int { return len(md.footer) }

// Footer returns the bytes md was parsed from, nil when built from decoded
// structs. The caller must not modify them.
func (md *FileMetaData) Footer() []byte { return md.footer }

// Serialize encodes md as a thrift compact footer. Fields this package does
// not model are not written, so the result can be shorter than Footer.
func (md *FileMetaData) Serialize() []byte { return format.EncodeFileMetaData(md.raw) }
