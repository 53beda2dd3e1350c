package format

import (
	tc "kaitai_parquet_meta/internal/thriftcompact"
)

// EncodeFileMetaData serializes meta with the Thrift Compact protocol.
// Optional fields are written only when set, in field id order.
func EncodeFileMetaData(meta *FileMetaData) []byte {
	var w tc.Writer
	encodeFileMetaData(&w, meta)
	return w.Bytes()
}

func writeI32Field(w *tc.Writer, id int16, v int32) {
	w.WriteFieldBegin(id, tc.TypeI32)
	w.WriteI32(v)
}

func writeI64Field(w *tc.Writer, id int16, v int64) {
	w.WriteFieldBegin(id, tc.TypeI64)
	w.WriteI64(v)
}

func writeStringField(w *tc.Writer, id int16, s string) {
	w.WriteFieldBegin(id, tc.TypeBinary)
	w.WriteString(s)
}

func writeBinaryField(w *tc.Writer, id int16, b []byte) {
	w.WriteFieldBegin(id, tc.TypeBinary)
	w.WriteBinary(b)
}

func writeEmptyField(w *tc.Writer, id int16) {
	w.WriteFieldBegin(id, tc.TypeStruct)
	w.WriteStructBegin()
	w.WriteStructEnd()
}

func encodeFileMetaData(w *tc.Writer, meta *FileMetaData) {
	w.WriteStructBegin()
	writeI32Field(w, 1, meta.Version)
	w.WriteFieldBegin(2, tc.TypeList)
	w.WriteListBegin(tc.TypeStruct, len(meta.Schema))
	for i := range meta.Schema {
		encodeSchemaElement(w, &meta.Schema[i])
	}
	writeI64Field(w, 3, meta.NumRows)
	w.WriteFieldBegin(4, tc.TypeList)
	w.WriteListBegin(tc.TypeStruct, len(meta.RowGroups))
	for i := range meta.RowGroups {
		encodeRowGroup(w, &meta.RowGroups[i])
	}
	if meta.KeyValueMetadata != nil {
		encodeKeyValues(w, 5, meta.KeyValueMetadata)
	}
	if meta.CreatedBy != nil {
		writeStringField(w, 6, *meta.CreatedBy)
	}
	w.WriteStructEnd()
}

func encodeKeyValues(w *tc.Writer, id int16, kvs []KeyValue) {
	w.WriteFieldBegin(id, tc.TypeList)
	w.WriteListBegin(tc.TypeStruct, len(kvs))
	for _, kv := range kvs {
		w.WriteStructBegin()
		writeStringField(w, 1, kv.Key)
		if kv.Value != nil {
			writeStringField(w, 2, *kv.Value)
		}
		w.WriteStructEnd()
	}
}

func encodeSchemaElement(w *tc.Writer, se *SchemaElement) {
	w.WriteStructBegin()
	if se.Type != nil {
		writeI32Field(w, 1, int32(*se.Type))
	}
	if se.TypeLength != nil {
		writeI32Field(w, 2, *se.TypeLength)
	}
	if se.RepetitionType != nil {
		writeI32Field(w, 3, int32(*se.RepetitionType))
	}
	writeStringField(w, 4, se.Name)
	if se.NumChildren != nil {
		writeI32Field(w, 5, *se.NumChildren)
	}
	if se.ConvertedType != nil {
		writeI32Field(w, 6, int32(*se.ConvertedType))
	}
	if se.Scale != nil {
		writeI32Field(w, 7, *se.Scale)
	}
	if se.Precision != nil {
		writeI32Field(w, 8, *se.Precision)
	}
	if se.FieldID != nil {
		writeI32Field(w, 9, *se.FieldID)
	}
	if se.LogicalType != nil {
		w.WriteFieldBegin(10, tc.TypeStruct)
		encodeLogicalType(w, se.LogicalType)
	}
	w.WriteStructEnd()
}

func encodeLogicalType(w *tc.Writer, lt *LogicalType) {
	w.WriteStructBegin()
	empties := []struct {
		id  int16
		set bool
	}{
		{1, lt.UTF8 != nil},
		{2, lt.Map != nil},
		{3, lt.List != nil},
		{4, lt.Enum != nil},
	}
	for _, e := range empties {
		if e.set {
			writeEmptyField(w, e.id)
		}
	}
	if lt.Decimal != nil {
		w.WriteFieldBegin(5, tc.TypeStruct)
		w.WriteStructBegin()
		writeI32Field(w, 1, lt.Decimal.Scale)
		writeI32Field(w, 2, lt.Decimal.Precision)
		w.WriteStructEnd()
	}
	if lt.Date != nil {
		writeEmptyField(w, 6)
	}
	if lt.Time != nil {
		w.WriteFieldBegin(7, tc.TypeStruct)
		encodeTimeType(w, lt.Time)
	}
	if lt.Timestamp != nil {
		w.WriteFieldBegin(8, tc.TypeStruct)
		encodeTimeType(w, lt.Timestamp)
	}
	if lt.Integer != nil {
		w.WriteFieldBegin(10, tc.TypeStruct)
		w.WriteStructBegin()
		w.WriteFieldBegin(1, tc.TypeByte)
		w.WriteI8(lt.Integer.BitWidth)
		w.WriteBoolField(2, lt.Integer.IsSigned)
		w.WriteStructEnd()
	}
	empties = []struct {
		id  int16
		set bool
	}{
		{11, lt.Unknown != nil},
		{12, lt.JSON != nil},
		{13, lt.BSON != nil},
		{14, lt.UUID != nil},
		{15, lt.Float16 != nil},
	}
	for _, e := range empties {
		if e.set {
			writeEmptyField(w, e.id)
		}
	}
	w.WriteStructEnd()
}

func encodeTimeType(w *tc.Writer, t *TimeType) {
	w.WriteStructBegin()
	w.WriteBoolField(1, t.IsAdjustedToUTC)
	w.WriteFieldBegin(2, tc.TypeStruct)
	w.WriteStructBegin()
	writeEmptyField(w, int16(t.Unit))
	w.WriteStructEnd()
	w.WriteStructEnd()
}

func encodeRowGroup(w *tc.Writer, rg *RowGroup) {
	w.WriteStructBegin()
	w.WriteFieldBegin(1, tc.TypeList)
	w.WriteListBegin(tc.TypeStruct, len(rg.Columns))
	for i := range rg.Columns {
		encodeColumnChunk(w, &rg.Columns[i])
	}
	writeI64Field(w, 2, rg.TotalByteSize)
	writeI64Field(w, 3, rg.NumRows)
	if rg.SortingColumns != nil {
		w.WriteFieldBegin(4, tc.TypeList)
		w.WriteListBegin(tc.TypeStruct, len(rg.SortingColumns))
		for _, sc := range rg.SortingColumns {
			w.WriteStructBegin()
			writeI32Field(w, 1, sc.ColumnIdx)
			w.WriteBoolField(2, sc.Descending)
			w.WriteBoolField(3, sc.NullsFirst)
			w.WriteStructEnd()
		}
	}
	if rg.FileOffset != nil {
		writeI64Field(w, 5, *rg.FileOffset)
	}
	if rg.TotalCompressedSize != nil {
		writeI64Field(w, 6, *rg.TotalCompressedSize)
	}
	if rg.Ordinal != nil {
		w.WriteFieldBegin(7, tc.TypeI16)
		w.WriteI16(*rg.Ordinal)
	}
	w.WriteStructEnd()
}

func encodeColumnChunk(w *tc.Writer, cc *ColumnChunk) {
	w.WriteStructBegin()
	if cc.FilePath != nil {
		writeStringField(w, 1, *cc.FilePath)
	}
	writeI64Field(w, 2, cc.FileOffset)
	if cc.MetaData != nil {
		w.WriteFieldBegin(3, tc.TypeStruct)
		encodeColumnMetaData(w, cc.MetaData)
	}
	if cc.OffsetIndexOffset != nil {
		writeI64Field(w, 4, *cc.OffsetIndexOffset)
	}
	if cc.OffsetIndexLength != nil {
		writeI32Field(w, 5, *cc.OffsetIndexLength)
	}
	if cc.ColumnIndexOffset != nil {
		writeI64Field(w, 6, *cc.ColumnIndexOffset)
	}
	if cc.ColumnIndexLength != nil {
		writeI32Field(w, 7, *cc.ColumnIndexLength)
	}
	w.WriteStructEnd()
}

func encodeColumnMetaData(w *tc.Writer, md *ColumnMetaData) {
	w.WriteStructBegin()
	writeI32Field(w, 1, int32(md.Type))
	w.WriteFieldBegin(2, tc.TypeList)
	w.WriteListBegin(tc.TypeI32, len(md.Encodings))
	for _, e := range md.Encodings {
		w.WriteI32(int32(e))
	}
	w.WriteFieldBegin(3, tc.TypeList)
	w.WriteListBegin(tc.TypeBinary, len(md.PathInSchema))
	for _, p := range md.PathInSchema {
		w.WriteString(p)
	}
	writeI32Field(w, 4, int32(md.Codec))
	writeI64Field(w, 5, md.NumValues)
	writeI64Field(w, 6, md.TotalUncompressedSize)
	writeI64Field(w, 7, md.TotalCompressedSize)
	if md.KeyValueMetadata != nil {
		encodeKeyValues(w, 8, md.KeyValueMetadata)
	}
	writeI64Field(w, 9, md.DataPageOffset)
	if md.IndexPageOffset != nil {
		writeI64Field(w, 10, *md.IndexPageOffset)
	}
	if md.DictionaryPageOffset != nil {
		writeI64Field(w, 11, *md.DictionaryPageOffset)
	}
	if md.Statistics != nil {
		w.WriteFieldBegin(12, tc.TypeStruct)
		encodeStatistics(w, md.Statistics)
	}
	if md.EncodingStats != nil {
		w.WriteFieldBegin(13, tc.TypeList)
		w.WriteListBegin(tc.TypeStruct, len(md.EncodingStats))
		for _, es := range md.EncodingStats {
			w.WriteStructBegin()
			writeI32Field(w, 1, int32(es.PageType))
			writeI32Field(w, 2, int32(es.Encoding))
			writeI32Field(w, 3, es.Count)
			w.WriteStructEnd()
		}
	}
	if md.BloomFilterOffset != nil {
		writeI64Field(w, 14, *md.BloomFilterOffset)
	}
	if md.BloomFilterLength != nil {
		writeI32Field(w, 15, *md.BloomFilterLength)
	}
	w.WriteStructEnd()
}

func encodeStatistics(w *tc.Writer, s *Statistics) {
	w.WriteStructBegin()
	if s.Max != nil {
		writeBinaryField(w, 1, s.Max)
	}
	if s.Min != nil {
		writeBinaryField(w, 2, s.Min)
	}
	if s.NullCount != nil {
		writeI64Field(w, 3, *s.NullCount)
	}
	if s.DistinctCount != nil {
		writeI64Field(w, 4, *s.DistinctCount)
	}
	if s.MaxValue != nil {
		writeBinaryField(w, 5, s.MaxValue)
	}
	if s.MinValue != nil {
		writeBinaryField(w, 6, s.MinValue)
	}
	w.WriteStructEnd()
}
