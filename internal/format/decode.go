package format

import (
	"fmt"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
	"github.com/pkg/errors"

	"kaitai_parquet_meta/internal/thriftcompact"
)

// MissingFieldError reports a required thrift field absent from the input.
type MissingFieldError struct {
	Struct string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: required field %s is missing", e.Struct, e.Field)
}

type requiredField struct {
	id   int16
	name string
}

// walkStruct calls fn for every field of st and then checks that each
// required field was seen.
func walkStruct(st *thriftcompact.Struct, name string, required []requiredField, fn func(f *thriftcompact.Field) error) error {
	var seen uint64
	for i := range st.Fields {
		f := &st.Fields[i]
		if f.ID > 0 && f.ID < 64 {
			seen |= 1 << uint(f.ID)
		}
		if err := fn(f); err != nil {
			return errors.WithMessagef(err, "%s field %d", name, f.ID)
		}
	}
	for _, r := range required {
		if seen&(1<<uint(r.id)) == 0 {
			return &MissingFieldError{Struct: name, Field: r.name}
		}
	}
	return nil
}

func walkList(v *thriftcompact.Value, fn func(e *thriftcompact.Value) error) error {
	lst, err := v.AsList()
	if err != nil {
		return err
	}
	for i, e := range lst.Elements {
		if err := fn(e); err != nil {
			return errors.WithMessagef(err, "element %d", i)
		}
	}
	return nil
}

func walkStructList(v *thriftcompact.Value, fn func(st *thriftcompact.Struct) error) error {
	return walkList(v, func(e *thriftcompact.Value) error {
		st, err := e.AsStruct()
		if err != nil {
			return err
		}
		return fn(st)
	})
}

func optI32(v *thriftcompact.Value) (*int32, error) {
	x, err := v.I32()
	if err != nil {
		return nil, err
	}
	return &x, nil
}

func optI64(v *thriftcompact.Value) (*int64, error) {
	x, err := v.I64()
	if err != nil {
		return nil, err
	}
	return &x, nil
}

func optString(v *thriftcompact.Value) (*string, error) {
	s, err := v.Str()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func optBool(v *thriftcompact.Value) (*bool, error) {
	b, err := v.AsBool()
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func emptyStruct(v *thriftcompact.Value) (*Empty, error) {
	if _, err := v.AsStruct(); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

// DecodeFileMetaData parses a serialized footer (without the trailing length
// and magic). Bytes after the encoded struct are ignored.
func DecodeFileMetaData(b []byte) (*FileMetaData, error) {
	st, _, err := thriftcompact.Unmarshal(b)
	if err != nil {
		return nil, err
	}
	return decodeFileMetaData(st)
}

// DecodePageHeader parses a page header at the current stream position,
// leaving the stream at the first byte of the page payload.
func DecodePageHeader(ks *kaitai.Stream) (*PageHeader, error) {
	st, err := thriftcompact.ReadStruct(ks)
	if err != nil {
		return nil, err
	}
	return decodePageHeader(st)
}

func decodeFileMetaData(st *thriftcompact.Struct) (*FileMetaData, error) {
	meta := &FileMetaData{}
	err := walkStruct(st, "FileMetaData", []requiredField{
		{1, "version"}, {2, "schema"}, {3, "num_rows"}, {4, "row_groups"},
	}, func(f *thriftcompact.Field) (err error) {
		switch f.ID {
		case 1: // version: i32
			meta.Version, err = f.Value.I32()
		case 2: // schema: list<SchemaElement>
			err = walkStructList(f.Value, func(sst *thriftcompact.Struct) error {
				se, err := decodeSchemaElement(sst)
				if err != nil {
					return err
				}
				meta.Schema = append(meta.Schema, se)
				return nil
			})
		case 3: // num_rows: i64
			meta.NumRows, err = f.Value.I64()
		case 4: // row_groups: list<RowGroup>
			err = walkStructList(f.Value, func(rst *thriftcompact.Struct) error {
				rg, err := decodeRowGroup(rst)
				if err != nil {
					return err
				}
				meta.RowGroups = append(meta.RowGroups, rg)
				return nil
			})
		case 5: // key_value_metadata: list<KeyValue> (optional)
			meta.KeyValueMetadata, err = decodeKeyValues(f.Value)
		case 6: // created_by: string (optional)
			meta.CreatedBy, err = optString(f.Value)
		default:
			// ignore
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func decodeKeyValues(v *thriftcompact.Value) ([]KeyValue, error) {
	var out []KeyValue
	err := walkStructList(v, func(st *thriftcompact.Struct) error {
		var kv KeyValue
		err := walkStruct(st, "KeyValue", []requiredField{{1, "key"}}, func(f *thriftcompact.Field) (err error) {
			switch f.ID {
			case 1: // key: string
				kv.Key, err = f.Value.Str()
			case 2: // value: string (optional)
				kv.Value, err = optString(f.Value)
			}
			return err
		})
		out = append(out, kv)
		return err
	})
	return out, err
}

func decodeSchemaElement(st *thriftcompact.Struct) (SchemaElement, error) {
	var out SchemaElement
	err := walkStruct(st, "SchemaElement", []requiredField{{4, "name"}}, func(f *thriftcompact.Field) (err error) {
		switch f.ID {
		case 1: // type (enum): i32 (optional)
			var v int32
			if v, err = f.Value.I32(); err == nil {
				t := Type(v)
				out.Type = &t
			}
		case 2: // type_length: i32 (optional)
			out.TypeLength, err = optI32(f.Value)
		case 3: // repetition_type (enum): i32 (optional)
			var v int32
			if v, err = f.Value.I32(); err == nil {
				r := FieldRepetitionType(v)
				out.RepetitionType = &r
			}
		case 4: // name: string
			out.Name, err = f.Value.Str()
		case 5: // num_children: i32 (optional)
			out.NumChildren, err = optI32(f.Value)
		case 6: // converted_type (enum): i32 (optional)
			var v int32
			if v, err = f.Value.I32(); err == nil {
				c := ConvertedType(v)
				out.ConvertedType = &c
			}
		case 7: // scale: i32 (optional)
			out.Scale, err = optI32(f.Value)
		case 8: // precision: i32 (optional)
			out.Precision, err = optI32(f.Value)
		case 9: // field_id: i32 (optional)
			out.FieldID, err = optI32(f.Value)
		case 10: // logicalType: LogicalType (optional)
			var lst *thriftcompact.Struct
			if lst, err = f.Value.AsStruct(); err == nil {
				out.LogicalType, err = decodeLogicalType(lst)
			}
		default:
			// ignore
		}
		return err
	})
	return out, err
}

func decodeLogicalType(st *thriftcompact.Struct) (*LogicalType, error) {
	out := &LogicalType{}
	err := walkStruct(st, "LogicalType", nil, func(f *thriftcompact.Field) (err error) {
		switch f.ID {
		case 1: // STRING
			out.UTF8, err = emptyStruct(f.Value)
		case 2: // MAP
			out.Map, err = emptyStruct(f.Value)
		case 3: // LIST
			out.List, err = emptyStruct(f.Value)
		case 4: // ENUM
			out.Enum, err = emptyStruct(f.Value)
		case 5: // DECIMAL
			var dst *thriftcompact.Struct
			if dst, err = f.Value.AsStruct(); err == nil {
				out.Decimal, err = decodeDecimalType(dst)
			}
		case 6: // DATE
			out.Date, err = emptyStruct(f.Value)
		case 7: // TIME
			var tst *thriftcompact.Struct
			if tst, err = f.Value.AsStruct(); err == nil {
				out.Time, err = decodeTimeType(tst, "TimeType")
			}
		case 8: // TIMESTAMP
			var tst *thriftcompact.Struct
			if tst, err = f.Value.AsStruct(); err == nil {
				out.Timestamp, err = decodeTimeType(tst, "TimestampType")
			}
		case 10: // INTEGER
			var ist *thriftcompact.Struct
			if ist, err = f.Value.AsStruct(); err == nil {
				out.Integer, err = decodeIntType(ist)
			}
		case 11: // UNKNOWN
			out.Unknown, err = emptyStruct(f.Value)
		case 12: // JSON
			out.JSON, err = emptyStruct(f.Value)
		case 13: // BSON
			out.BSON, err = emptyStruct(f.Value)
		case 14: // UUID
			out.UUID, err = emptyStruct(f.Value)
		case 15: // FLOAT16
			out.Float16, err = emptyStruct(f.Value)
		default:
			// ignore
		}
		return err
	})
	return out, err
}

func decodeDecimalType(st *thriftcompact.Struct) (*DecimalType, error) {
	out := &DecimalType{}
	err := walkStruct(st, "DecimalType", []requiredField{{1, "scale"}, {2, "precision"}}, func(f *thriftcompact.Field) (err error) {
		switch f.ID {
		case 1: // scale: i32
			out.Scale, err = f.Value.I32()
		case 2: // precision: i32
			out.Precision, err = f.Value.I32()
		}
		return err
	})
	return out, err
}

func decodeTimeType(st *thriftcompact.Struct, name string) (*TimeType, error) {
	out := &TimeType{}
	err := walkStruct(st, name, []requiredField{{1, "isAdjustedToUTC"}, {2, "unit"}}, func(f *thriftcompact.Field) (err error) {
		switch f.ID {
		case 1: // isAdjustedToUTC: bool
			out.IsAdjustedToUTC, err = f.Value.AsBool()
		case 2: // unit: TimeUnit union
			var ust *thriftcompact.Struct
			if ust, err = f.Value.AsStruct(); err != nil {
				return err
			}
			for _, uf := range ust.Fields {
				if uf.ID >= int16(Millis) && uf.ID <= int16(Nanos) {
					out.Unit = TimeUnit(uf.ID)
				}
			}
		}
		return err
	})
	return out, err
}

func decodeIntType(st *thriftcompact.Struct) (*IntType, error) {
	out := &IntType{}
	err := walkStruct(st, "IntType", []requiredField{{1, "bitWidth"}, {2, "isSigned"}}, func(f *thriftcompact.Field) (err error) {
		switch f.ID {
		case 1: // bitWidth: i8
			out.BitWidth, err = f.Value.I8()
		case 2: // isSigned: bool
			out.IsSigned, err = f.Value.AsBool()
		}
		return err
	})
	return out, err
}

func decodeRowGroup(st *thriftcompact.Struct) (RowGroup, error) {
	var out RowGroup
	err := walkStruct(st, "RowGroup", []requiredField{
		{1, "columns"}, {2, "total_byte_size"}, {3, "num_rows"},
	}, func(f *thriftcompact.Field) (err error) {
		switch f.ID {
		case 1: // columns: list<ColumnChunk>
			err = walkStructList(f.Value, func(cst *thriftcompact.Struct) error {
				cc, err := decodeColumnChunk(cst)
				if err != nil {
					return err
				}
				out.Columns = append(out.Columns, cc)
				return nil
			})
		case 2: // total_byte_size: i64
			out.TotalByteSize, err = f.Value.I64()
		case 3: // num_rows: i64
			out.NumRows, err = f.Value.I64()
		case 4: // sorting_columns: list<SortingColumn> (optional)
			err = walkStructList(f.Value, func(sst *thriftcompact.Struct) error {
				sc, err := decodeSortingColumn(sst)
				if err != nil {
					return err
				}
				out.SortingColumns = append(out.SortingColumns, sc)
				return nil
			})
		case 5: // file_offset: i64 (optional)
			out.FileOffset, err = optI64(f.Value)
		case 6: // total_compressed_size: i64 (optional)
			out.TotalCompressedSize, err = optI64(f.Value)
		case 7: // ordinal: i16 (optional)
			var v int16
			if v, err = f.Value.I16(); err == nil {
				out.Ordinal = &v
			}
		default:
			// ignore
		}
		return err
	})
	return out, err
}

func decodeSortingColumn(st *thriftcompact.Struct) (SortingColumn, error) {
	var out SortingColumn
	err := walkStruct(st, "SortingColumn", []requiredField{
		{1, "column_idx"}, {2, "descending"}, {3, "nulls_first"},
	}, func(f *thriftcompact.Field) (err error) {
		switch f.ID {
		case 1: // column_idx: i32
			out.ColumnIdx, err = f.Value.I32()
		case 2: // descending: bool
			out.Descending, err = f.Value.AsBool()
		case 3: // nulls_first: bool
			out.NullsFirst, err = f.Value.AsBool()
		}
		return err
	})
	return out, err
}

func decodeColumnChunk(st *thriftcompact.Struct) (ColumnChunk, error) {
	var out ColumnChunk
	err := walkStruct(st, "ColumnChunk", []requiredField{{2, "file_offset"}}, func(f *thriftcompact.Field) (err error) {
		switch f.ID {
		case 1: // file_path: string (optional)
			out.FilePath, err = optString(f.Value)
		case 2: // file_offset: i64
			out.FileOffset, err = f.Value.I64()
		case 3: // meta_data: ColumnMetaData (optional)
			var sst *thriftcompact.Struct
			if sst, err = f.Value.AsStruct(); err == nil {
				out.MetaData, err = decodeColumnMetaData(sst)
			}
		case 4: // offset_index_offset: i64 (optional)
			out.OffsetIndexOffset, err = optI64(f.Value)
		case 5: // offset_index_length: i32 (optional)
			out.OffsetIndexLength, err = optI32(f.Value)
		case 6: // column_index_offset: i64 (optional)
			out.ColumnIndexOffset, err = optI64(f.Value)
		case 7: // column_index_length: i32 (optional)
			out.ColumnIndexLength, err = optI32(f.Value)
		default:
			// ignore
		}
		return err
	})
	return out, err
}

func decodeColumnMetaData(st *thriftcompact.Struct) (*ColumnMetaData, error) {
	out := &ColumnMetaData{}
	err := walkStruct(st, "ColumnMetaData", []requiredField{
		{1, "type"}, {2, "encodings"}, {3, "path_in_schema"}, {4, "codec"},
		{5, "num_values"}, {6, "total_uncompressed_size"},
		{7, "total_compressed_size"}, {9, "data_page_offset"},
	}, func(f *thriftcompact.Field) (err error) {
		switch f.ID {
		case 1: // type (enum): i32
			var v int32
			v, err = f.Value.I32()
			out.Type = Type(v)
		case 2: // encodings: list<Encoding> (i32)
			err = walkList(f.Value, func(e *thriftcompact.Value) error {
				v, err := e.I32()
				if err != nil {
					return err
				}
				out.Encodings = append(out.Encodings, Encoding(v))
				return nil
			})
		case 3: // path_in_schema: list<string>
			err = walkList(f.Value, func(e *thriftcompact.Value) error {
				s, err := e.Str()
				if err != nil {
					return err
				}
				out.PathInSchema = append(out.PathInSchema, s)
				return nil
			})
		case 4: // codec (enum): i32
			var v int32
			v, err = f.Value.I32()
			out.Codec = CompressionCodec(v)
		case 5: // num_values: i64
			out.NumValues, err = f.Value.I64()
		case 6: // total_uncompressed_size: i64
			out.TotalUncompressedSize, err = f.Value.I64()
		case 7: // total_compressed_size: i64
			out.TotalCompressedSize, err = f.Value.I64()
		case 8: // key_value_metadata: list<KeyValue> (optional)
			out.KeyValueMetadata, err = decodeKeyValues(f.Value)
		case 9: // data_page_offset: i64
			out.DataPageOffset, err = f.Value.I64()
		case 10: // index_page_offset: i64 (optional)
			out.IndexPageOffset, err = optI64(f.Value)
		case 11: // dictionary_page_offset: i64 (optional)
			out.DictionaryPageOffset, err = optI64(f.Value)
		case 12: // statistics: Statistics (optional)
			var sst *thriftcompact.Struct
			if sst, err = f.Value.AsStruct(); err == nil {
				out.Statistics, err = decodeStatistics(sst)
			}
		case 13: // encoding_stats: list<PageEncodingStats> (optional)
			err = walkStructList(f.Value, func(est *thriftcompact.Struct) error {
				es, err := decodePageEncodingStats(est)
				if err != nil {
					return err
				}
				out.EncodingStats = append(out.EncodingStats, es)
				return nil
			})
		case 14: // bloom_filter_offset: i64 (optional)
			out.BloomFilterOffset, err = optI64(f.Value)
		case 15: // bloom_filter_length: i32 (optional)
			out.BloomFilterLength, err = optI32(f.Value)
		default:
			// ignore
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeStatistics(st *thriftcompact.Struct) (*Statistics, error) {
	out := &Statistics{}
	err := walkStruct(st, "Statistics", nil, func(f *thriftcompact.Field) (err error) {
		switch f.ID {
		case 1: // max: binary (optional, deprecated)
			out.Max, err = f.Value.Bytes()
		case 2: // min: binary (optional, deprecated)
			out.Min, err = f.Value.Bytes()
		case 3: // null_count: i64 (optional)
			out.NullCount, err = optI64(f.Value)
		case 4: // distinct_count: i64 (optional)
			out.DistinctCount, err = optI64(f.Value)
		case 5: // max_value: binary (optional)
			out.MaxValue, err = f.Value.Bytes()
		case 6: // min_value: binary (optional)
			out.MinValue, err = f.Value.Bytes()
		default:
			// ignore
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodePageEncodingStats(st *thriftcompact.Struct) (PageEncodingStats, error) {
	var out PageEncodingStats
	err := walkStruct(st, "PageEncodingStats", []requiredField{
		{1, "page_type"}, {2, "encoding"}, {3, "count"},
	}, func(f *thriftcompact.Field) (err error) {
		var v int32
		switch f.ID {
		case 1: // page_type (enum): i32
			v, err = f.Value.I32()
			out.PageType = PageType(v)
		case 2: // encoding (enum): i32
			v, err = f.Value.I32()
			out.Encoding = Encoding(v)
		case 3: // count: i32
			out.Count, err = f.Value.I32()
		}
		return err
	})
	return out, err
}

func decodePageHeader(st *thriftcompact.Struct) (*PageHeader, error) {
	out := &PageHeader{}
	err := walkStruct(st, "PageHeader", []requiredField{
		{1, "type"}, {2, "uncompressed_page_size"}, {3, "compressed_page_size"},
	}, func(f *thriftcompact.Field) (err error) {
		switch f.ID {
		case 1: // type (enum): i32
			var v int32
			v, err = f.Value.I32()
			out.Type = PageType(v)
		case 2: // uncompressed_page_size: i32
			out.UncompressedPageSize, err = f.Value.I32()
		case 3: // compressed_page_size: i32
			out.CompressedPageSize, err = f.Value.I32()
		case 4: // crc: i32 (optional)
			out.CRC, err = optI32(f.Value)
		case 5: // data_page_header: struct (optional)
			var dst *thriftcompact.Struct
			if dst, err = f.Value.AsStruct(); err == nil {
				out.DataPageHeader, err = decodeDataPageHeader(dst)
			}
		case 7: // dictionary_page_header: struct (optional)
			var dst *thriftcompact.Struct
			if dst, err = f.Value.AsStruct(); err == nil {
				out.DictionaryPageHeader, err = decodeDictionaryPageHeader(dst)
			}
		case 8: // data_page_header_v2: struct (optional)
			var dst *thriftcompact.Struct
			if dst, err = f.Value.AsStruct(); err == nil {
				out.DataPageHeaderV2, err = decodeDataPageHeaderV2(dst)
			}
		default:
			// ignore
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeDataPageHeader(st *thriftcompact.Struct) (*DataPageHeader, error) {
	out := &DataPageHeader{}
	err := walkStruct(st, "DataPageHeader", []requiredField{
		{1, "num_values"}, {2, "encoding"},
		{3, "definition_level_encoding"}, {4, "repetition_level_encoding"},
	}, func(f *thriftcompact.Field) (err error) {
		var v int32
		switch f.ID {
		case 1: // num_values: i32
			out.NumValues, err = f.Value.I32()
		case 2: // encoding: i32
			v, err = f.Value.I32()
			out.Encoding = Encoding(v)
		case 3: // definition_level_encoding: i32
			v, err = f.Value.I32()
			out.DefinitionLevelEncoding = Encoding(v)
		case 4: // repetition_level_encoding: i32
			v, err = f.Value.I32()
			out.RepetitionLevelEncoding = Encoding(v)
		case 5: // statistics: Statistics (optional)
			var sst *thriftcompact.Struct
			if sst, err = f.Value.AsStruct(); err == nil {
				out.Statistics, err = decodeStatistics(sst)
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeDictionaryPageHeader(st *thriftcompact.Struct) (*DictionaryPageHeader, error) {
	out := &DictionaryPageHeader{}
	err := walkStruct(st, "DictionaryPageHeader", []requiredField{
		{1, "num_values"}, {2, "encoding"},
	}, func(f *thriftcompact.Field) (err error) {
		switch f.ID {
		case 1: // num_values: i32
			out.NumValues, err = f.Value.I32()
		case 2: // encoding: i32
			var v int32
			v, err = f.Value.I32()
			out.Encoding = Encoding(v)
		case 3: // is_sorted: bool (optional)
			out.IsSorted, err = optBool(f.Value)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeDataPageHeaderV2(st *thriftcompact.Struct) (*DataPageHeaderV2, error) {
	out := &DataPageHeaderV2{}
	err := walkStruct(st, "DataPageHeaderV2", []requiredField{
		{1, "num_values"}, {2, "num_nulls"}, {3, "num_rows"}, {4, "encoding"},
		{5, "definition_levels_byte_length"}, {6, "repetition_levels_byte_length"},
	}, func(f *thriftcompact.Field) (err error) {
		switch f.ID {
		case 1: // num_values: i32
			out.NumValues, err = f.Value.I32()
		case 2: // num_nulls: i32
			out.NumNulls, err = f.Value.I32()
		case 3: // num_rows: i32
			out.NumRows, err = f.Value.I32()
		case 4: // encoding: i32
			var v int32
			v, err = f.Value.I32()
			out.Encoding = Encoding(v)
		case 5: // definition_levels_byte_length: i32
			out.DefinitionLevelsByteLength, err = f.Value.I32()
		case 6: // repetition_levels_byte_length: i32
			out.RepetitionLevelsByteLength, err = f.Value.I32()
		case 7: // is_compressed: bool (optional)
			out.IsCompressed, err = optBool(f.Value)
		case 8: // statistics: Statistics (optional)
			var sst *thriftcompact.Struct
			if sst, err = f.Value.AsStruct(); err == nil {
				out.Statistics, err = decodeStatistics(sst)
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
