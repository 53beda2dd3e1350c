// Package verify walks the pages of column chunks and checks them against
// what the footer claims about the chunk.
package verify

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"kaitai_parquet_meta/internal/codec"
	"kaitai_parquet_meta/internal/format"
	"kaitai_parquet_meta/internal/levels"
	"kaitai_parquet_meta/internal/thriftcompact"
	"kaitai_parquet_meta/metadata"
)

// Problem is an inconsistency between a chunk's pages and its metadata.
type Problem struct {
	Offset  int64  `json:"offset" yaml:"offset"`
	Message string `json:"message" yaml:"message"`
}

func (p Problem) String() string { return fmt.Sprintf("@%d: %s", p.Offset, p.Message) }

// Report summarizes the pages of one column chunk.
type Report struct {
	RowGroup          int       `json:"row_group" yaml:"row_group"`
	Column            string    `json:"column" yaml:"column"`
	Codec             string    `json:"codec" yaml:"codec"`
	Pages             int       `json:"pages" yaml:"pages"`
	DictionaryPages   int       `json:"dictionary_pages" yaml:"dictionary_pages"`
	Values            int64     `json:"values" yaml:"values"`
	CompressedBytes   int64     `json:"compressed_bytes" yaml:"compressed_bytes"`
	UncompressedBytes int64     `json:"uncompressed_bytes" yaml:"uncompressed_bytes"`
	Nulls             *int64    `json:"nulls,omitempty" yaml:"nulls,omitempty"`
	Skipped           string    `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Problems          []Problem `json:"problems,omitempty" yaml:"problems,omitempty"`
}

func (r *Report) OK() bool { return len(r.Problems) == 0 }

func (r *Report) problemf(off int64, msg string, args ...interface{}) {
	r.Problems = append(r.Problems, Problem{Offset: off, Message: fmt.Sprintf(msg, args...)})
}

// Chunk reads every page of cc from r. Inconsistencies are collected in the
// report; only I/O failures and cancellation of ctx are returned as errors.
func Chunk(ctx context.Context, r io.ReaderAt, cc *metadata.ColumnChunkMetaData) (*Report, error) {
	start, length := cc.ByteRange()
	rep := &Report{
		Column: cc.Descriptor().DottedPath(),
		Codec:  cc.Compression().String(),
	}
	if _, ok := cc.FilePath(); ok {
		rep.Skipped = "stored in another file"
		return rep, nil
	}

	ks := kaitai.NewStream(io.NewSectionReader(r, start, length))
	decompress := codec.Supported(cc.Compression())
	if !decompress {
		rep.Skipped = "codec not supported, sizes only"
	}

	col := cc.Descriptor()
	maxDef, maxRep := col.MaxDefinitionLevel(), col.MaxRepetitionLevel()
	// nulls are only known while every data page could be accounted for
	var nulls int64
	nullsKnown := true

	var sawData bool
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pos, err := ks.Pos()
		if err != nil {
			return nil, errors.Wrap(err, "page position")
		}
		if pos >= length {
			break
		}
		at := start + pos

		hdr, err := format.DecodePageHeader(ks)
		if err != nil {
			rep.problemf(at, "unreadable page header: %v", err)
			nullsKnown = false
			break
		}
		end, err := ks.Pos()
		if err != nil {
			return nil, errors.Wrap(err, "page position")
		}
		headerLen := end - pos

		if hdr.CompressedPageSize < 0 || hdr.UncompressedPageSize < 0 {
			rep.problemf(at, "negative page size")
			nullsKnown = false
			break
		}
		if int64(hdr.CompressedPageSize) > length-end {
			rep.problemf(at, "%s of %d bytes runs past the chunk end", hdr.Type, hdr.CompressedPageSize)
			nullsKnown = false
			break
		}
		payload, err := ks.ReadBytes(int(hdr.CompressedPageSize))
		if err != nil {
			return nil, errors.Wrap(err, "read page")
		}

		rep.Pages++
		rep.UncompressedBytes += headerLen + int64(hdr.UncompressedPageSize)
		// the page cannot be larger than the chunk it belongs to
		if int64(hdr.UncompressedPageSize) > cc.TotalUncompressedSize() {
			rep.problemf(at, "%s declares %d uncompressed bytes, chunk total is %d",
				hdr.Type, hdr.UncompressedPageSize, cc.TotalUncompressedSize())
			if hdr.Type != format.DictionaryPage {
				nullsKnown = false
			}
			continue
		}

		var levelBytes int
		var v1 *format.DataPageHeader
		switch hdr.Type {
		case format.DictionaryPage:
			rep.DictionaryPages++
			if sawData {
				rep.problemf(at, "dictionary page after data pages")
			}
			if hdr.DictionaryPageHeader == nil {
				rep.problemf(at, "dictionary page without dictionary_page_header")
			}
		case format.DataPage:
			sawData = true
			if hdr.DataPageHeader == nil {
				rep.problemf(at, "data page without data_page_header")
				nullsKnown = false
				continue
			}
			v1 = hdr.DataPageHeader
			rep.Values += int64(v1.NumValues)
		case format.DataPageV2:
			sawData = true
			h := hdr.DataPageHeaderV2
			if h == nil {
				rep.problemf(at, "data page v2 without data_page_header_v2")
				nullsKnown = false
				continue
			}
			rep.Values += int64(h.NumValues)
			levelBytes = int(h.RepetitionLevelsByteLength) + int(h.DefinitionLevelsByteLength)
			if h.RepetitionLevelsByteLength < 0 || h.DefinitionLevelsByteLength < 0 ||
				levelBytes > len(payload) || levelBytes > int(hdr.UncompressedPageSize) {
				rep.problemf(at, "level bytes %d exceed the page", levelBytes)
				nullsKnown = false
				continue
			}
			nulls += int64(h.NumNulls)
			if maxRep == 0 && maxDef > 0 {
				def := payload[h.RepetitionLevelsByteLength:levelBytes]
				lv, _, err := levels.Decode(def, int(h.NumValues), levels.BitWidth(maxDef))
				switch {
				case err != nil:
					rep.problemf(at, "definition levels: %v", err)
				case levels.CountBelow(lv, maxDef) != int64(h.NumNulls):
					rep.problemf(at, "definition levels hold %d nulls, num_nulls is %d", levels.CountBelow(lv, maxDef), h.NumNulls)
				}
			}
			if h.IsCompressed != nil && !*h.IsCompressed {
				if len(payload) != int(hdr.UncompressedPageSize) {
					rep.problemf(at, "uncompressed page holds %d bytes, header says %d", len(payload), hdr.UncompressedPageSize)
				}
				continue
			}
		}

		if !decompress {
			if v1 != nil {
				nullsKnown = false
			}
			continue
		}
		// v2 levels are stored ahead of the values and never compressed
		out, err := codec.Decompress(cc.Compression(), payload[levelBytes:], int(hdr.UncompressedPageSize)-levelBytes)
		if err != nil {
			rep.problemf(at, "%s does not decompress: %v", hdr.Type, err)
			if v1 != nil {
				nullsKnown = false
			}
			continue
		}
		if got := levelBytes + len(out); got != int(hdr.UncompressedPageSize) {
			rep.problemf(at, "%s decompresses to %d bytes, header says %d", hdr.Type, got, hdr.UncompressedPageSize)
		}
		if v1 != nil && nullsKnown {
			n, ok := v1Nulls(rep, at, v1, out, maxDef, maxRep)
			nulls += n
			nullsKnown = ok
		}
	}

	pos, err := ks.Pos()
	if err != nil {
		return nil, errors.Wrap(err, "page position")
	}
	rep.CompressedBytes = pos
	if rep.CompressedBytes != cc.TotalCompressedSize() {
		rep.problemf(start, "pages span %d bytes, total_compressed_size is %d", rep.CompressedBytes, cc.TotalCompressedSize())
	}
	if rep.Values != cc.NumValues() {
		rep.problemf(start, "pages hold %d values, num_values is %d", rep.Values, cc.NumValues())
	}
	if rep.UncompressedBytes != cc.TotalUncompressedSize() {
		rep.problemf(start, "pages expand to %d bytes, total_uncompressed_size is %d", rep.UncompressedBytes, cc.TotalUncompressedSize())
	}
	if (rep.DictionaryPages > 0) != cc.HasDictionaryPage() {
		rep.problemf(start, "found %d dictionary pages, dictionary_page_offset set: %t", rep.DictionaryPages, cc.HasDictionaryPage())
	}
	if nullsKnown {
		rep.Nulls = &nulls
		if s, ok := cc.Statistics(); ok {
			if want, ok := s.NullCount(); ok && want != nulls {
				rep.problemf(start, "pages hold %d nulls, null_count is %d", nulls, want)
			}
		}
	}
	return rep, nil
}

// v1Nulls counts the nulls of a decompressed v1 data page from its
// definition levels. Pages of repeated columns are not counted since their
// repetition levels come first and we do not decode them.
func v1Nulls(rep *Report, at int64, h *format.DataPageHeader, page []byte, maxDef, maxRep int16) (int64, bool) {
	switch {
	case maxRep > 0:
		return 0, false
	case maxDef == 0:
		return 0, true
	case h.DefinitionLevelEncoding != format.RLE:
		return 0, false
	}
	lv, _, err := levels.DecodePrefixed(page, int(h.NumValues), levels.BitWidth(maxDef))
	if err != nil {
		rep.problemf(at, "definition levels: %v", err)
		return 0, false
	}
	if m := levels.Max(lv); m > maxDef {
		rep.problemf(at, "definition level %d exceeds the column maximum %d", m, maxDef)
		return 0, false
	}
	return levels.CountBelow(lv, maxDef), true
}

// File verifies every column chunk of md, up to parallelism chunks at a time.
// Reports are ordered by row group, then column.
func File(ctx context.Context, r io.ReaderAt, md *metadata.FileMetaData, parallelism int, logger log.Logger) ([]*Report, error) {
	if parallelism <= 0 {
		parallelism = 1
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	numCols := md.NumColumns()
	reports := make([]*Report, md.NumRowGroups()*numCols)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i := 0; i < md.NumRowGroups(); i++ {
		rg, err := md.RowGroup(i)
		if err != nil {
			return nil, err
		}
		for j := 0; j < numCols; j++ {
			g.Go(func() error {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				cc, err := rg.ColumnChunk(j)
				if err != nil {
					return err
				}
				rep, err := Chunk(ctx, r, cc)
				if err != nil {
					return errors.Wrapf(err, "row group %d column %q", i, cc.Descriptor().DottedPath())
				}
				rep.RowGroup = i
				if !rep.OK() {
					level.Warn(logger).Log("msg", "column chunk is inconsistent", "row_group", i,
						"column", rep.Column, "problems", len(rep.Problems))
				}
				reports[i*numCols+j] = rep
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// FooterReport compares a parsed footer with its re-encoding.
type FooterReport struct {
	Bytes           int  `json:"bytes" yaml:"bytes"`
	Reencoded       int  `json:"reencoded_bytes" yaml:"reencoded_bytes"`
	Identical       bool `json:"identical" yaml:"identical"`
	Canonical       bool `json:"canonical" yaml:"canonical"`
	FirstDifference *int `json:"first_difference,omitempty" yaml:"first_difference,omitempty"`
}

// Footer re-encodes md and compares the result with the bytes it was parsed
// from. A difference is not a failure: writers may set fields this package
// does not model, such as column_orders, and those are dropped on encoding.
// Canonical tells such footers apart from ones whose thrift encoding itself
// does not survive a round trip, e.g. fields written out of order.
func Footer(md *metadata.FileMetaData, logger log.Logger) *FooterReport {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	orig, enc := md.Footer(), md.Serialize()
	rep := &FooterReport{Bytes: len(orig), Reencoded: len(enc), Identical: bytes.Equal(orig, enc)}
	if st, _, err := thriftcompact.Unmarshal(orig); err == nil {
		rep.Canonical = bytes.Equal(orig, thriftcompact.Marshal(st))
	}
	if !rep.Identical {
		i := 0
		for i < len(orig) && i < len(enc) && orig[i] == enc[i] {
			i++
		}
		rep.FirstDifference = &i
		level.Info(logger).Log("msg", "footer does not re-encode identically", "bytes", len(orig),
			"reencoded_bytes", len(enc), "first_difference", i, "canonical", rep.Canonical)
	}
	return rep
}
