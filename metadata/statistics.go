package metadata

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"kaitai_parquet_meta/internal/format"
)

// Statistics is the per-chunk summary of a column. The dynamic type is one of
// *BooleanStatistics, *Int32Statistics, *Int64Statistics, *FloatStatistics,
// *DoubleStatistics or *ByteArrayStatistics and always matches the column's
// physical type.
//
// Every field is independently optional: a writer may record a null count
// without bounds, or bounds without a null count.
type Statistics interface {
	PhysicalType() Type
	HasMinMax() bool
	NullCount() (int64, bool)
	DistinctCount() (int64, bool)
	// EncodeMin and EncodeMax return the plain encoded bounds, or nil when
	// HasMinMax is false.
	EncodeMin() []byte
	EncodeMax() []byte

	statistics()
}

// StatisticsAs narrows s to the variant T.
func StatisticsAs[T Statistics](s Statistics) (T, error) {
	t, ok := s.(T)
	if !ok {
		var zero T
		if s == nil {
			return zero, errors.Wrap(ErrTypeMismatch, "statistics are absent")
		}
		return zero, errors.Wrapf(ErrTypeMismatch, "statistics of %s column requested as %T", s.PhysicalType(), zero)
	}
	return t, nil
}

type statsCommon struct {
	typ          Type
	nullCount    int64
	hasNullCount bool
	distinct     int64
	hasDistinct  bool
	minRaw       []byte
	maxRaw       []byte
	hasMinMax    bool
}

func (s *statsCommon) PhysicalType() Type { return s.typ }

func (s *statsCommon) HasMinMax() bool { return s.hasMinMax }

func (s *statsCommon) NullCount() (int64, bool) { return s.nullCount, s.hasNullCount }

func (s *statsCommon) DistinctCount() (int64, bool) { return s.distinct, s.hasDistinct }

func (s *statsCommon) EncodeMin() []byte {
	if !s.hasMinMax {
		return nil
	}
	return bytes.Clone(s.minRaw)
}

func (s *statsCommon) EncodeMax() []byte {
	if !s.hasMinMax {
		return nil
	}
	return bytes.Clone(s.maxRaw)
}

func (s *statsCommon) statistics() {}

type BooleanStatistics struct {
	statsCommon
	min, max bool
}

func (s *BooleanStatistics) Min() (bool, bool) { return s.min, s.hasMinMax }

func (s *BooleanStatistics) Max() (bool, bool) { return s.max, s.hasMinMax }

// Compare orders false before true.
func (s *BooleanStatistics) Compare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

type Int32Statistics struct {
	statsCommon
	min, max int32
	unsigned bool
}

func (s *Int32Statistics) Min() (int32, bool) { return s.min, s.hasMinMax }

func (s *Int32Statistics) Max() (int32, bool) { return s.max, s.hasMinMax }

// Unsigned reports whether values compare as uint32.
func (s *Int32Statistics) Unsigned() bool { return s.unsigned }

func (s *Int32Statistics) Compare(a, b int32) int {
	if s.unsigned {
		return cmp.Compare(uint32(a), uint32(b))
	}
	return cmp.Compare(a, b)
}

type Int64Statistics struct {
	statsCommon
	min, max int64
	unsigned bool
}

func (s *Int64Statistics) Min() (int64, bool) { return s.min, s.hasMinMax }

func (s *Int64Statistics) Max() (int64, bool) { return s.max, s.hasMinMax }

// Unsigned reports whether values compare as uint64.
func (s *Int64Statistics) Unsigned() bool { return s.unsigned }

func (s *Int64Statistics) Compare(a, b int64) int {
	if s.unsigned {
		return cmp.Compare(uint64(a), uint64(b))
	}
	return cmp.Compare(a, b)
}

type FloatStatistics struct {
	statsCommon
	min, max float32
}

func (s *FloatStatistics) Min() (float32, bool) { return s.min, s.hasMinMax }

func (s *FloatStatistics) Max() (float32, bool) { return s.max, s.hasMinMax }

func (s *FloatStatistics) Compare(a, b float32) int { return cmp.Compare(a, b) }

type DoubleStatistics struct {
	statsCommon
	min, max float64
}

func (s *DoubleStatistics) Min() (float64, bool) { return s.min, s.hasMinMax }

func (s *DoubleStatistics) Max() (float64, bool) { return s.max, s.hasMinMax }

func (s *DoubleStatistics) Compare(a, b float64) int { return cmp.Compare(a, b) }

// ByteArrayStatistics covers BYTE_ARRAY and FIXED_LEN_BYTE_ARRAY columns.
type ByteArrayStatistics struct {
	statsCommon
}

// Min returns the lower bound. The slice is shared and must not be modified.
func (s *ByteArrayStatistics) Min() ([]byte, bool) { return s.minRaw, s.hasMinMax }

// Max returns the upper bound. The slice is shared and must not be modified.
func (s *ByteArrayStatistics) Max() ([]byte, bool) { return s.maxRaw, s.hasMinMax }

func (s *ByteArrayStatistics) Compare(a, b []byte) int { return CompareByteArray(a, b) }

// CompareByteArray orders byte arrays lexicographically on unsigned bytes, so
// []byte{0xff} sorts after []byte{0x7f}. String, enum, JSON and every other
// byte array annotation share this order.
func CompareByteArray(a, b []byte) int { return bytes.Compare(a, b) }

// newStatistics turns footer statistics into the variant for col. Bounds that
// cannot be trusted (legacy fields under a non-signed order, NaN, unknown
// order) are dropped; malformed ones are reported as corrupt.
func newStatistics(col *ColumnDescriptor, raw *format.Statistics) (Statistics, error) {
	c := statsCommon{typ: col.PhysicalType()}
	if raw.NullCount != nil {
		if *raw.NullCount < 0 {
			return nil, corruptf("column %q: negative null_count %d", col.DottedPath(), *raw.NullCount)
		}
		c.nullCount, c.hasNullCount = *raw.NullCount, true
	}
	if raw.DistinctCount != nil {
		if *raw.DistinctCount < 0 {
			return nil, corruptf("column %q: negative distinct_count %d", col.DottedPath(), *raw.DistinctCount)
		}
		c.distinct, c.hasDistinct = *raw.DistinctCount, true
	}
	c.minRaw, c.maxRaw, c.hasMinMax = selectBounds(col, raw)

	if c.hasMinMax {
		w := fixedWidth(c.typ)
		if c.typ == format.FixedLenByteArray {
			w = col.TypeLength()
		}
		if w > 0 && (len(c.minRaw) != w || len(c.maxRaw) != w) {
			return nil, corruptf("column %q: %s bounds must be %d bytes, got min %d and max %d",
				col.DottedPath(), c.typ, w, len(c.minRaw), len(c.maxRaw))
		}
	}

	var (
		s        Statistics
		inverted bool
	)
	switch c.typ {
	case format.Boolean:
		v := &BooleanStatistics{statsCommon: c}
		if c.hasMinMax {
			v.min, v.max = c.minRaw[0] != 0, c.maxRaw[0] != 0
			inverted = v.Compare(v.min, v.max) > 0
		}
		s = v
	case format.Int32:
		v := &Int32Statistics{statsCommon: c, unsigned: col.SortOrder() == SortUnsigned}
		if c.hasMinMax {
			v.min = int32(binary.LittleEndian.Uint32(c.minRaw))
			v.max = int32(binary.LittleEndian.Uint32(c.maxRaw))
			inverted = v.Compare(v.min, v.max) > 0
		}
		s = v
	case format.Int64:
		v := &Int64Statistics{statsCommon: c, unsigned: col.SortOrder() == SortUnsigned}
		if c.hasMinMax {
			v.min = int64(binary.LittleEndian.Uint64(c.minRaw))
			v.max = int64(binary.LittleEndian.Uint64(c.maxRaw))
			inverted = v.Compare(v.min, v.max) > 0
		}
		s = v
	case format.Float:
		v := &FloatStatistics{statsCommon: c}
		if c.hasMinMax {
			v.min = math.Float32frombits(binary.LittleEndian.Uint32(c.minRaw))
			v.max = math.Float32frombits(binary.LittleEndian.Uint32(c.maxRaw))
			if isNaN32(v.min) || isNaN32(v.max) {
				v.dropMinMax()
				v.min, v.max = 0, 0
			} else {
				inverted = v.Compare(v.min, v.max) > 0
			}
		}
		s = v
	case format.Double:
		v := &DoubleStatistics{statsCommon: c}
		if c.hasMinMax {
			v.min = math.Float64frombits(binary.LittleEndian.Uint64(c.minRaw))
			v.max = math.Float64frombits(binary.LittleEndian.Uint64(c.maxRaw))
			if math.IsNaN(v.min) || math.IsNaN(v.max) {
				v.dropMinMax()
				v.min, v.max = 0, 0
			} else {
				inverted = v.Compare(v.min, v.max) > 0
			}
		}
		s = v
	case format.ByteArray, format.FixedLenByteArray:
		v := &ByteArrayStatistics{statsCommon: c}
		// decimals are two's-complement, their byte order is not their value order
		if c.hasMinMax && !col.isDecimal() {
			inverted = v.Compare(c.minRaw, c.maxRaw) > 0
		}
		s = v
	default:
		// INT96 has no defined order; callers never get here for it
		return nil, corruptf("column %q: statistics for %s columns are not supported", col.DottedPath(), c.typ)
	}

	if inverted {
		return nil, corruptf("column %q: statistics min is greater than max", col.DottedPath())
	}
	return s, nil
}

func (s *statsCommon) dropMinMax() {
	s.minRaw, s.maxRaw, s.hasMinMax = nil, nil, false
}

func selectBounds(col *ColumnDescriptor, raw *format.Statistics) (lo, hi []byte, ok bool) {
	order := col.SortOrder()
	if order == SortUnknown {
		return nil, nil, false
	}
	if raw.MinValue != nil && raw.MaxValue != nil {
		return raw.MinValue, raw.MaxValue, true
	}
	// legacy min/max were written with signed comparison
	if order == SortSigned && raw.Min != nil && raw.Max != nil {
		return raw.Min, raw.Max, true
	}
	return nil, nil, false
}

func fixedWidth(t Type) int {
	switch t {
	case format.Boolean:
		return 1
	case format.Int32, format.Float:
		return 4
	case format.Int64, format.Double:
		return 8
	default:
		return 0
	}
}

func isNaN32(f float32) bool { return f != f }
