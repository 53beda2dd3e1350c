package main

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"kaitai_parquet_meta/internal/format"
	"kaitai_parquet_meta/metadata"
)

// formatBounds renders min and max for display, using the column's logical
// type where it changes how the bytes read.
func formatBounds(col *metadata.ColumnDescriptor, s metadata.Statistics) (lo, hi string) {
	if !s.HasMinMax() {
		return "", ""
	}
	scale, decimal := decimalScale(col)

	switch s := s.(type) {
	case *metadata.BooleanStatistics:
		a, _ := s.Min()
		b, _ := s.Max()
		return strconv.FormatBool(a), strconv.FormatBool(b)
	case *metadata.Int32Statistics:
		a, _ := s.Min()
		b, _ := s.Max()
		if s.Unsigned() {
			return strconv.FormatUint(uint64(uint32(a)), 10), strconv.FormatUint(uint64(uint32(b)), 10)
		}
		if decimal {
			return scaled(big.NewInt(int64(a)), scale), scaled(big.NewInt(int64(b)), scale)
		}
		return strconv.FormatInt(int64(a), 10), strconv.FormatInt(int64(b), 10)
	case *metadata.Int64Statistics:
		a, _ := s.Min()
		b, _ := s.Max()
		if s.Unsigned() {
			return strconv.FormatUint(uint64(a), 10), strconv.FormatUint(uint64(b), 10)
		}
		if decimal {
			return scaled(big.NewInt(a), scale), scaled(big.NewInt(b), scale)
		}
		return strconv.FormatInt(a, 10), strconv.FormatInt(b, 10)
	case *metadata.FloatStatistics:
		a, _ := s.Min()
		b, _ := s.Max()
		return strconv.FormatFloat(float64(a), 'g', -1, 32), strconv.FormatFloat(float64(b), 'g', -1, 32)
	case *metadata.DoubleStatistics:
		a, _ := s.Min()
		b, _ := s.Max()
		return strconv.FormatFloat(a, 'g', -1, 64), strconv.FormatFloat(b, 'g', -1, 64)
	case *metadata.ByteArrayStatistics:
		a, _ := s.Min()
		b, _ := s.Max()
		if decimal {
			return scaled(twosComplement(a), scale), scaled(twosComplement(b), scale)
		}
		return formatBytes(col, a), formatBytes(col, b)
	}
	return "", ""
}

func formatBytes(col *metadata.ColumnDescriptor, b []byte) string {
	lt := col.LogicalType()
	ct, hasCT := col.ConvertedType()

	if lt != nil && lt.UUID != nil && len(b) == 16 {
		if u, err := uuid.FromBytes(b); err == nil {
			return u.String()
		}
	}
	textual := lt != nil && (lt.UTF8 != nil || lt.Enum != nil || lt.JSON != nil)
	textual = textual || (hasCT && (ct == format.UTF8 || ct == format.Enum || ct == format.JSON))
	if textual && utf8.Valid(b) {
		return strconv.Quote(string(b))
	}
	return "0x" + hex.EncodeToString(b)
}

func decimalScale(col *metadata.ColumnDescriptor) (int32, bool) {
	if lt := col.LogicalType(); lt != nil && lt.Decimal != nil {
		return lt.Decimal.Scale, true
	}
	return 0, false
}

// twosComplement reads b as a big endian signed integer.
func twosComplement(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(8*len(b))))
	}
	return v
}

func scaled(unscaled *big.Int, scale int32) string {
	if scale <= 0 {
		return unscaled.String()
	}
	digits := new(big.Int).Abs(unscaled).String()
	if pad := int(scale) + 1 - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	point := len(digits) - int(scale)
	s := digits[:point] + "." + digits[point:]
	if unscaled.Sign() < 0 {
		s = "-" + s
	}
	return s
}
