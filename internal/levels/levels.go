// Package levels decodes the RLE/bit-packed hybrid runs that hold the
// repetition and definition levels of a data page.
package levels

import (
	"encoding/binary"
	"io"
	"math/bits"

	"github.com/pkg/errors"
)

// maxRunValues bounds a single run so a corrupt header cannot make us
// allocate without limit.
const maxRunValues = 16 * 1024 * 1024

// BitWidth returns the number of bits needed to store levels up to maxLevel.
func BitWidth(maxLevel int16) uint {
	if maxLevel <= 0 {
		return 0
	}
	return uint(bits.Len16(uint16(maxLevel)))
}

// Decode reads numValues levels from the hybrid runs in src and reports how
// many bytes of src they took. Levels wider than 8 bits are rejected.
func Decode(src []byte, numValues int, bitWidth uint) ([]byte, int, error) {
	if bitWidth > 8 {
		return nil, 0, errors.Errorf("bit width %d exceeds 8", bitWidth)
	}
	if numValues < 0 {
		return nil, 0, errors.Errorf("negative level count %d", numValues)
	}

	// sized for bit-packed input; RLE runs grow dst as they are read
	dst := make([]byte, 0, min(numValues, 8*len(src)))
	i := 0
	for len(dst) < numValues {
		if i >= len(src) {
			return dst, i, errors.Wrapf(io.ErrUnexpectedEOF, "got %d of %d levels", len(dst), numValues)
		}
		u, n := binary.Uvarint(src[i:])
		if n <= 0 {
			return dst, i, errors.Errorf("bad run header at byte %d", i)
		}
		i += n

		count := u >> 1
		if count > maxRunValues {
			return dst, i, errors.Errorf("run of %d values is too long", count)
		}

		if u&1 == 1 {
			// bit-packed groups of 8
			count *= 8
			width := int((count*uint64(bitWidth) + 7) / 8)
			if i+width > len(src) {
				return dst, i, errors.Wrapf(io.ErrUnexpectedEOF, "bit-packed run of %d values", count)
			}
			dst = unpack(dst, src[i:i+width], int(count), bitWidth, numValues)
			i += width
			continue
		}

		var v byte
		if bitWidth > 0 {
			if i >= len(src) {
				return dst, i, errors.Wrapf(io.ErrUnexpectedEOF, "run of %d values", count)
			}
			v = src[i]
			i++
		}
		for k := uint64(0); k < count && len(dst) < numValues; k++ {
			dst = append(dst, v)
		}
	}
	return dst, i, nil
}

// unpack appends up to count bit-packed values, least significant bit first,
// stopping once dst holds limit values.
func unpack(dst, src []byte, count int, bitWidth uint, limit int) []byte {
	mask := uint16(1)<<bitWidth - 1
	if bitWidth == 0 {
		for k := 0; k < count && len(dst) < limit; k++ {
			dst = append(dst, 0)
		}
		return dst
	}
	for k := 0; k < count && len(dst) < limit; k++ {
		bit := uint(k) * bitWidth
		b := bit / 8
		word := uint16(src[b])
		if int(b)+1 < len(src) {
			word |= uint16(src[b+1]) << 8
		}
		dst = append(dst, byte(word>>(bit%8)&mask))
	}
	return dst
}

// DecodePrefixed reads a level section of a v1 data page: a little endian
// uint32 byte length followed by hybrid runs. It returns the levels and the
// bytes that follow the section.
func DecodePrefixed(data []byte, numValues int, bitWidth uint) ([]byte, []byte, error) {
	if len(data) < 4 {
		return nil, data, errors.Wrap(io.ErrUnexpectedEOF, "level section length")
	}
	n := binary.LittleEndian.Uint32(data)
	if uint64(n) > uint64(len(data)-4) {
		return nil, data, errors.Errorf("level section of %d bytes exceeds the page", n)
	}
	lv, _, err := Decode(data[4:4+n], numValues, bitWidth)
	if err != nil {
		return nil, data, err
	}
	return lv, data[4+n:], nil
}

// CountBelow counts the levels lower than maxLevel. For definition levels
// that is the number of nulls.
func CountBelow(levels []byte, maxLevel int16) int64 {
	var n int64
	for _, l := range levels {
		if int16(l) < maxLevel {
			n++
		}
	}
	return n
}

// Max returns the highest level in levels.
func Max(levels []byte) int16 {
	var m byte
	for _, l := range levels {
		m = max(m, l)
	}
	return int16(m)
}
