package portable

import (
	"encoding/binary"
)

// Size classes carried in the two marker bits of a RawSize.
const (
	rawSizeClass1 = 0
	rawSizeClass2 = 1
	rawSizeClass4 = 2
	rawSizeClass8 = 3

	rawSizeMarkerMask = 0x03
)

// MaxRawSize is the largest value representable as a RawSize.
const MaxRawSize uint64 = 1<<62 - 1

// rawSizeWidths maps a size class to its encoded width in bytes.
var rawSizeWidths = [4]int{1, 2, 4, 8}

// RawSizeLen returns the canonical encoded width of n, or 0 if n is too large.
func RawSizeLen(n uint64) int {
	switch {
	case n <= 1<<6-1:
		return 1
	case n <= 1<<14-1:
		return 2
	case n <= 1<<30-1:
		return 4
	case n <= MaxRawSize:
		return 8
	default:
		return 0
	}
}

func rawSizeClass(width int) uint64 {
	switch width {
	case 1:
		return rawSizeClass1
	case 2:
		return rawSizeClass2
	case 4:
		return rawSizeClass4
	default:
		return rawSizeClass8
	}
}

// AppendRawSize appends the canonical RawSize encoding of n to dst.
//
// With a little-endian order the marker is the low two bits of the value word,
// which puts it in the first wire byte. With a big-endian order the marker is
// the high two bits of the word, which again puts it in the first wire byte.
func AppendRawSize(order binary.ByteOrder, dst []byte, n uint64) ([]byte, error) {
	width := RawSizeLen(n)
	if width == 0 {
		return dst, ErrRawSizeOverflow
	}

	class := rawSizeClass(width)

	var word uint64
	if isLittleEndian(order) {
		word = n<<2 | class
	} else {
		word = n | class<<(uint(width)*8-2)
	}

	return appendUint(order, dst, width, word), nil
}

// ReadRawSize decodes a RawSize from the front of src and returns the value
// and the number of bytes consumed. Non-canonical widths are accepted.
func ReadRawSize(order binary.ByteOrder, src []byte) (uint64, int, error) {
	if len(src) == 0 {
		return 0, 0, ErrUnexpectedEnd
	}

	width := rawSizeWidth(order, src[0])
	if len(src) < width {
		return 0, 0, ErrUnexpectedEnd
	}

	return rawSizeValue(order, src[:width]), width, nil
}

// rawSizeWidth returns the encoded width announced by the first wire byte.
func rawSizeWidth(order binary.ByteOrder, first byte) int {
	if isLittleEndian(order) {
		return rawSizeWidths[first&rawSizeMarkerMask]
	}

	return rawSizeWidths[first>>6]
}

// rawSizeValue extracts the value from a complete encoding.
func rawSizeValue(order binary.ByteOrder, b []byte) uint64 {
	word := readUint(order, b)
	if isLittleEndian(order) {
		return word >> 2
	}

	return word & (1<<(uint(len(b))*8-2) - 1)
}

func isLittleEndian(order binary.ByteOrder) bool {
	var b [2]byte

	order.PutUint16(b[:], 1)

	return b[0] == 1
}

func appendUint(order binary.ByteOrder, dst []byte, width int, v uint64) []byte {
	var b [8]byte

	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		order.PutUint16(b[:2], uint16(v))
	case 4:
		order.PutUint32(b[:4], uint32(v))
	default:
		order.PutUint64(b[:8], v)
	}

	return append(dst, b[:width]...)
}

func readUint(order binary.ByteOrder, b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	default:
		return order.Uint64(b)
	}
}
