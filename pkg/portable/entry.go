package portable

import (
	"bytes"
	"math"
)

// Entry is a single typed value stored in a Section or an Array.
//
// The set of implementations is closed: the scalar types below, Blob,
// *Section and *Array.
type Entry interface {
	// Tag returns the wire tag of the entry. Arrays report TagArray; their
	// element tag is available through Array.Elem.
	Tag() Tag

	sealed()
}

type (
	Int64   int64
	Int32   int32
	Int16   int16
	Int8    int8
	Uint64  uint64
	Uint32  uint32
	Uint16  uint16
	Uint8   uint8
	Float64 float64
	Bool    bool
	// Blob is an opaque length-prefixed byte string. The format calls it a
	// string but does not require it to be UTF-8.
	Blob []byte
)

func (Int64) Tag() Tag   { return TagInt64 }
func (Int32) Tag() Tag   { return TagInt32 }
func (Int16) Tag() Tag   { return TagInt16 }
func (Int8) Tag() Tag    { return TagInt8 }
func (Uint64) Tag() Tag  { return TagUint64 }
func (Uint32) Tag() Tag  { return TagUint32 }
func (Uint16) Tag() Tag  { return TagUint16 }
func (Uint8) Tag() Tag   { return TagUint8 }
func (Float64) Tag() Tag { return TagFloat64 }
func (Bool) Tag() Tag    { return TagBool }
func (Blob) Tag() Tag    { return TagBlob }

func (Int64) sealed()   {}
func (Int32) sealed()   {}
func (Int16) sealed()   {}
func (Int8) sealed()    {}
func (Uint64) sealed()  {}
func (Uint32) sealed()  {}
func (Uint16) sealed()  {}
func (Uint8) sealed()   {}
func (Float64) sealed() {}
func (Bool) sealed()    {}
func (Blob) sealed()    {}

// String is a convenience constructor for blobs holding text.
func String(s string) Blob {
	return Blob(s)
}

// scalarBits returns the raw bits of a fixed-width entry, zero-extended.
func scalarBits(e Entry) uint64 {
	switch v := e.(type) {
	case Int64:
		return uint64(v)
	case Int32:
		return uint64(uint32(v))
	case Int16:
		return uint64(uint16(v))
	case Int8:
		return uint64(uint8(v))
	case Uint64:
		return uint64(v)
	case Uint32:
		return uint64(v)
	case Uint16:
		return uint64(v)
	case Uint8:
		return uint64(v)
	case Float64:
		return math.Float64bits(float64(v))
	case Bool:
		if v {
			return 1
		}

		return 0
	default:
		return 0
	}
}

// scalarFromBits builds the entry for a fixed-width tag from its raw bits.
func scalarFromBits(t Tag, bits uint64) Entry {
	switch t {
	case TagInt64:
		return Int64(bits)
	case TagInt32:
		return Int32(uint32(bits))
	case TagInt16:
		return Int16(uint16(bits))
	case TagInt8:
		return Int8(uint8(bits))
	case TagUint64:
		return Uint64(bits)
	case TagUint32:
		return Uint32(bits)
	case TagUint16:
		return Uint16(bits)
	case TagUint8:
		return Uint8(bits)
	case TagFloat64:
		return Float64(math.Float64frombits(bits))
	case TagBool:
		return Bool(bits != 0)
	default:
		return nil
	}
}

// EntryEqual reports whether two entries hold the same type and value.
// Blobs compare by content, so a nil and an empty blob are equal. Floats
// compare by bit pattern.
func EntryEqual(a, b Entry) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if a.Tag() != b.Tag() {
		return false
	}

	switch av := a.(type) {
	case Blob:
		bv, _ := b.(Blob)

		return bytes.Equal(av, bv)
	case *Section:
		bv, _ := b.(*Section)

		return av.Equal(bv)
	case *Array:
		bv, _ := b.(*Array)

		return av.Equal(bv)
	default:
		return scalarBits(a) == scalarBits(b)
	}
}
