package portable

import (
	"encoding/binary"
	"unicode/utf8"
)

// Storage header constants.
const (
	SignatureA    uint32 = 0x01011101
	SignatureB    uint32 = 0x01020101
	FormatVersion byte   = 1

	// HeaderSize is the size of the storage header preceding every payload.
	HeaderSize = 9

	// MaxNameLen is the longest field name the format can carry.
	MaxNameLen = 255

	// DefaultMaxDepth bounds section nesting while encoding and decoding.
	DefaultMaxDepth = 100
)

// Options configures a Codec.
type Options struct {
	// Order is the byte order of scalars, RawSize values and the storage
	// header. The legacy network format is little-endian.
	Order binary.ByteOrder
	// MaxDepth bounds section nesting. The top-level section has depth 1.
	MaxDepth int
}

// DefaultOptions returns the options of the legacy network format.
func DefaultOptions() Options {
	return Options{
		Order:    binary.LittleEndian,
		MaxDepth: DefaultMaxDepth,
	}
}

// Codec encodes and decodes sections. It is safe for concurrent use.
type Codec struct {
	order    binary.ByteOrder
	maxDepth int
}

// NewCodec creates a codec. Zero option fields fall back to DefaultOptions.
func NewCodec(opts Options) *Codec {
	defaults := DefaultOptions()

	if opts.Order == nil {
		opts.Order = defaults.Order
	}

	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaults.MaxDepth
	}

	return &Codec{
		order:    opts.Order,
		maxDepth: opts.MaxDepth,
	}
}

// DefaultCodec is the little-endian codec used by the network protocol.
var DefaultCodec = NewCodec(DefaultOptions())

// Order returns the codec byte order.
func (c *Codec) Order() binary.ByteOrder {
	return c.order
}

// Marshal encodes s preceded by the storage header.
func (c *Codec) Marshal(s *Section) ([]byte, error) {
	return c.AppendMarshal(make([]byte, 0, 256), s)
}

// AppendMarshal appends the storage header and the encoding of s to dst.
func (c *Codec) AppendMarshal(dst []byte, s *Section) ([]byte, error) {
	dst = c.appendHeader(dst)

	return c.appendSection(dst, s, 1)
}

// AppendSection appends the bare encoding of s (no storage header) to dst.
func (c *Codec) AppendSection(dst []byte, s *Section) ([]byte, error) {
	return c.appendSection(dst, s, 1)
}

// Unmarshal decodes a complete payload. The whole buffer must be consumed.
func (c *Codec) Unmarshal(data []byte) (*Section, error) {
	if len(data) == 0 {
		return nil, ErrUnexpectedEnd
	}

	r := c.NewReader()
	r.SetLimit(uint64(len(data)))

	n, status, err := r.Resume(data)
	if err != nil {
		return nil, err
	}

	if status != Done {
		return nil, ErrUnexpectedEnd
	}

	if n != len(data) {
		return nil, ErrTrailingData
	}

	return r.Section(), nil
}

func (c *Codec) appendHeader(dst []byte) []byte {
	dst = appendUint(c.order, dst, 4, uint64(SignatureA))
	dst = appendUint(c.order, dst, 4, uint64(SignatureB))

	return append(dst, FormatVersion)
}

func (c *Codec) appendSection(dst []byte, s *Section, depth int) ([]byte, error) {
	if s == nil {
		return dst, ErrNilSection
	}

	if depth > c.maxDepth {
		return dst, ErrMaxDepth
	}

	dst, err := AppendRawSize(c.order, dst, uint64(s.Len()))
	if err != nil {
		return dst, err
	}

	for _, name := range s.names {
		if len(name) > MaxNameLen {
			return dst, ErrNameTooLong
		}

		if !utf8.ValidString(name) {
			return dst, ErrInvalidName
		}

		dst = append(dst, byte(len(name)))
		dst = append(dst, name...)

		if dst, err = c.appendEntry(dst, s.values[name], depth); err != nil {
			return dst, err
		}
	}

	return dst, nil
}

func (c *Codec) appendEntry(dst []byte, e Entry, depth int) ([]byte, error) {
	if e == nil {
		return dst, &UnknownTagError{}
	}

	a, ok := e.(*Array)
	if !ok {
		dst = append(dst, byte(e.Tag()))

		return c.appendValue(dst, e, depth)
	}

	if a == nil || !a.elem.Valid() {
		return dst, ErrArrayElementType
	}

	dst = append(dst, byte(a.elem)|ArrayFlag)

	dst, err := AppendRawSize(c.order, dst, uint64(len(a.items)))
	if err != nil {
		return dst, err
	}

	for _, item := range a.items {
		if item == nil || item.Tag() != a.elem {
			return dst, ErrArrayElementType
		}

		if dst, err = c.appendValue(dst, item, depth); err != nil {
			return dst, err
		}
	}

	return dst, nil
}

// appendValue writes the untagged payload of e.
func (c *Codec) appendValue(dst []byte, e Entry, depth int) ([]byte, error) {
	switch v := e.(type) {
	case Blob:
		dst, err := AppendRawSize(c.order, dst, uint64(len(v)))
		if err != nil {
			return dst, err
		}

		return append(dst, v...), nil
	case *Section:
		return c.appendSection(dst, v, depth+1)
	case *Array:
		return dst, &UnknownTagError{Tag: byte(TagArray)}
	default:
		return appendUint(c.order, dst, e.Tag().width(), scalarBits(e)), nil
	}
}
