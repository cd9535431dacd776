package levin

import (
	"encoding/binary"
)

const (
	// Signature opens every bucket.
	Signature uint64 = 0x0101010101012101
	// HeaderSize is the encoded size of a bucket header.
	HeaderSize = 33
	// ProtocolVersion is the only bucket protocol version spoken.
	ProtocolVersion uint32 = 1
	// DefaultMaxBodySize bounds the body length accepted from peers.
	DefaultMaxBodySize uint64 = 100_000_000
)

// Flags marks the direction of a bucket.
type Flags uint32

const (
	FlagRequest  Flags = 1
	FlagResponse Flags = 2
)

func (f Flags) String() string {
	switch f {
	case FlagRequest:
		return "request"
	case FlagResponse:
		return "response"
	default:
		return "invalid"
	}
}

// Header is the fixed-size prefix of every bucket. All fields are
// little-endian on the wire, in declaration order after the signature.
type Header struct {
	BodySize        uint64
	ExpectsResponse bool
	Command         uint32
	ReturnCode      ReturnCode
	Flags           Flags
	ProtocolVersion uint32
}

// IsRequest reports whether the bucket is a request or notification.
func (h *Header) IsRequest() bool {
	return h.Flags == FlagRequest
}

// IsResponse reports whether the bucket answers an invocation.
func (h *Header) IsResponse() bool {
	return h.Flags == FlagResponse
}

// AppendBinary appends the encoded header to dst.
func (h *Header) AppendBinary(dst []byte) []byte {
	var b [HeaderSize]byte

	binary.LittleEndian.PutUint64(b[0:8], Signature)
	binary.LittleEndian.PutUint64(b[8:16], h.BodySize)

	if h.ExpectsResponse {
		b[16] = 1
	}

	binary.LittleEndian.PutUint32(b[17:21], h.Command)
	binary.LittleEndian.PutUint32(b[21:25], uint32(h.ReturnCode))
	binary.LittleEndian.PutUint32(b[25:29], uint32(h.Flags))
	binary.LittleEndian.PutUint32(b[29:33], h.ProtocolVersion)

	return append(dst, b[:]...)
}

// DecodeHeader parses and validates a bucket header. A maxBody of zero
// applies DefaultMaxBodySize.
func DecodeHeader(b []byte, maxBody uint64) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, &FrameError{Err: ErrShortHeader, Value: uint64(len(b))}
	}

	if maxBody == 0 {
		maxBody = DefaultMaxBodySize
	}

	if sig := binary.LittleEndian.Uint64(b[0:8]); sig != Signature {
		return Header{}, &FrameError{Err: ErrBadSignature, Value: sig}
	}

	h := Header{
		BodySize:        binary.LittleEndian.Uint64(b[8:16]),
		ExpectsResponse: b[16] != 0,
		Command:         binary.LittleEndian.Uint32(b[17:21]),
		ReturnCode:      ReturnCode(int32(binary.LittleEndian.Uint32(b[21:25]))),
		Flags:           Flags(binary.LittleEndian.Uint32(b[25:29])),
		ProtocolVersion: binary.LittleEndian.Uint32(b[29:33]),
	}

	if h.ProtocolVersion != ProtocolVersion {
		return Header{}, &FrameError{Err: ErrBadProtocolVersion, Value: uint64(h.ProtocolVersion)}
	}

	if h.BodySize > maxBody {
		return Header{}, &FrameError{Err: ErrBodyTooLarge, Value: h.BodySize}
	}

	if h.Flags != FlagRequest && h.Flags != FlagResponse {
		return Header{}, &FrameError{Err: ErrBadFlags, Value: uint64(h.Flags)}
	}

	return h, nil
}
