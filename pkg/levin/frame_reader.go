package levin

import (
	"github.com/ethpandaops/levin/pkg/portable"
)

type frameReaderState int

const (
	frameReadingHeader frameReaderState = iota
	frameReadingBody
)

// FrameReader decodes buckets from a byte stream delivered in arbitrary
// chunks. Frames are produced strictly in arrival order: the header of the
// next bucket is not inspected until the current body has been consumed.
//
// Any error is terminal because the stream cannot be resynchronised.
type FrameReader struct {
	codec   *portable.Codec
	maxBody uint64

	state  frameReaderState
	header [HeaderSize]byte
	have   int
	hdr    Header
	body   *portable.Reader
	err    error
}

// NewFrameReader returns a reader decoding bodies with codec and rejecting
// bodies larger than maxBody. A zero maxBody applies DefaultMaxBodySize.
func NewFrameReader(codec *portable.Codec, maxBody uint64) *FrameReader {
	if codec == nil {
		codec = portable.DefaultCodec
	}

	if maxBody == 0 {
		maxBody = DefaultMaxBodySize
	}

	return &FrameReader{
		codec:   codec,
		maxBody: maxBody,
		body:    codec.NewReader(),
	}
}

// Resume consumes bytes from p and returns how many were used together with
// the next complete message, if any. At most one message is returned per
// call; bytes after it are left for the next call.
func (r *FrameReader) Resume(p []byte) (int, *Message, error) {
	if r.err != nil {
		return 0, nil, r.err
	}

	consumed := 0

	if r.state == frameReadingHeader {
		k := copy(r.header[r.have:], p)
		r.have += k
		consumed += k
		p = p[k:]

		if r.have < HeaderSize {
			return consumed, nil, nil
		}

		hdr, err := DecodeHeader(r.header[:], r.maxBody)
		if err != nil {
			r.err = err

			return consumed, nil, err
		}

		r.hdr = hdr

		if hdr.BodySize == 0 {
			return consumed, r.finish(nil), nil
		}

		r.body.Reset()
		r.body.SetLimit(hdr.BodySize)
		r.state = frameReadingBody
	}

	n, status, err := r.body.Resume(p)
	consumed += n

	if err != nil {
		r.err = &DecodeError{Command: r.hdr.Command, Err: err}

		return consumed, nil, r.err
	}

	if status == portable.Pending {
		return consumed, nil, nil
	}

	if r.body.Consumed() != r.hdr.BodySize {
		r.err = &DecodeError{Command: r.hdr.Command, Err: portable.ErrTrailingData}

		return consumed, nil, r.err
	}

	return consumed, r.finish(r.body.Section()), nil
}

// Buffered reports whether a frame is partially decoded.
func (r *FrameReader) Buffered() bool {
	return r.state != frameReadingHeader || r.have > 0
}

func (r *FrameReader) finish(body *portable.Section) *Message {
	msg := &Message{Header: r.hdr, Body: body}

	r.state = frameReadingHeader
	r.have = 0
	r.hdr = Header{}

	return msg
}
