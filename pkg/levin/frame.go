package levin

import (
	"github.com/ethpandaops/levin/pkg/portable"
)

// Message is a decoded bucket.
type Message struct {
	Header Header
	// Body is nil when the bucket carried no body, which peers do for
	// error responses.
	Body *portable.Section
}

func frame(h Header, body []byte) []byte {
	h.BodySize = uint64(len(body))
	h.ProtocolVersion = ProtocolVersion

	out := make([]byte, 0, HeaderSize+len(body))
	out = h.AppendBinary(out)

	return append(out, body...)
}

// RequestFrame builds a bucket invoking command id with an encoded body.
func RequestFrame(id uint32, body []byte) []byte {
	return frame(Header{
		ExpectsResponse: true,
		Command:         id,
		ReturnCode:      ReturnOK,
		Flags:           FlagRequest,
	}, body)
}

// ResponseFrame builds a bucket answering command id.
func ResponseFrame(id uint32, code ReturnCode, body []byte) []byte {
	return frame(Header{
		Command:    id,
		ReturnCode: code,
		Flags:      FlagResponse,
	}, body)
}

// NotifyFrame builds a one-way bucket for notification id.
func NotifyFrame(id uint32, body []byte) []byte {
	return frame(Header{
		Command:    id,
		ReturnCode: ReturnOK,
		Flags:      FlagRequest,
	}, body)
}
