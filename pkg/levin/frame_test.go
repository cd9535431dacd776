package levin

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/ethpandaops/levin/pkg/portable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBody(t *testing.T) ([]byte, *portable.Section) {
	t.Helper()

	s := portable.NewSection().
		Set("peer_id", portable.Uint64(0x1122334455667788)).
		Set("node", portable.NewSection().Set("port", portable.Uint32(18080))).
		Set("blobs", portable.BlobArray([][]byte{[]byte("a"), []byte("bc")}))

	body, err := portable.DefaultCodec.Marshal(s)
	require.NoError(t, err)

	return body, s
}

func TestFrameBuilders(t *testing.T) {
	body, _ := testBody(t)

	tests := []struct {
		name     string
		frame    []byte
		expects  bool
		flags    Flags
		code     ReturnCode
		command  uint32
		bodySize int
	}{
		{
			name:     "request",
			frame:    RequestFrame(1001, body),
			expects:  true,
			flags:    FlagRequest,
			command:  1001,
			bodySize: len(body),
		},
		{
			name:     "response",
			frame:    ResponseFrame(1002, ReturnErrHandlerNotDefined, nil),
			flags:    FlagResponse,
			code:     ReturnErrHandlerNotDefined,
			command:  1002,
			bodySize: 0,
		},
		{
			name:     "notify",
			frame:    NotifyFrame(2001, body),
			flags:    FlagRequest,
			command:  2001,
			bodySize: len(body),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Len(t, tt.frame, HeaderSize+tt.bodySize)

			h, err := DecodeHeader(tt.frame, 0)
			require.NoError(t, err)

			assert.Equal(t, tt.expects, h.ExpectsResponse)
			assert.Equal(t, tt.flags, h.Flags)
			assert.Equal(t, tt.code, h.ReturnCode)
			assert.Equal(t, tt.command, h.Command)
			assert.Equal(t, uint64(tt.bodySize), h.BodySize)
			assert.Equal(t, ProtocolVersion, h.ProtocolVersion)
		})
	}
}

func readAll(t *testing.T, r *FrameReader, data []byte, chunk int) []*Message {
	t.Helper()

	var out []*Message

	for start := 0; start < len(data); start += chunk {
		end := min(start+chunk, len(data))
		p := data[start:end]

		for len(p) > 0 {
			n, msg, err := r.Resume(p)
			require.NoError(t, err)

			p = p[n:]

			if msg != nil {
				out = append(out, msg)
			}
		}
	}

	return out
}

func TestFrameReaderChunking(t *testing.T) {
	body, section := testBody(t)

	stream := RequestFrame(1001, body)
	stream = append(stream, ResponseFrame(1002, ReturnErrFormat, nil)...)
	stream = append(stream, NotifyFrame(2002, body)...)

	for _, chunk := range []int{1, 2, 7, 33, 34, len(stream)} {
		msgs := readAll(t, NewFrameReader(nil, 0), stream, chunk)
		require.Len(t, msgs, 3, "chunk %d", chunk)

		assert.Equal(t, uint32(1001), msgs[0].Header.Command)
		assert.True(t, section.Equal(msgs[0].Body))

		assert.Equal(t, uint32(1002), msgs[1].Header.Command)
		assert.Equal(t, ReturnErrFormat, msgs[1].Header.ReturnCode)
		assert.Nil(t, msgs[1].Body)

		assert.Equal(t, uint32(2002), msgs[2].Header.Command)
		assert.True(t, section.Equal(msgs[2].Body))
	}
}

func TestFrameReaderOneMessagePerCall(t *testing.T) {
	first := NotifyFrame(2001, nil)
	second := NotifyFrame(2002, nil)

	r := NewFrameReader(nil, 0)

	n, msg, err := r.Resume(append(append([]byte{}, first...), second...))
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, len(first), n)
	assert.Equal(t, uint32(2001), msg.Header.Command)
	assert.False(t, r.Buffered())
}

func TestFrameReaderErrors(t *testing.T) {
	body, _ := testBody(t)

	bad := RequestFrame(1001, body)
	bad[0] ^= 0x01

	r := NewFrameReader(nil, 0)

	_, _, err := r.Resume(bad)
	require.ErrorIs(t, err, ErrBadSignature)

	// Terminal.
	_, _, err = r.Resume(RequestFrame(1001, body))
	require.ErrorIs(t, err, ErrBadSignature)

	t.Run("body over limit", func(t *testing.T) {
		r := NewFrameReader(nil, uint64(len(body)-1))

		_, _, err := r.Resume(RequestFrame(1001, body))
		require.ErrorIs(t, err, ErrBodyTooLarge)
	})

	t.Run("trailing bytes in body", func(t *testing.T) {
		padded := append(append([]byte{}, body...), 0x00)

		r := NewFrameReader(nil, 0)

		_, _, err := r.Resume(RequestFrame(1001, padded))
		require.ErrorIs(t, err, portable.ErrTrailingData)

		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, uint32(1001), decodeErr.Command)
	})

	t.Run("body shorter than section", func(t *testing.T) {
		frame := RequestFrame(1001, body[:len(body)-1])

		r := NewFrameReader(nil, 0)

		_, _, err := r.Resume(frame)

		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
	})

	t.Run("body is not portable storage", func(t *testing.T) {
		r := NewFrameReader(nil, 0)

		_, _, err := r.Resume(RequestFrame(1001, []byte("not a section")))
		require.ErrorIs(t, err, portable.ErrInvalidHeader)
	})
}

type stallingWriter struct {
	bytes.Buffer
	chunk int
	stall bool
}

func (w *stallingWriter) Write(p []byte) (int, error) {
	if w.stall {
		w.stall = false

		return 0, os.ErrDeadlineExceeded
	}

	w.stall = true

	n := min(len(p), w.chunk)
	w.Buffer.Write(p[:n])

	return n, nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func TestFrameWriterResumes(t *testing.T) {
	body, _ := testBody(t)
	frame := RequestFrame(1001, body)

	w := NewFrameWriter(frame)
	out := &stallingWriter{chunk: 5}

	pending := 0

	for {
		status, err := w.Resume(out)
		require.NoError(t, err)

		if status == portable.Done {
			break
		}

		pending++
		require.Less(t, pending, len(frame), "writer made no progress")
	}

	assert.Equal(t, frame, out.Bytes())
	assert.Equal(t, len(frame), w.Written())
	assert.Greater(t, pending, 1)

	status, err := w.Resume(out)
	require.NoError(t, err)
	assert.Equal(t, portable.Done, status)
	assert.Equal(t, frame, out.Bytes())
}

func TestFrameWriterError(t *testing.T) {
	w := NewFrameWriter(NotifyFrame(2001, nil))

	_, err := w.Resume(failingWriter{})
	require.ErrorIs(t, err, io.ErrClosedPipe)
}
