package levin

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderAppendBinary(t *testing.T) {
	h := Header{
		BodySize:        10,
		ExpectsResponse: true,
		Command:         1001,
		ReturnCode:      ReturnErrFormat,
		Flags:           FlagRequest,
		ProtocolVersion: ProtocolVersion,
	}

	want := "0121010101010101" + // signature
		"0a00000000000000" + // body size
		"01" + // expects response
		"e9030000" + // command
		"f9ffffff" + // return code
		"01000000" + // flags
		"01000000" // protocol version

	got := h.AppendBinary(nil)
	require.Len(t, got, HeaderSize)
	assert.Equal(t, want, hex.EncodeToString(got))

	decoded, err := DecodeHeader(got, 0)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestDecodeHeaderRejects(t *testing.T) {
	valid := Header{
		BodySize:        16,
		Command:         1003,
		Flags:           FlagResponse,
		ProtocolVersion: ProtocolVersion,
	}

	tests := []struct {
		name    string
		mutate  func(b []byte) []byte
		maxBody uint64
		want    error
	}{
		{
			name:   "short",
			mutate: func(b []byte) []byte { return b[:HeaderSize-1] },
			want:   ErrShortHeader,
		},
		{
			name:   "flipped signature byte",
			mutate: func(b []byte) []byte {
				b[3] ^= 0xff
				return b
			},
			want:   ErrBadSignature,
		},
		{
			name:   "wrong protocol version",
			mutate: func(b []byte) []byte {
				b[29] = 2
				return b
			},
			want:   ErrBadProtocolVersion,
		},
		{
			name:    "body above limit",
			mutate:  func(b []byte) []byte { return b },
			maxBody: 15,
			want:    ErrBodyTooLarge,
		},
		{
			name:   "body above default limit",
			mutate: func(b []byte) []byte {
				b[8], b[9], b[10], b[11] = 0xff, 0xff, 0xff, 0xff
				return b
			},
			want:   ErrBodyTooLarge,
		},
		{
			name:   "no flags",
			mutate: func(b []byte) []byte {
				b[25] = 0
				return b
			},
			want:   ErrBadFlags,
		},
		{
			name:   "both flags",
			mutate: func(b []byte) []byte {
				b[25] = 3
				return b
			},
			want:   ErrBadFlags,
		},
		{
			name:   "fragment flag",
			mutate: func(b []byte) []byte {
				b[25] = 4
				return b
			},
			want:   ErrBadFlags,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.mutate(valid.AppendBinary(nil))

			_, err := DecodeHeader(b, tt.maxBody)
			require.ErrorIs(t, err, tt.want)

			var frameErr *FrameError
			require.ErrorAs(t, err, &frameErr)
		})
	}
}

func TestReturnCode(t *testing.T) {
	assert.True(t, ReturnOK.Success())
	assert.True(t, ReturnCode(1).Success())
	assert.False(t, ReturnErrConnection.Success())
	assert.False(t, ReturnErrFormat.Success())

	assert.Equal(t, "handler_not_defined", ReturnErrHandlerNotDefined.String())
	assert.Equal(t, "error(-42)", ReturnCode(-42).String())
	assert.Equal(t, "ok(3)", ReturnCode(3).String())
}
