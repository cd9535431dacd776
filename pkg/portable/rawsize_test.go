package portable

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAppendRawSize(t *testing.T) {
	tests := []struct {
		name     string
		n        uint64
		expected []byte
	}{
		{name: "zero", n: 0, expected: []byte{0x00}},
		{name: "largest 1 byte", n: 63, expected: []byte{0xfc}},
		{name: "smallest 2 byte", n: 64, expected: []byte{0x01, 0x01}},
		{name: "largest 2 byte", n: 16383, expected: []byte{0xfd, 0xff}},
		{name: "smallest 4 byte", n: 16384, expected: []byte{0x02, 0x00, 0x01, 0x00}},
		{name: "largest 4 byte", n: 1<<30 - 1, expected: []byte{0xfe, 0xff, 0xff, 0xff}},
		{name: "smallest 8 byte", n: 1 << 30, expected: []byte{0x03, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}},
		{name: "max", n: MaxRawSize, expected: []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AppendRawSize(binary.LittleEndian, nil, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Len(t, got, RawSizeLen(tt.n))

			n, size, err := ReadRawSize(binary.LittleEndian, got)
			require.NoError(t, err)
			assert.Equal(t, tt.n, n)
			assert.Equal(t, len(tt.expected), size)
		})
	}
}

func TestAppendRawSizeOverflow(t *testing.T) {
	_, err := AppendRawSize(binary.LittleEndian, nil, MaxRawSize+1)
	assert.ErrorIs(t, err, ErrRawSizeOverflow)
	assert.Equal(t, 0, RawSizeLen(MaxRawSize+1))
}

func TestReadRawSizeNonCanonical(t *testing.T) {
	// 5 encoded in the 8 byte class.
	n, size, err := ReadRawSize(binary.LittleEndian, []byte{0x17, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)
	assert.Equal(t, 8, size)

	// 1 encoded in the 2 byte class.
	n, size, err = ReadRawSize(binary.LittleEndian, []byte{0x05, 0x00})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	assert.Equal(t, 2, size)
}

func TestReadRawSizeTruncated(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{name: "empty", input: nil},
		{name: "2 byte class with 1 byte", input: []byte{0x01}},
		{name: "4 byte class with 3 bytes", input: []byte{0x02, 0x00, 0x00}},
		{name: "8 byte class with 7 bytes", input: []byte{0x03, 0, 0, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadRawSize(binary.LittleEndian, tt.input)
			assert.ErrorIs(t, err, ErrUnexpectedEnd)
		})
	}
}

func TestRawSizeBigEndian(t *testing.T) {
	got, err := AppendRawSize(binary.BigEndian, nil, 64)
	require.NoError(t, err)
	// Class marker in the top two bits of the first byte.
	assert.Equal(t, []byte{0x40, 0x40}, got)

	n, size, err := ReadRawSize(binary.BigEndian, got)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), n)
	assert.Equal(t, 2, size)
}

func TestRawSizeRoundTripProperty(t *testing.T) {
	orders := []binary.ByteOrder{binary.LittleEndian, binary.BigEndian}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Uint64Range(0, 1<<61-1).Draw(t, "n")
		order := rapid.SampledFrom(orders).Draw(t, "order")

		encoded, err := AppendRawSize(order, nil, n)
		if err != nil {
			t.Fatalf("encode %d: %v", n, err)
		}

		want := 1
		for _, w := range []int{1, 2, 4, 8} {
			if n <= uint64(1)<<(uint(w)*8-2)-1 {
				want = w

				break
			}
		}

		if len(encoded) != want {
			t.Fatalf("encode %d used %d bytes, want %d", n, len(encoded), want)
		}

		got, size, err := ReadRawSize(order, encoded)
		if err != nil {
			t.Fatalf("decode %x: %v", encoded, err)
		}

		if got != n || size != len(encoded) {
			t.Fatalf("decode %x = (%d, %d), want (%d, %d)", encoded, got, size, n, len(encoded))
		}
	})
}

func TestRawSizeReaderResumes(t *testing.T) {
	encoded, err := AppendRawSize(binary.LittleEndian, nil, 1<<40)
	require.NoError(t, err)

	st := &decodeState{order: binary.LittleEndian, maxDepth: DefaultMaxDepth}
	r := &rawSizeReader{}

	for i, b := range encoded {
		done, err := r.step(&cursor{buf: []byte{b}, st: st})
		require.NoError(t, err)
		assert.Equal(t, i == len(encoded)-1, done)
	}

	assert.Equal(t, uint64(1<<40), r.n)
}
