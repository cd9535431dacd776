package portable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func sampleSection(t *testing.T) *Section {
	t.Helper()

	ids := NewArray(TagUint64)
	require.NoError(t, ids.Append(Uint64(1), Uint64(1<<40), Uint64(7)))

	return NewSection().
		Set("node_data", NewSection().
			Set("network_id", Blob{0x12, 0x30, 0xf1, 0x71}).
			Set("my_port", Uint32(18080))).
		Set("ids", ids).
		Set("blocks", BlobArray([][]byte{make([]byte, 300), {0x01}})).
		Set("ok", Bool(true))
}

// feed drives r with chunks of at most size bytes and returns the number of
// bytes consumed.
func feed(t *testing.T, r *Reader, data []byte, size int) int {
	t.Helper()

	total := 0

	for total < len(data) {
		start := total
		end := min(start+size, len(data))

		n, status, err := r.Resume(data[start:end])
		require.NoError(t, err)

		total += n

		if status == Done {
			return total
		}

		require.Equal(t, end-start, n, "pending reader must consume the whole chunk")
	}

	return total
}

func TestReaderByteAtATime(t *testing.T) {
	s := sampleSection(t)

	encoded, err := DefaultCodec.Marshal(s)
	require.NoError(t, err)

	oneShot, err := DefaultCodec.Unmarshal(encoded)
	require.NoError(t, err)

	r := DefaultCodec.NewReader()
	consumed := feed(t, r, encoded, 1)

	assert.Equal(t, len(encoded), consumed)
	require.NotNil(t, r.Section())
	assert.True(t, oneShot.Equal(r.Section()))
	assert.True(t, s.Equal(r.Section()))
	assert.Equal(t, uint64(len(encoded)), r.Consumed())
}

func TestReaderStopsAtSectionEnd(t *testing.T) {
	encoded, err := DefaultCodec.Marshal(NewSection().Set("a", Uint8(1)))
	require.NoError(t, err)

	data := append(append([]byte{}, encoded...), 0xaa, 0xbb)

	r := DefaultCodec.NewReader()
	n, status, err := r.Resume(data)
	require.NoError(t, err)
	assert.Equal(t, Done, status)
	assert.Equal(t, len(encoded), n)

	// Further input is left alone.
	n, status, err = r.Resume(data[n:])
	require.NoError(t, err)
	assert.Equal(t, Done, status)
	assert.Equal(t, 0, n)
}

func TestReaderSectionBeforeDone(t *testing.T) {
	encoded, err := DefaultCodec.Marshal(NewSection().Set("a", Uint8(1)))
	require.NoError(t, err)

	r := DefaultCodec.NewReader()
	_, status, err := r.Resume(encoded[:len(encoded)-1])
	require.NoError(t, err)
	assert.Equal(t, Pending, status)
	assert.Nil(t, r.Section())
}

func TestReaderErrorIsSticky(t *testing.T) {
	data := withHeader(0x04, 0x01, 'a', 0x0e, 0x00)

	r := DefaultCodec.NewReader()
	_, _, err := r.Resume(data)
	require.ErrorIs(t, err, ErrUnknownTag)

	n, status, err := r.Resume([]byte{0x00})
	assert.ErrorIs(t, err, ErrUnknownTag)
	assert.Equal(t, Pending, status)
	assert.Equal(t, 0, n)
	assert.Nil(t, r.Section())
}

func TestReaderLimit(t *testing.T) {
	encoded, err := DefaultCodec.Marshal(sampleSection(t))
	require.NoError(t, err)

	r := DefaultCodec.NewReader()
	r.SetLimit(uint64(len(encoded) - 1))

	_, _, err = r.Resume(encoded)
	assert.ErrorIs(t, err, ErrUnexpectedEnd)
}

func TestReaderReset(t *testing.T) {
	first, err := DefaultCodec.Marshal(NewSection().Set("a", Uint8(1)))
	require.NoError(t, err)

	second, err := DefaultCodec.Marshal(NewSection().Set("b", Uint8(2)))
	require.NoError(t, err)

	r := DefaultCodec.NewReader()
	_, status, err := r.Resume(first)
	require.NoError(t, err)
	require.Equal(t, Done, status)

	r.Reset()

	_, status, err = r.Resume(second)
	require.NoError(t, err)
	require.Equal(t, Done, status)
	assert.Equal(t, []string{"b"}, r.Section().Names())
}

func TestReaderChunkingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := genSection(t, 3)

		encoded, err := DefaultCodec.Marshal(s)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		r := DefaultCodec.NewReader()
		r.SetLimit(uint64(len(encoded)))

		offset := 0
		status := Pending

		for offset < len(encoded) {
			size := rapid.IntRange(1, 16).Draw(t, "chunk")
			end := min(offset+size, len(encoded))

			n, st, err := r.Resume(encoded[offset:end])
			if err != nil {
				t.Fatalf("resume at %d: %v", offset, err)
			}

			offset += n
			status = st
		}

		if status != Done {
			t.Fatalf("reader not done after %d bytes", offset)
		}

		if !s.Equal(r.Section()) {
			t.Fatalf("chunked decode differs from the original")
		}
	})
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "done", Done.String())
}
