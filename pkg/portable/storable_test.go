package portable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPeer struct {
	ID   uint64
	Port uint32
	Tags [][]byte
}

func (p *testPeer) ToSection() (*Section, error) {
	return NewSection().
		Set("id", Uint64(p.ID)).
		Set("port", Uint32(p.Port)).
		Set("tags", BlobArray(p.Tags)), nil
}

func (p *testPeer) FromSection(s *Section) error {
	var err error

	if p.ID, err = s.Uint64("id"); err != nil {
		return err
	}

	if p.Port, err = s.Uint32("port"); err != nil {
		return err
	}

	tags, err := s.Array("tags", TagBlob)
	if err != nil {
		return err
	}

	p.Tags, err = tags.Blobs()

	return err
}

func TestMarshalStorable(t *testing.T) {
	in := &testPeer{ID: 42, Port: 18080, Tags: [][]byte{[]byte("a"), []byte("bc")}}

	data, err := Marshal(in)
	require.NoError(t, err)

	out := &testPeer{}
	require.NoError(t, Unmarshal(data, out))
	assert.Equal(t, in, out)
}

func TestUnmarshalStorableMissingField(t *testing.T) {
	data, err := DefaultCodec.Marshal(NewSection().Set("id", Uint64(1)))
	require.NoError(t, err)

	err = Unmarshal(data, &testPeer{})
	assert.ErrorIs(t, err, ErrFieldMissing)
}
