package protocol

import (
	"encoding/hex"
	"fmt"

	"github.com/ethpandaops/levin/pkg/portable"
)

// Hash is a 32-byte block or transaction identifier.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// fixedBlob reads a blob field that must be exactly len(dst) bytes long.
func fixedBlob(s *portable.Section, name string, dst []byte) error {
	b, err := s.Blob(name)
	if err != nil {
		return err
	}

	if len(b) != len(dst) {
		return fmt.Errorf("field %q: got %d bytes, want %d", name, len(b), len(dst))
	}

	copy(dst, b)

	return nil
}

// joinHashes packs hashes into one blob.
func joinHashes(hashes []Hash) portable.Blob {
	out := make([]byte, 0, len(hashes)*len(Hash{}))
	for _, h := range hashes {
		out = append(out, h[:]...)
	}

	return out
}

// splitHashes unpacks a blob of concatenated hashes.
func splitHashes(s *portable.Section, name string) ([]Hash, error) {
	b, err := s.Blob(name)
	if err != nil {
		return nil, err
	}

	if len(b)%len(Hash{}) != 0 {
		return nil, fmt.Errorf("field %q: length %d is not a multiple of %d", name, len(b), len(Hash{}))
	}

	out := make([]Hash, len(b)/len(Hash{}))
	for i := range out {
		copy(out[i][:], b[i*len(Hash{}):])
	}

	return out, nil
}

func blobs(s *portable.Section, name string) ([][]byte, error) {
	if !s.Has(name) {
		return nil, nil
	}

	a, err := s.Array(name, portable.TagBlob)
	if err != nil {
		return nil, err
	}

	return a.Blobs()
}
