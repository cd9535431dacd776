package protocol

import (
	"fmt"

	"github.com/ethpandaops/levin/pkg/portable"
)

// BlockCompleteEntry is a block together with its transactions, all opaque.
type BlockCompleteEntry struct {
	Block        []byte
	Transactions [][]byte
	// Pruned and BlockWeight are only set for pruned entries.
	Pruned      bool
	BlockWeight uint64
}

// ToSection implements portable.Storable.
func (e *BlockCompleteEntry) ToSection() (*portable.Section, error) {
	s := portable.NewSection()

	if e.Pruned {
		s.Set("pruned", portable.Bool(true))
	}

	s.Set("block", portable.Blob(e.Block))

	if e.Pruned {
		s.Set("block_weight", portable.Uint64(e.BlockWeight))
	}

	if len(e.Transactions) > 0 {
		s.Set("txs", portable.BlobArray(e.Transactions))
	}

	return s, nil
}

// FromSection implements portable.Storable.
func (e *BlockCompleteEntry) FromSection(s *portable.Section) error {
	var err error

	if s.Has("pruned") {
		if e.Pruned, err = s.Bool("pruned"); err != nil {
			return err
		}
	}

	if e.Block, err = s.Blob("block"); err != nil {
		return err
	}

	if s.Has("block_weight") {
		if e.BlockWeight, err = s.Uint64("block_weight"); err != nil {
			return err
		}
	}

	e.Transactions, err = blobs(s, "txs")

	return err
}

func blockEntriesToArray(entries []BlockCompleteEntry) (*portable.Array, error) {
	sections := make([]*portable.Section, 0, len(entries))

	for i := range entries {
		s, err := entries[i].ToSection()
		if err != nil {
			return nil, err
		}

		sections = append(sections, s)
	}

	return portable.SectionArray(sections), nil
}

func blockEntriesFromSection(s *portable.Section, name string) ([]BlockCompleteEntry, error) {
	if !s.Has(name) {
		return nil, nil
	}

	a, err := s.Array(name, portable.TagSection)
	if err != nil {
		return nil, err
	}

	sections, err := a.Sections()
	if err != nil {
		return nil, err
	}

	out := make([]BlockCompleteEntry, len(sections))
	for i, sec := range sections {
		if err := out[i].FromSection(sec); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
	}

	return out, nil
}

// NewBlock announces a freshly mined block.
type NewBlock struct {
	Block         BlockCompleteEntry
	CurrentHeight uint64
}

// ToSection implements portable.Storable.
func (n *NewBlock) ToSection() (*portable.Section, error) {
	b, err := n.Block.ToSection()
	if err != nil {
		return nil, err
	}

	return portable.NewSection().
		Set("b", b).
		Set("current_blockchain_height", portable.Uint64(n.CurrentHeight)), nil
}

// FromSection implements portable.Storable.
func (n *NewBlock) FromSection(s *portable.Section) error {
	b, err := s.Section("b")
	if err != nil {
		return err
	}

	if err := n.Block.FromSection(b); err != nil {
		return err
	}

	n.CurrentHeight, err = s.Uint64("current_blockchain_height")

	return err
}

// NewFluffyBlock announces a block whose transactions the receiver is
// expected to already hold.
type NewFluffyBlock NewBlock

// ToSection implements portable.Storable.
func (n *NewFluffyBlock) ToSection() (*portable.Section, error) {
	return (*NewBlock)(n).ToSection()
}

// FromSection implements portable.Storable.
func (n *NewFluffyBlock) FromSection(s *portable.Section) error {
	return (*NewBlock)(n).FromSection(s)
}

// NewTransactions relays transactions.
type NewTransactions struct {
	Transactions [][]byte
	// Padding hides the true message size from observers.
	Padding []byte
	Fluff   bool
}

// ToSection implements portable.Storable.
func (n *NewTransactions) ToSection() (*portable.Section, error) {
	s := portable.NewSection()

	if len(n.Transactions) > 0 {
		s.Set("txs", portable.BlobArray(n.Transactions))
	}

	if len(n.Padding) > 0 {
		s.Set("_", portable.Blob(n.Padding))
	}

	return s.Set("dandelionpp_fluff", portable.Bool(n.Fluff)), nil
}

// FromSection implements portable.Storable.
func (n *NewTransactions) FromSection(s *portable.Section) error {
	var err error

	if n.Transactions, err = blobs(s, "txs"); err != nil {
		return err
	}

	if s.Has("_") {
		if n.Padding, err = s.Blob("_"); err != nil {
			return err
		}
	}

	if s.Has("dandelionpp_fluff") {
		if n.Fluff, err = s.Bool("dandelionpp_fluff"); err != nil {
			return err
		}
	}

	return nil
}

// RequestGetObjects asks for blocks by hash.
type RequestGetObjects struct {
	Blocks []Hash
	Prune  bool
}

// ToSection implements portable.Storable.
func (r *RequestGetObjects) ToSection() (*portable.Section, error) {
	return portable.NewSection().
		Set("blocks", joinHashes(r.Blocks)).
		Set("prune", portable.Bool(r.Prune)), nil
}

// FromSection implements portable.Storable.
func (r *RequestGetObjects) FromSection(s *portable.Section) error {
	var err error

	if r.Blocks, err = splitHashes(s, "blocks"); err != nil {
		return err
	}

	if s.Has("prune") {
		if r.Prune, err = s.Bool("prune"); err != nil {
			return err
		}
	}

	return nil
}

// ResponseGetObjects answers RequestGetObjects.
type ResponseGetObjects struct {
	Blocks        []BlockCompleteEntry
	MissedIDs     []Hash
	CurrentHeight uint64
}

// ToSection implements portable.Storable.
func (r *ResponseGetObjects) ToSection() (*portable.Section, error) {
	s := portable.NewSection()

	if len(r.Blocks) > 0 {
		blocks, err := blockEntriesToArray(r.Blocks)
		if err != nil {
			return nil, err
		}

		s.Set("blocks", blocks)
	}

	return s.
		Set("missed_ids", joinHashes(r.MissedIDs)).
		Set("current_blockchain_height", portable.Uint64(r.CurrentHeight)), nil
}

// FromSection implements portable.Storable.
func (r *ResponseGetObjects) FromSection(s *portable.Section) error {
	var err error

	if r.Blocks, err = blockEntriesFromSection(s, "blocks"); err != nil {
		return err
	}

	if s.Has("missed_ids") {
		if r.MissedIDs, err = splitHashes(s, "missed_ids"); err != nil {
			return err
		}
	}

	r.CurrentHeight, err = s.Uint64("current_blockchain_height")

	return err
}

// RequestChain asks for the chain following the sparse list of known ids.
type RequestChain struct {
	BlockIDs []Hash
	Prune    bool
}

// ToSection implements portable.Storable.
func (r *RequestChain) ToSection() (*portable.Section, error) {
	return portable.NewSection().
		Set("block_ids", joinHashes(r.BlockIDs)).
		Set("prune", portable.Bool(r.Prune)), nil
}

// FromSection implements portable.Storable.
func (r *RequestChain) FromSection(s *portable.Section) error {
	var err error

	if r.BlockIDs, err = splitHashes(s, "block_ids"); err != nil {
		return err
	}

	if s.Has("prune") {
		if r.Prune, err = s.Bool("prune"); err != nil {
			return err
		}
	}

	return nil
}

// ResponseChainEntry answers RequestChain.
type ResponseChainEntry struct {
	StartHeight               uint64
	TotalHeight               uint64
	CumulativeDifficulty      uint64
	CumulativeDifficultyTop64 uint64
	BlockIDs                  []Hash
	// BlockWeights holds packed little-endian u64 weights.
	BlockWeights []byte
	FirstBlock   []byte
}

// ToSection implements portable.Storable.
func (r *ResponseChainEntry) ToSection() (*portable.Section, error) {
	s := portable.NewSection().
		Set("start_height", portable.Uint64(r.StartHeight)).
		Set("total_height", portable.Uint64(r.TotalHeight)).
		Set("cumulative_difficulty", portable.Uint64(r.CumulativeDifficulty))

	if r.CumulativeDifficultyTop64 != 0 {
		s.Set("cumulative_difficulty_top64", portable.Uint64(r.CumulativeDifficultyTop64))
	}

	s.Set("m_block_ids", joinHashes(r.BlockIDs))

	if len(r.BlockWeights) > 0 {
		s.Set("m_block_weights", portable.Blob(r.BlockWeights))
	}

	if len(r.FirstBlock) > 0 {
		s.Set("first_block", portable.Blob(r.FirstBlock))
	}

	return s, nil
}

// FromSection implements portable.Storable.
func (r *ResponseChainEntry) FromSection(s *portable.Section) error {
	var err error

	if r.StartHeight, err = s.Uint64("start_height"); err != nil {
		return err
	}

	if r.TotalHeight, err = s.Uint64("total_height"); err != nil {
		return err
	}

	if r.CumulativeDifficulty, err = s.Uint64("cumulative_difficulty"); err != nil {
		return err
	}

	if s.Has("cumulative_difficulty_top64") {
		if r.CumulativeDifficultyTop64, err = s.Uint64("cumulative_difficulty_top64"); err != nil {
			return err
		}
	}

	if r.BlockIDs, err = splitHashes(s, "m_block_ids"); err != nil {
		return err
	}

	if s.Has("m_block_weights") {
		if r.BlockWeights, err = s.Blob("m_block_weights"); err != nil {
			return err
		}
	}

	if s.Has("first_block") {
		if r.FirstBlock, err = s.Blob("first_block"); err != nil {
			return err
		}
	}

	return nil
}

// RequestFluffyMissingTx asks for the transactions of a fluffy block the
// receiver could not reconstruct.
type RequestFluffyMissingTx struct {
	BlockHash        Hash
	CurrentHeight    uint64
	MissingTxIndices []uint64
}

// ToSection implements portable.Storable.
func (r *RequestFluffyMissingTx) ToSection() (*portable.Section, error) {
	s := portable.NewSection().
		Set("block_hash", portable.Blob(r.BlockHash[:])).
		Set("current_blockchain_height", portable.Uint64(r.CurrentHeight))

	if len(r.MissingTxIndices) > 0 {
		indices := portable.NewArray(portable.TagUint64)
		for _, i := range r.MissingTxIndices {
			if err := indices.Append(portable.Uint64(i)); err != nil {
				return nil, err
			}
		}

		s.Set("missing_tx_indices", indices)
	}

	return s, nil
}

// FromSection implements portable.Storable.
func (r *RequestFluffyMissingTx) FromSection(s *portable.Section) error {
	var err error

	if err = fixedBlob(s, "block_hash", r.BlockHash[:]); err != nil {
		return err
	}

	if r.CurrentHeight, err = s.Uint64("current_blockchain_height"); err != nil {
		return err
	}

	r.MissingTxIndices = nil

	if !s.Has("missing_tx_indices") {
		return nil
	}

	indices, err := s.Array("missing_tx_indices", portable.TagUint64)
	if err != nil {
		return err
	}

	r.MissingTxIndices = make([]uint64, 0, indices.Len())
	for _, e := range indices.Entries() {
		r.MissingTxIndices = append(r.MissingTxIndices, uint64(e.(portable.Uint64)))
	}

	return nil
}
