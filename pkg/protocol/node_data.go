package protocol

import (
	"github.com/ethpandaops/levin/pkg/portable"
)

// Support flags advertised by a node.
const (
	SupportFlagFluffyBlocks uint32 = 0x01
	SupportFlagsAll                = SupportFlagFluffyBlocks
)

// BasicNodeData describes the sending node in handshakes.
type BasicNodeData struct {
	NetworkID NetworkID
	LocalTime uint64
	MyPort    uint32
	PeerID    uint64

	// Optional fields, omitted on the wire when zero.
	RPCPort           uint16
	RPCCreditsPerHash uint32
	SupportFlags      uint32
}

// ToSection implements portable.Storable.
func (d *BasicNodeData) ToSection() (*portable.Section, error) {
	s := portable.NewSection().
		Set("network_id", portable.Blob(d.NetworkID[:])).
		Set("local_time", portable.Uint64(d.LocalTime)).
		Set("my_port", portable.Uint32(d.MyPort)).
		Set("peer_id", portable.Uint64(d.PeerID))

	if d.RPCPort != 0 {
		s.Set("rpc_port", portable.Uint16(d.RPCPort))
	}

	if d.RPCCreditsPerHash != 0 {
		s.Set("rpc_credits_per_hash", portable.Uint32(d.RPCCreditsPerHash))
	}

	if d.SupportFlags != 0 {
		s.Set("support_flags", portable.Uint32(d.SupportFlags))
	}

	return s, nil
}

// FromSection implements portable.Storable.
func (d *BasicNodeData) FromSection(s *portable.Section) error {
	var err error

	if err = fixedBlob(s, "network_id", d.NetworkID[:]); err != nil {
		return err
	}

	if s.Has("local_time") {
		if d.LocalTime, err = s.Uint64("local_time"); err != nil {
			return err
		}
	}

	if d.MyPort, err = s.Uint32("my_port"); err != nil {
		return err
	}

	if d.PeerID, err = s.Uint64("peer_id"); err != nil {
		return err
	}

	if s.Has("rpc_port") {
		if d.RPCPort, err = s.Uint16("rpc_port"); err != nil {
			return err
		}
	}

	if s.Has("rpc_credits_per_hash") {
		if d.RPCCreditsPerHash, err = s.Uint32("rpc_credits_per_hash"); err != nil {
			return err
		}
	}

	if s.Has("support_flags") {
		if d.SupportFlags, err = s.Uint32("support_flags"); err != nil {
			return err
		}
	}

	return nil
}

// CoreSyncData summarises a node's chain state.
type CoreSyncData struct {
	CurrentHeight        uint64
	CumulativeDifficulty uint64
	TopID                Hash
	TopVersion           uint8

	// Optional fields, omitted on the wire when zero.
	CumulativeDifficultyTop64 uint64
	PruningSeed               uint32
}

// ToSection implements portable.Storable.
func (d *CoreSyncData) ToSection() (*portable.Section, error) {
	s := portable.NewSection().
		Set("current_height", portable.Uint64(d.CurrentHeight)).
		Set("cumulative_difficulty", portable.Uint64(d.CumulativeDifficulty))

	if d.CumulativeDifficultyTop64 != 0 {
		s.Set("cumulative_difficulty_top64", portable.Uint64(d.CumulativeDifficultyTop64))
	}

	s.Set("top_id", portable.Blob(d.TopID[:])).
		Set("top_version", portable.Uint8(d.TopVersion))

	if d.PruningSeed != 0 {
		s.Set("pruning_seed", portable.Uint32(d.PruningSeed))
	}

	return s, nil
}

// FromSection implements portable.Storable.
func (d *CoreSyncData) FromSection(s *portable.Section) error {
	var err error

	if d.CurrentHeight, err = s.Uint64("current_height"); err != nil {
		return err
	}

	if d.CumulativeDifficulty, err = s.Uint64("cumulative_difficulty"); err != nil {
		return err
	}

	if s.Has("cumulative_difficulty_top64") {
		if d.CumulativeDifficultyTop64, err = s.Uint64("cumulative_difficulty_top64"); err != nil {
			return err
		}
	}

	if err = fixedBlob(s, "top_id", d.TopID[:]); err != nil {
		return err
	}

	if d.TopVersion, err = s.Uint8("top_version"); err != nil {
		return err
	}

	if s.Has("pruning_seed") {
		if d.PruningSeed, err = s.Uint32("pruning_seed"); err != nil {
			return err
		}
	}

	return nil
}
