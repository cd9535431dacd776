package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/ethpandaops/levin/pkg/portable"
)

// Address types carried in a peer list entry.
const (
	AddressTypeIPv4 uint8 = 1
	AddressTypeIPv6 uint8 = 2
)

// ErrUnsupportedAddress is returned for address types other than IPv4/IPv6.
var ErrUnsupportedAddress = errors.New("unsupported network address type")

// NetworkAddress is a peer's reachable address.
type NetworkAddress struct {
	AddrPort netip.AddrPort
}

// ToSection implements portable.Storable.
func (a *NetworkAddress) ToSection() (*portable.Section, error) {
	ip := a.AddrPort.Addr().Unmap()
	inner := portable.NewSection()

	var kind uint8

	switch {
	case ip.Is4():
		kind = AddressTypeIPv4
		b := ip.As4()
		// m_ip holds the address in network order, read as a little-endian word.
		inner.Set("m_ip", portable.Uint32(binary.LittleEndian.Uint32(b[:])))
	case ip.Is6():
		kind = AddressTypeIPv6
		b := ip.As16()
		inner.Set("addr", portable.Blob(b[:]))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAddress, a.AddrPort)
	}

	inner.Set("m_port", portable.Uint16(a.AddrPort.Port()))

	return portable.NewSection().
		Set("type", portable.Uint8(kind)).
		Set("addr", inner), nil
}

// FromSection implements portable.Storable.
func (a *NetworkAddress) FromSection(s *portable.Section) error {
	kind, err := s.Uint8("type")
	if err != nil {
		return err
	}

	inner, err := s.Section("addr")
	if err != nil {
		return err
	}

	port, err := inner.Uint16("m_port")
	if err != nil {
		return err
	}

	var ip netip.Addr

	switch kind {
	case AddressTypeIPv4:
		raw, err := inner.Uint32("m_ip")
		if err != nil {
			return err
		}

		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], raw)
		ip = netip.AddrFrom4(b)
	case AddressTypeIPv6:
		var b [16]byte
		if err := fixedBlob(inner, "addr", b[:]); err != nil {
			return err
		}

		ip = netip.AddrFrom16(b)
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedAddress, kind)
	}

	a.AddrPort = netip.AddrPortFrom(ip, port)

	return nil
}

func (a NetworkAddress) String() string {
	return a.AddrPort.String()
}

// PeerListEntry is one element of a shared peer list.
type PeerListEntry struct {
	Address NetworkAddress
	ID      uint64

	// Optional fields, omitted on the wire when zero.
	LastSeen          int64
	PruningSeed       uint32
	RPCPort           uint16
	RPCCreditsPerHash uint32
}

// ToSection implements portable.Storable.
func (e *PeerListEntry) ToSection() (*portable.Section, error) {
	adr, err := e.Address.ToSection()
	if err != nil {
		return nil, err
	}

	s := portable.NewSection().
		Set("adr", adr).
		Set("id", portable.Uint64(e.ID))

	if e.LastSeen != 0 {
		s.Set("last_seen", portable.Int64(e.LastSeen))
	}

	if e.PruningSeed != 0 {
		s.Set("pruning_seed", portable.Uint32(e.PruningSeed))
	}

	if e.RPCPort != 0 {
		s.Set("rpc_port", portable.Uint16(e.RPCPort))
	}

	if e.RPCCreditsPerHash != 0 {
		s.Set("rpc_credits_per_hash", portable.Uint32(e.RPCCreditsPerHash))
	}

	return s, nil
}

// FromSection implements portable.Storable.
func (e *PeerListEntry) FromSection(s *portable.Section) error {
	adr, err := s.Section("adr")
	if err != nil {
		return err
	}

	if err := e.Address.FromSection(adr); err != nil {
		return err
	}

	if e.ID, err = s.Uint64("id"); err != nil {
		return err
	}

	if s.Has("last_seen") {
		if e.LastSeen, err = s.Int64("last_seen"); err != nil {
			return err
		}
	}

	if s.Has("pruning_seed") {
		if e.PruningSeed, err = s.Uint32("pruning_seed"); err != nil {
			return err
		}
	}

	if s.Has("rpc_port") {
		if e.RPCPort, err = s.Uint16("rpc_port"); err != nil {
			return err
		}
	}

	if s.Has("rpc_credits_per_hash") {
		if e.RPCCreditsPerHash, err = s.Uint32("rpc_credits_per_hash"); err != nil {
			return err
		}
	}

	return nil
}

func peerListToArray(peers []PeerListEntry) (*portable.Array, error) {
	sections := make([]*portable.Section, 0, len(peers))

	for i := range peers {
		s, err := peers[i].ToSection()
		if err != nil {
			return nil, err
		}

		sections = append(sections, s)
	}

	return portable.SectionArray(sections), nil
}

func peerListFromSection(s *portable.Section, name string) ([]PeerListEntry, error) {
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

	out := make([]PeerListEntry, len(sections))
	for i, sec := range sections {
		if err := out[i].FromSection(sec); err != nil {
			return nil, fmt.Errorf("peer %d: %w", i, err)
		}
	}

	return out, nil
}
