package protocol

import (
	"github.com/ethpandaops/levin/pkg/portable"
)

// PingStatusOK is the status a healthy node answers pings with.
const PingStatusOK = "OK"

// HandshakeRequest opens a session.
type HandshakeRequest struct {
	NodeData    BasicNodeData
	PayloadData CoreSyncData
}

// ToSection implements portable.Storable.
func (r *HandshakeRequest) ToSection() (*portable.Section, error) {
	node, err := r.NodeData.ToSection()
	if err != nil {
		return nil, err
	}

	payload, err := r.PayloadData.ToSection()
	if err != nil {
		return nil, err
	}

	return portable.NewSection().
		Set("node_data", node).
		Set("payload_data", payload), nil
}

// FromSection implements portable.Storable.
func (r *HandshakeRequest) FromSection(s *portable.Section) error {
	node, err := s.Section("node_data")
	if err != nil {
		return err
	}

	if err := r.NodeData.FromSection(node); err != nil {
		return err
	}

	payload, err := s.Section("payload_data")
	if err != nil {
		return err
	}

	return r.PayloadData.FromSection(payload)
}

// HandshakeResponse answers a handshake with the responder's state and a
// sample of its peer list.
type HandshakeResponse struct {
	NodeData    BasicNodeData
	PayloadData CoreSyncData
	Peers       []PeerListEntry
}

// ToSection implements portable.Storable.
func (r *HandshakeResponse) ToSection() (*portable.Section, error) {
	req := HandshakeRequest{NodeData: r.NodeData, PayloadData: r.PayloadData}

	s, err := req.ToSection()
	if err != nil {
		return nil, err
	}

	if len(r.Peers) > 0 {
		peers, err := peerListToArray(r.Peers)
		if err != nil {
			return nil, err
		}

		s.Set("local_peerlist_new", peers)
	}

	return s, nil
}

// FromSection implements portable.Storable.
func (r *HandshakeResponse) FromSection(s *portable.Section) error {
	var req HandshakeRequest
	if err := req.FromSection(s); err != nil {
		return err
	}

	peers, err := peerListFromSection(s, "local_peerlist_new")
	if err != nil {
		return err
	}

	r.NodeData = req.NodeData
	r.PayloadData = req.PayloadData
	r.Peers = peers

	return nil
}

// TimedSyncRequest periodically refreshes chain state with a peer.
type TimedSyncRequest struct {
	PayloadData CoreSyncData
}

// ToSection implements portable.Storable.
func (r *TimedSyncRequest) ToSection() (*portable.Section, error) {
	payload, err := r.PayloadData.ToSection()
	if err != nil {
		return nil, err
	}

	return portable.NewSection().Set("payload_data", payload), nil
}

// FromSection implements portable.Storable.
func (r *TimedSyncRequest) FromSection(s *portable.Section) error {
	payload, err := s.Section("payload_data")
	if err != nil {
		return err
	}

	return r.PayloadData.FromSection(payload)
}

// TimedSyncResponse answers a timed sync.
type TimedSyncResponse struct {
	PayloadData CoreSyncData
	Peers       []PeerListEntry
}

// ToSection implements portable.Storable.
func (r *TimedSyncResponse) ToSection() (*portable.Section, error) {
	req := TimedSyncRequest{PayloadData: r.PayloadData}

	s, err := req.ToSection()
	if err != nil {
		return nil, err
	}

	if len(r.Peers) > 0 {
		peers, err := peerListToArray(r.Peers)
		if err != nil {
			return nil, err
		}

		s.Set("local_peerlist_new", peers)
	}

	return s, nil
}

// FromSection implements portable.Storable.
func (r *TimedSyncResponse) FromSection(s *portable.Section) error {
	var req TimedSyncRequest
	if err := req.FromSection(s); err != nil {
		return err
	}

	peers, err := peerListFromSection(s, "local_peerlist_new")
	if err != nil {
		return err
	}

	r.PayloadData = req.PayloadData
	r.Peers = peers

	return nil
}

// PingRequest is empty; a ping only proves reachability.
type PingRequest struct{}

// ToSection implements portable.Storable.
func (r *PingRequest) ToSection() (*portable.Section, error) {
	return portable.NewSection(), nil
}

// FromSection implements portable.Storable.
func (r *PingRequest) FromSection(*portable.Section) error {
	return nil
}

// PingResponse carries the responder's status and peer id.
type PingResponse struct {
	Status string
	PeerID uint64
}

// ToSection implements portable.Storable.
func (r *PingResponse) ToSection() (*portable.Section, error) {
	return portable.NewSection().
		Set("status", portable.String(r.Status)).
		Set("peer_id", portable.Uint64(r.PeerID)), nil
}

// FromSection implements portable.Storable.
func (r *PingResponse) FromSection(s *portable.Section) error {
	status, err := s.Blob("status")
	if err != nil {
		return err
	}

	if r.PeerID, err = s.Uint64("peer_id"); err != nil {
		return err
	}

	r.Status = string(status)

	return nil
}

// SupportFlagsRequest is empty.
type SupportFlagsRequest struct{}

// ToSection implements portable.Storable.
func (r *SupportFlagsRequest) ToSection() (*portable.Section, error) {
	return portable.NewSection(), nil
}

// FromSection implements portable.Storable.
func (r *SupportFlagsRequest) FromSection(*portable.Section) error {
	return nil
}

// SupportFlagsResponse advertises optional protocol features.
type SupportFlagsResponse struct {
	SupportFlags uint32
}

// ToSection implements portable.Storable.
func (r *SupportFlagsResponse) ToSection() (*portable.Section, error) {
	return portable.NewSection().Set("support_flags", portable.Uint32(r.SupportFlags)), nil
}

// FromSection implements portable.Storable.
func (r *SupportFlagsResponse) FromSection(s *portable.Section) error {
	var err error

	r.SupportFlags, err = s.Uint32("support_flags")

	return err
}
