package node

import (
	"context"
	"time"

	"github.com/ethpandaops/levin/pkg/levin"
	"github.com/ethpandaops/levin/pkg/protocol"
	"github.com/pkg/errors"
)

// maxPeersInHandshake caps the peer list shared in handshake and timed sync
// responses.
const maxPeersInHandshake = 250

func (n *Node) registerHandlers() error {
	var err error

	register := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	register(levin.HandleCommand(n.registry, protocol.Handshake, n.handleHandshake))
	register(levin.HandleCommand(n.registry, protocol.TimedSync, n.handleTimedSync))
	register(levin.HandleCommand(n.registry, protocol.Ping, n.handlePing))
	register(levin.HandleCommand(n.registry, protocol.SupportFlags, n.handleSupportFlags))

	register(handleNotification(n, protocol.NotifyNewBlock, topicNewBlock))
	register(handleNotification(n, protocol.NotifyNewFluffyBlock, topicNewFluffyBlock))
	register(handleNotification(n, protocol.NotifyNewTransactions, topicNewTransactions))
	register(handleNotification(n, protocol.NotifyRequestGetObjects, topicRequestGetObjects))
	register(handleNotification(n, protocol.NotifyResponseGetObjects, topicResponseGetObjects))
	register(handleNotification(n, protocol.NotifyRequestChain, topicRequestChain))
	register(handleNotification(n, protocol.NotifyResponseChainEntry, topicResponseChainEntry))
	register(handleNotification(n, protocol.NotifyRequestFluffyMissingTx, topicRequestFluffyMissingTx))

	return err
}

// handleNotification publishes a decoded notification from a handshaked
// peer on topic.
func handleNotification[T any, P storable[T]](n *Node, notification levin.Notification[T], topic string) error {
	return levin.HandleNotification[T, P](n.registry, notification, func(_ context.Context, conn *levin.Conn, msg *T) error {
		peer, err := n.handshakedPeer(conn)
		if err != nil {
			return err
		}

		n.metrics.recordNotification(notification.Name)

		n.broker.Emit(topic, peer, msg)

		return nil
	})
}

func (n *Node) handshakedPeer(conn *levin.Conn) (*Peer, error) {
	peer, ok := n.peer(conn.ID())
	if !ok || !peer.Handshaked() {
		return nil, ErrPeerNotHandshaked
	}

	return peer, nil
}

func (n *Node) handleHandshake(ctx context.Context, conn *levin.Conn, req *protocol.HandshakeRequest) (*protocol.HandshakeResponse, error) {
	peer, ok := n.peer(conn.ID())
	if !ok || peer.Outbound() || peer.Handshaked() {
		return nil, &levin.ReturnCodeError{Code: levin.ReturnErrConnection}
	}

	if err := n.acceptPeer(peer, req.NodeData, req.PayloadData); err != nil {
		n.log.WithError(err).WithField("peer", peer.String()).Debug("Rejected inbound handshake")

		n.metrics.recordFailedPeer(err)

		return nil, &levin.ReturnCodeError{Code: levin.ReturnErrConnection, Disconnect: true}
	}

	n.learnInboundAddress(peer)

	// Subscribers may invoke commands on the peer, which needs the read loop.
	go n.emitPeerConnected(peer)

	core, err := n.core.CoreSyncData(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get core sync data")
	}

	return &protocol.HandshakeResponse{
		NodeData:    n.nodeData(),
		PayloadData: core,
		Peers:       n.addressBook.Sample(maxPeersInHandshake),
	}, nil
}

func (n *Node) handleTimedSync(ctx context.Context, conn *levin.Conn, req *protocol.TimedSyncRequest) (*protocol.TimedSyncResponse, error) {
	peer, err := n.handshakedPeer(conn)
	if err != nil {
		return nil, &levin.ReturnCodeError{Code: levin.ReturnErrConnection}
	}

	peer.updateSyncData(req.PayloadData)
	n.emitPeerSyncData(peer, req.PayloadData)

	core, err := n.core.CoreSyncData(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get core sync data")
	}

	return &protocol.TimedSyncResponse{
		PayloadData: core,
		Peers:       n.addressBook.Sample(maxPeersInHandshake),
	}, nil
}

// handlePing answers without a handshake; peers use it to check that an
// address they were given is reachable.
func (n *Node) handlePing(_ context.Context, _ *levin.Conn, _ *protocol.PingRequest) (*protocol.PingResponse, error) {
	return &protocol.PingResponse{
		Status: protocol.PingStatusOK,
		PeerID: n.peerID,
	}, nil
}

func (n *Node) handleSupportFlags(_ context.Context, _ *levin.Conn, _ *protocol.SupportFlagsRequest) (*protocol.SupportFlagsResponse, error) {
	return &protocol.SupportFlagsResponse{SupportFlags: protocol.SupportFlagsAll}, nil
}

// learnInboundAddress records an inbound peer that advertised a listening
// port under the address it connected from.
func (n *Node) learnInboundAddress(peer *Peer) {
	data := peer.NodeData()
	if data.MyPort == 0 || data.MyPort > 65535 {
		return
	}

	remote, err := addrPortOf(peer.Conn().RemoteAddr())
	if err != nil {
		return
	}

	n.addressBook.Add(protocol.PeerListEntry{
		Address:     protocol.NetworkAddress{AddrPort: withPort(remote, uint16(data.MyPort))},
		ID:          data.PeerID,
		LastSeen:    time.Now().Unix(),
		RPCPort:     data.RPCPort,
		PruningSeed: peer.SyncData().PruningSeed,
	})

	n.metrics.recordKnownPeers(n.addressBook.Len())
}
