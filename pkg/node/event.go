package node

import (
	"context"
	"fmt"

	"github.com/ethpandaops/levin/pkg/protocol"
)

const (
	ModuleName = "node"
)

// Event names used for broker communication.
var (
	topicPeerConnected          = fmt.Sprintf("%s:peer:connected", ModuleName)
	topicPeerDisconnected       = fmt.Sprintf("%s:peer:disconnected", ModuleName)
	topicPeerSyncData           = fmt.Sprintf("%s:peer:sync_data", ModuleName)
	topicNewBlock               = fmt.Sprintf("%s:notify:%s", ModuleName, protocol.NotifyNewBlock.Name)
	topicNewFluffyBlock         = fmt.Sprintf("%s:notify:%s", ModuleName, protocol.NotifyNewFluffyBlock.Name)
	topicNewTransactions        = fmt.Sprintf("%s:notify:%s", ModuleName, protocol.NotifyNewTransactions.Name)
	topicRequestGetObjects      = fmt.Sprintf("%s:notify:%s", ModuleName, protocol.NotifyRequestGetObjects.Name)
	topicResponseGetObjects     = fmt.Sprintf("%s:notify:%s", ModuleName, protocol.NotifyResponseGetObjects.Name)
	topicRequestChain           = fmt.Sprintf("%s:notify:%s", ModuleName, protocol.NotifyRequestChain.Name)
	topicResponseChainEntry     = fmt.Sprintf("%s:notify:%s", ModuleName, protocol.NotifyResponseChainEntry.Name)
	topicRequestFluffyMissingTx = fmt.Sprintf("%s:notify:%s", ModuleName, protocol.NotifyRequestFluffyMissingTx.Name)
)

// MessageHandler consumes a message received from peer.
type MessageHandler[T any] func(ctx context.Context, peer *Peer, msg *T) error

func subscribe[T any](ctx context.Context, n *Node, topic string, handler MessageHandler[T]) {
	n.broker.On(topic, func(peer *Peer, msg *T) {
		n.handleSubscriberError(handler(ctx, peer, msg), topic)
	})
}

func (n *Node) handleSubscriberError(err error, topic string) {
	if err != nil {
		n.log.WithError(err).WithField("topic", topic).Error("Subscriber error")
	}
}

// OnPeerConnected is called once a peer completes its handshake.
func (n *Node) OnPeerConnected(ctx context.Context, handler func(ctx context.Context, peer *Peer) error) {
	n.broker.On(topicPeerConnected, func(peer *Peer) {
		n.handleSubscriberError(handler(ctx, peer), topicPeerConnected)
	})
}

// OnPeerDisconnected is called when a handshaked peer goes away, with the
// reason the connection closed.
func (n *Node) OnPeerDisconnected(ctx context.Context, handler func(ctx context.Context, peer *Peer, reason error) error) {
	n.broker.On(topicPeerDisconnected, func(peer *Peer, reason error) {
		n.handleSubscriberError(handler(ctx, peer, reason), topicPeerDisconnected)
	})
}

// OnPeerSyncData is called whenever a peer reports new chain state.
func (n *Node) OnPeerSyncData(ctx context.Context, handler MessageHandler[protocol.CoreSyncData]) {
	subscribe(ctx, n, topicPeerSyncData, handler)
}

func (n *Node) OnNewBlock(ctx context.Context, handler MessageHandler[protocol.NewBlock]) {
	subscribe(ctx, n, topicNewBlock, handler)
}

func (n *Node) OnNewFluffyBlock(ctx context.Context, handler MessageHandler[protocol.NewFluffyBlock]) {
	subscribe(ctx, n, topicNewFluffyBlock, handler)
}

func (n *Node) OnNewTransactions(ctx context.Context, handler MessageHandler[protocol.NewTransactions]) {
	subscribe(ctx, n, topicNewTransactions, handler)
}

func (n *Node) OnRequestGetObjects(ctx context.Context, handler MessageHandler[protocol.RequestGetObjects]) {
	subscribe(ctx, n, topicRequestGetObjects, handler)
}

func (n *Node) OnResponseGetObjects(ctx context.Context, handler MessageHandler[protocol.ResponseGetObjects]) {
	subscribe(ctx, n, topicResponseGetObjects, handler)
}

func (n *Node) OnRequestChain(ctx context.Context, handler MessageHandler[protocol.RequestChain]) {
	subscribe(ctx, n, topicRequestChain, handler)
}

func (n *Node) OnResponseChainEntry(ctx context.Context, handler MessageHandler[protocol.ResponseChainEntry]) {
	subscribe(ctx, n, topicResponseChainEntry, handler)
}

func (n *Node) OnRequestFluffyMissingTx(ctx context.Context, handler MessageHandler[protocol.RequestFluffyMissingTx]) {
	subscribe(ctx, n, topicRequestFluffyMissingTx, handler)
}

func (n *Node) emitPeerConnected(peer *Peer) {
	n.broker.Emit(topicPeerConnected, peer)
}

func (n *Node) emitPeerDisconnected(peer *Peer, reason error) {
	n.broker.Emit(topicPeerDisconnected, peer, reason)
}

func (n *Node) emitPeerSyncData(peer *Peer, data protocol.CoreSyncData) {
	n.broker.Emit(topicPeerSyncData, peer, &data)
}
