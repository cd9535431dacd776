package node

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethpandaops/levin/pkg/levin"
	"github.com/ethpandaops/levin/pkg/protocol"
	ma "github.com/multiformats/go-multiaddr"
)

// Peer is a connection to a remote node together with what it told us in the
// handshake and the latest timed sync.
type Peer struct {
	conn        *levin.Conn
	addr        ma.Multiaddr
	connectedAt time.Time

	mu         sync.RWMutex
	handshaked bool
	nodeData   protocol.BasicNodeData
	syncData   protocol.CoreSyncData
	lastSync   time.Time
}

func newPeer(conn *levin.Conn, addr ma.Multiaddr) *Peer {
	return &Peer{
		conn:        conn,
		addr:        addr,
		connectedAt: time.Now(),
	}
}

// ID returns the local connection id.
func (p *Peer) ID() uint64 {
	return p.conn.ID()
}

// Conn returns the underlying connection.
func (p *Peer) Conn() *levin.Conn {
	return p.conn
}

// Addr returns the remote address.
func (p *Peer) Addr() ma.Multiaddr {
	return p.addr
}

// Outbound reports whether we dialed the peer.
func (p *Peer) Outbound() bool {
	return p.conn.Outbound()
}

// ConnectedAt returns when the connection was established.
func (p *Peer) ConnectedAt() time.Time {
	return p.connectedAt
}

// Handshaked reports whether the handshake completed.
func (p *Peer) Handshaked() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.handshaked
}

// PeerID returns the id the peer announced in its handshake.
func (p *Peer) PeerID() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.nodeData.PeerID
}

// NodeData returns the node data from the handshake.
func (p *Peer) NodeData() protocol.BasicNodeData {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.nodeData
}

// SyncData returns the peer's latest chain state.
func (p *Peer) SyncData() protocol.CoreSyncData {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.syncData
}

// LastSync returns when the chain state was last refreshed.
func (p *Peer) LastSync() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.lastSync
}

func (p *Peer) completeHandshake(node protocol.BasicNodeData, core protocol.CoreSyncData) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handshaked = true
	p.nodeData = node
	p.syncData = core
	p.lastSync = time.Now()
}

func (p *Peer) updateSyncData(core protocol.CoreSyncData) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.syncData = core
	p.lastSync = time.Now()
}

func (p *Peer) String() string {
	return fmt.Sprintf("%s (%s)", p.addr, direction(p.Outbound()))
}
