package node

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/ethpandaops/levin/pkg/discovery"
	"github.com/ethpandaops/levin/pkg/levin"
	"github.com/ethpandaops/levin/pkg/protocol"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.ListenAddr = "/ip4/127.0.0.1/tcp/0"
	cfg.EnableRetry = false
	cfg.DialTimeout = 2 * time.Second
	cfg.HandshakeTimeout = 5 * time.Second
	cfg.TimedSyncInterval = time.Hour
	cfg.DialInterval = time.Hour
	cfg.Levin.InvokeTimeout = 5 * time.Second

	return cfg
}

func startNode(t *testing.T, cfg *Config, height uint64, finders ...discovery.NodeFinder) (*Node, *StaticCoreSync) {
	t.Helper()

	core := NewStaticCoreSync(protocol.CoreSyncData{
		CurrentHeight:        height,
		CumulativeDifficulty: height * 1000,
		TopVersion:           16,
	})

	n, err := New(logrus.New(), cfg, "test", core, finders...)
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))

	t.Cleanup(func() {
		_ = n.Stop(context.Background())
	})

	return n, core
}

// connectedPair returns a listening server and a client connected to it.
func connectedPair(t *testing.T) (server, client *Node, peer *Peer) {
	t.Helper()

	server, _ = startNode(t, testConfig(), 100)

	clientCfg := testConfig()
	clientCfg.ListenAddr = ""

	client, _ = startNode(t, clientCfg, 50)

	peer, err := client.Connect(context.Background(), server.ListenAddr())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return server.PeerCount() == 1
	}, 5*time.Second, 10*time.Millisecond)

	return server, client, peer
}

func TestNode_Handshake(t *testing.T) {
	server, client, peer := connectedPair(t)

	assert.True(t, peer.Handshaked())
	assert.True(t, peer.Outbound())
	assert.Equal(t, server.PeerID(), peer.PeerID())
	assert.Equal(t, protocol.MainnetID, peer.NodeData().NetworkID)
	assert.Equal(t, protocol.SupportFlagsAll, peer.NodeData().SupportFlags)
	assert.Equal(t, uint64(100), peer.SyncData().CurrentHeight)
	assert.Equal(t, uint64(100000), peer.SyncData().CumulativeDifficulty)

	assert.Equal(t, 1, client.PeerCount())

	inbound := server.Peers()
	require.Len(t, inbound, 1)
	assert.False(t, inbound[0].Outbound())
	assert.Equal(t, client.PeerID(), inbound[0].PeerID())
	assert.Equal(t, uint64(50), inbound[0].SyncData().CurrentHeight)
}

func TestNode_PeerConnectedEvents(t *testing.T) {
	server, _ := startNode(t, testConfig(), 1)

	inbound := make(chan *Peer, 1)
	server.OnPeerConnected(context.Background(), func(_ context.Context, p *Peer) error {
		inbound <- p

		return nil
	})

	clientCfg := testConfig()
	clientCfg.ListenAddr = ""
	client, _ := startNode(t, clientCfg, 1)

	outbound := make(chan *Peer, 1)
	client.OnPeerConnected(context.Background(), func(_ context.Context, p *Peer) error {
		outbound <- p

		return nil
	})

	_, err := client.Connect(context.Background(), server.ListenAddr())
	require.NoError(t, err)

	select {
	case p := <-outbound:
		assert.Equal(t, server.PeerID(), p.PeerID())
	case <-time.After(5 * time.Second):
		t.Fatal("client did not publish peer connected")
	}

	select {
	case p := <-inbound:
		assert.Equal(t, client.PeerID(), p.PeerID())
	case <-time.After(5 * time.Second):
		t.Fatal("server did not publish peer connected")
	}
}

func TestNode_NetworkMismatch(t *testing.T) {
	server, _ := startNode(t, testConfig(), 1)

	clientCfg := testConfig()
	clientCfg.ListenAddr = ""
	clientCfg.Network = "testnet"
	client, _ := startNode(t, clientCfg, 1)

	_, err := client.Connect(context.Background(), server.ListenAddr())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPeerHandshakeFailed)

	// The rejection reaches the client before the server hangs up.
	assert.Contains(t, err.Error(), (&levin.ReturnCodeError{Code: levin.ReturnErrConnection}).Error())

	assert.Equal(t, 0, client.PeerCount())

	require.Eventually(t, func() bool {
		return len(server.connections()) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNode_SelfConnectionRejected(t *testing.T) {
	cfg := testConfig()
	cfg.PeerID = 42
	server, _ := startNode(t, cfg, 1)

	clientCfg := testConfig()
	clientCfg.ListenAddr = ""
	clientCfg.PeerID = 42
	client, _ := startNode(t, clientCfg, 1)

	_, err := client.Connect(context.Background(), server.ListenAddr())
	require.Error(t, err)
	assert.Equal(t, 0, server.PeerCount())
}

func TestNode_ConnectTooSoon(t *testing.T) {
	server, client, _ := connectedPair(t)

	_, err := client.Connect(context.Background(), server.ListenAddr())
	assert.ErrorIs(t, err, ErrPeerTooSoon)
}

func TestNode_ConnectBeforeStart(t *testing.T) {
	n, err := New(logrus.New(), testConfig(), "test", NewStaticCoreSync(protocol.CoreSyncData{}))
	require.NoError(t, err)

	addr, err := discovery.ParseAddress("127.0.0.1:18080")
	require.NoError(t, err)

	_, err = n.Connect(context.Background(), addr)
	require.ErrorIs(t, err, errNotStarted)

	require.ErrorIs(t, n.Stop(context.Background()), errNotStarted)
}

func TestNode_NewValidates(t *testing.T) {
	cfg := testConfig()
	cfg.Network = "regtest"

	_, err := New(logrus.New(), cfg, "test", NewStaticCoreSync(protocol.CoreSyncData{}))
	require.Error(t, err)

	_, err = New(logrus.New(), testConfig(), "test", nil)
	require.Error(t, err)

	_, err = New(logrus.New(), nil, "test", NewStaticCoreSync(protocol.CoreSyncData{}))
	require.Error(t, err)
}

func TestNode_Ping(t *testing.T) {
	server, _, peer := connectedPair(t)

	resp, err := levin.Invoke(context.Background(), peer.Conn(), protocol.Ping, &protocol.PingRequest{})
	require.NoError(t, err)

	assert.Equal(t, protocol.PingStatusOK, resp.Status)
	assert.Equal(t, server.PeerID(), resp.PeerID)

	flags, err := levin.Invoke(context.Background(), peer.Conn(), protocol.SupportFlags, &protocol.SupportFlagsRequest{})
	require.NoError(t, err)
	assert.Equal(t, protocol.SupportFlagsAll, flags.SupportFlags)
}

func TestNode_SyncPeers(t *testing.T) {
	server, _ := startNode(t, testConfig(), 100)

	received := make(chan uint64, 1)
	server.OnPeerSyncData(context.Background(), func(_ context.Context, _ *Peer, data *protocol.CoreSyncData) error {
		received <- data.CurrentHeight

		return nil
	})

	clientCfg := testConfig()
	clientCfg.ListenAddr = ""
	client, clientCore := startNode(t, clientCfg, 50)

	peer, err := client.Connect(context.Background(), server.ListenAddr())
	require.NoError(t, err)

	clientCore.Set(protocol.CoreSyncData{CurrentHeight: 75, CumulativeDifficulty: 75000})

	require.NoError(t, client.SyncPeers(context.Background()))

	select {
	case height := <-received:
		assert.Equal(t, uint64(75), height)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not receive timed sync")
	}

	assert.Equal(t, uint64(100), peer.SyncData().CurrentHeight)
}

func TestNode_BroadcastNotification(t *testing.T) {
	server, client, _ := connectedPair(t)

	received := make(chan *protocol.NewTransactions, 1)
	server.OnNewTransactions(context.Background(), func(_ context.Context, p *Peer, msg *protocol.NewTransactions) error {
		assert.Equal(t, client.PeerID(), p.PeerID())

		received <- msg

		return nil
	})

	reached, err := Broadcast(context.Background(), client, protocol.NotifyNewTransactions, &protocol.NewTransactions{
		Transactions: [][]byte{{0x01, 0x02}, {0x03}},
		Fluff:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, reached)

	select {
	case msg := <-received:
		assert.Equal(t, [][]byte{{0x01, 0x02}, {0x03}}, msg.Transactions)
		assert.True(t, msg.Fluff)
	case <-time.After(5 * time.Second):
		t.Fatal("notification not published")
	}
}

func TestNode_BroadcastExcept(t *testing.T) {
	_, client, peer := connectedPair(t)

	reached, err := Broadcast(context.Background(), client, protocol.NotifyNewBlock, &protocol.NewBlock{
		CurrentHeight: 10,
	}, peer.ID())
	require.NoError(t, err)
	assert.Equal(t, 0, reached)
}

func TestNode_AddressBookSharedInHandshake(t *testing.T) {
	server, _ := startNode(t, testConfig(), 1)

	server.AddressBook().Add(
		protocol.PeerListEntry{
			Address:  protocol.NetworkAddress{AddrPort: netip.MustParseAddrPort("10.0.0.1:18080")},
			ID:       1,
			LastSeen: 100,
		},
		protocol.PeerListEntry{
			Address:  protocol.NetworkAddress{AddrPort: netip.MustParseAddrPort("[2001:db8::1]:18080")},
			ID:       2,
			LastSeen: 200,
		},
	)

	clientCfg := testConfig()
	clientCfg.ListenAddr = ""
	client, _ := startNode(t, clientCfg, 1)

	_, err := client.Connect(context.Background(), server.ListenAddr())
	require.NoError(t, err)

	assert.Equal(t, 2, client.AddressBook().Len())

	e, ok := client.AddressBook().Get(netip.MustParseAddrPort("[2001:db8::1]:18080"))
	require.True(t, ok)
	assert.Equal(t, uint64(2), e.ID)
}

func TestNode_InboundAddressLearned(t *testing.T) {
	server, _ := startNode(t, testConfig(), 1)

	clientCfg := testConfig()
	clientCfg.ListenAddr = ""
	clientCfg.MyPort = 18080
	client, _ := startNode(t, clientCfg, 1)

	_, err := client.Connect(context.Background(), server.ListenAddr())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		e, ok := server.AddressBook().Get(netip.MustParseAddrPort("127.0.0.1:18080"))

		return ok && e.ID == client.PeerID()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNode_PeerDisconnected(t *testing.T) {
	server, _ := startNode(t, testConfig(), 1)

	gone := make(chan error, 1)
	server.OnPeerDisconnected(context.Background(), func(_ context.Context, _ *Peer, reason error) error {
		gone <- reason

		return nil
	})

	clientCfg := testConfig()
	clientCfg.ListenAddr = ""
	client, _ := startNode(t, clientCfg, 1)

	peer, err := client.Connect(context.Background(), server.ListenAddr())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return server.PeerCount() == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, peer.Conn().Close())

	select {
	case reason := <-gone:
		assert.ErrorIs(t, reason, levin.ErrConnectionClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not publish peer disconnected")
	}

	require.Eventually(t, func() bool {
		return server.PeerCount() == 0 && client.PeerCount() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNode_ManualFinder(t *testing.T) {
	server, _ := startNode(t, testConfig(), 1)

	finder := &discovery.Manual{}

	clientCfg := testConfig()
	clientCfg.ListenAddr = ""
	client, _ := startNode(t, clientCfg, 1, finder)

	require.NoError(t, finder.AddPeer(context.Background(), server.ListenAddr()))

	require.Eventually(t, func() bool {
		return client.PeerCount() == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNode_SeedsDialedOnStart(t *testing.T) {
	server, _ := startNode(t, testConfig(), 1)

	clientCfg := testConfig()
	clientCfg.ListenAddr = ""
	clientCfg.Seeds = []string{server.ListenAddr().String()}
	clientCfg.SeedInterval = 0

	client, _ := startNode(t, clientCfg, 1)

	require.Eventually(t, func() bool {
		return client.PeerCount() == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNode_SilentInboundDropped(t *testing.T) {
	cfg := testConfig()
	cfg.HandshakeTimeout = 300 * time.Millisecond
	server, _ := startNode(t, cfg, 1)

	var dialer manet.Dialer

	conn, err := dialer.Dial(server.ListenAddr())
	require.NoError(t, err)

	defer conn.Close()

	require.Eventually(t, func() bool {
		return len(server.connections()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(server.connections()) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNode_RegisterMetrics(t *testing.T) {
	n, err := New(logrus.New(), testConfig(), "test", NewStaticCoreSync(protocol.CoreSyncData{}))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	require.NoError(t, n.RegisterMetrics(reg))
}
