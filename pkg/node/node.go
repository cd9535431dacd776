package node

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/chuckpreslar/emission"
	"github.com/ethpandaops/levin/pkg/cache"
	"github.com/ethpandaops/levin/pkg/discovery"
	"github.com/ethpandaops/levin/pkg/levin"
	"github.com/ethpandaops/levin/pkg/portable"
	"github.com/ethpandaops/levin/pkg/protocol"
	"github.com/go-co-op/gocron/v2"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// dialQueueSize bounds the addresses waiting for a dial worker.
const dialQueueSize = 1000

var errNotStarted = errors.New("node not started")

// storable constrains a type parameter to a pointer implementing Storable.
type storable[T any] interface {
	*T
	portable.Storable
}

// Node is a peer-to-peer node speaking the levin protocol. It accepts inbound
// peers, dials peers found by its node finders and the address book, keeps
// chain state fresh with timed syncs and publishes every notification it
// receives.
type Node struct {
	log         logrus.FieldLogger
	config      *Config
	network     protocol.Network
	peerID      uint64
	core        CoreSyncProvider
	finders     []discovery.NodeFinder
	registry    *levin.Registry
	broker      *emission.Emitter
	addressBook *AddressBook
	cooloff     *cache.Cooloff[string]

	metrics        *Metrics
	levinMetrics   *levin.Metrics
	cooloffMetrics *cache.Metrics

	mu    sync.RWMutex
	peers map[uint64]*Peer

	ctx       context.Context
	cancel    context.CancelFunc
	listener  manet.Listener
	scheduler gocron.Scheduler
	dials     chan ma.Multiaddr
	wg        sync.WaitGroup
}

// New creates a Node. Seeds from config are announced by a static finder;
// finders adds further sources of peers.
func New(
	log logrus.FieldLogger,
	config *Config,
	namespace string,
	core CoreSyncProvider,
	finders ...discovery.NodeFinder,
) (*Node, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	if core == nil {
		return nil, errors.New("core sync provider is required")
	}

	network, err := protocol.NetworkByName(config.Network)
	if err != nil {
		return nil, err
	}

	peerID := config.PeerID
	for peerID == 0 {
		peerID = rand.Uint64()
	}

	log = log.WithField("module", "levin/node")

	cooloffMetrics := cache.NewMetrics(cache.MetricsConfig{Namespace: namespace})

	n := &Node{
		log:            log,
		config:         config,
		network:        network,
		peerID:         peerID,
		core:           core,
		registry:       levin.NewRegistry(log),
		broker:         emission.NewEmitter(),
		addressBook:    NewAddressBook(config.AddressBookSize),
		cooloff:        cache.NewCooloff[string](log, config.Cooloff, cooloffMetrics),
		metrics:        NewMetrics(namespace),
		levinMetrics:   levin.NewMetrics(namespace),
		cooloffMetrics: cooloffMetrics,
		peers:          make(map[uint64]*Peer),
		dials:          make(chan ma.Multiaddr, dialQueueSize),
	}

	if len(config.Seeds) > 0 {
		seeds := make([]ma.Multiaddr, 0, len(config.Seeds))

		for _, seed := range config.Seeds {
			addr, err := discovery.ParseAddress(seed)
			if err != nil {
				return nil, errors.Wrap(err, "invalid seed")
			}

			seeds = append(seeds, addr)
		}

		n.finders = append(n.finders, discovery.NewStatic(seeds, config.SeedInterval, log))
	}

	n.finders = append(n.finders, finders...)

	if err := n.registerHandlers(); err != nil {
		return nil, errors.Wrap(err, "failed to register handlers")
	}

	return n, nil
}

// RegisterMetrics registers the node, connection and cool-off metrics.
func (n *Node) RegisterMetrics(registerer prometheus.Registerer) error {
	return multierr.Combine(
		n.metrics.Register(registerer),
		n.levinMetrics.Register(registerer),
		n.cooloffMetrics.Register(registerer),
	)
}

// PeerID returns the id this node announces.
func (n *Node) PeerID() uint64 {
	return n.peerID
}

// Network returns the network the node belongs to.
func (n *Node) Network() protocol.Network {
	return n.network
}

// Registry returns the command registry, for registering extra handlers.
func (n *Node) Registry() *levin.Registry {
	return n.registry
}

// AddressBook returns the known peer addresses.
func (n *Node) AddressBook() *AddressBook {
	return n.addressBook
}

// ListenAddr returns the address the node accepts peers on, or nil when it
// does not listen.
func (n *Node) ListenAddr() ma.Multiaddr {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.listener == nil {
		return nil
	}

	return n.listener.Multiaddr()
}

// Start starts listening, dialing and the periodic jobs.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.ctx != nil {
		n.mu.Unlock()

		return errors.New("node already started")
	}

	n.ctx, n.cancel = context.WithCancel(ctx)
	ctx = n.ctx
	n.mu.Unlock()

	if err := n.cooloff.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start cooloff cache")
	}

	if n.config.ListenAddr != "" {
		if err := n.listen(ctx); err != nil {
			return err
		}
	}

	n.startDialers(ctx)

	for _, finder := range n.finders {
		finder.OnPeer(ctx, n.enqueueDial)

		if err := finder.Start(ctx); err != nil {
			return errors.Wrap(err, "failed to start node finder")
		}
	}

	if err := n.startCrons(ctx); err != nil {
		return errors.Wrap(err, "failed to start crons")
	}

	n.log.WithFields(logrus.Fields{
		"network": n.network.Name,
		"peer_id": n.peerID,
		"listen":  n.ListenAddr(),
	}).Info("Node started")

	return nil
}

// Stop closes every connection and stops all background work.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.RLock()
	cancel := n.cancel
	listener := n.listener
	scheduler := n.scheduler
	n.mu.RUnlock()

	if cancel == nil {
		return errNotStarted
	}

	cancel()

	var err error

	if listener != nil {
		if cerr := listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}

	if scheduler != nil {
		err = multierr.Append(err, scheduler.Shutdown())
	}

	for _, finder := range n.finders {
		err = multierr.Append(err, finder.Stop(ctx))
	}

	for _, peer := range n.connections() {
		_ = peer.Conn().Close()
	}

	n.wg.Wait()

	err = multierr.Append(err, n.cooloff.Stop())

	n.log.Info("Node stopped")

	return err
}

func (n *Node) listen(ctx context.Context) error {
	addr, err := discovery.ParseAddress(n.config.ListenAddr)
	if err != nil {
		return errors.Wrap(err, "invalid listen address")
	}

	listener, err := manet.Listen(addr)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}

	n.mu.Lock()
	n.listener = listener
	n.mu.Unlock()

	n.wg.Add(1)

	go n.acceptLoop(ctx, listener)

	return nil
}

func (n *Node) acceptLoop(ctx context.Context, listener manet.Listener) {
	defer n.wg.Done()

	for {
		transport, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}

			n.log.WithError(err).Warn("Failed to accept connection")

			continue
		}

		n.handleInbound(ctx, transport)
	}
}

func (n *Node) handleInbound(ctx context.Context, transport manet.Conn) {
	if n.PeerCount() >= n.config.MaxPeers {
		n.metrics.recordFailedPeer(ErrPeerMaxPeers)

		_ = transport.Close()

		return
	}

	conn := levin.NewConn(n.log, transport, n.registry, n.config.Levin, n.levinMetrics, false)
	peer := newPeer(conn, transport.RemoteMultiaddr())

	n.trackPeer(ctx, peer)

	n.wg.Add(1)

	go func() {
		defer n.wg.Done()

		n.expectHandshake(ctx, peer)
	}()
}

// expectHandshake drops an inbound peer that stays silent for longer than
// the handshake timeout.
func (n *Node) expectHandshake(ctx context.Context, peer *Peer) {
	timer := time.NewTimer(n.config.HandshakeTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-peer.Conn().Done():
	case <-timer.C:
		if !peer.Handshaked() {
			n.log.WithField("peer", peer.String()).Debug("Inbound peer did not handshake in time")

			n.metrics.recordFailedPeer(ErrPeerHandshakeTimeout)

			_ = peer.Conn().Close()
		}
	}
}

// trackPeer adds peer to the connection table, starts it and removes it
// again once the connection closes.
func (n *Node) trackPeer(ctx context.Context, peer *Peer) {
	n.mu.Lock()
	n.peers[peer.ID()] = peer
	n.mu.Unlock()

	peer.Conn().Start(ctx)

	n.wg.Add(1)

	go func() {
		defer n.wg.Done()

		<-peer.Conn().Done()

		n.mu.Lock()
		delete(n.peers, peer.ID())
		n.mu.Unlock()

		if !peer.Handshaked() {
			return
		}

		n.metrics.recordPeerDisconnected(peer.Outbound())

		reason := peer.Conn().Err()
		if reason == nil {
			reason = levin.ErrConnectionClosed
		}

		n.log.WithError(reason).WithField("peer", peer.String()).Debug("Peer disconnected")

		n.emitPeerDisconnected(peer, reason)
	}()
}

// Connect dials addr and performs the handshake. Addresses tried within the
// cool-off window are refused with ErrPeerTooSoon.
func (n *Node) Connect(ctx context.Context, addr ma.Multiaddr) (*Peer, error) {
	n.mu.RLock()
	nodeCtx := n.ctx
	n.mu.RUnlock()

	if nodeCtx == nil {
		return nil, errNotStarted
	}

	if !n.cooloff.Try(addr.String()) {
		return nil, ErrPeerTooSoon
	}

	if n.PeerCount() >= n.config.MaxPeers {
		return nil, ErrPeerMaxPeers
	}

	transport, err := n.dial(ctx, addr)

	n.metrics.recordDial(err)

	if err != nil {
		perr := ErrPeerDialFailed.WithDetails(err.Error())

		n.metrics.recordFailedPeer(perr)

		return nil, perr
	}

	conn := levin.NewConn(n.log, transport, n.registry, n.config.Levin, n.levinMetrics, true)
	peer := newPeer(conn, addr)

	n.trackPeer(nodeCtx, peer)

	if err := n.handshake(ctx, peer); err != nil {
		n.metrics.recordFailedPeer(err)

		_ = conn.Close()

		return nil, err
	}

	n.log.WithFields(logrus.Fields{
		"peer":    peer.String(),
		"peer_id": peer.PeerID(),
		"height":  peer.SyncData().CurrentHeight,
	}).Debug("Connected to peer")

	n.emitPeerConnected(peer)

	return peer, nil
}

func (n *Node) dial(ctx context.Context, addr ma.Multiaddr) (manet.Conn, error) {
	operation := func() (manet.Conn, error) {
		dialCtx, cancel := context.WithTimeout(ctx, n.config.DialTimeout)
		defer cancel()

		var dialer manet.Dialer

		return dialer.DialContext(dialCtx, addr)
	}

	if !n.config.EnableRetry {
		return operation()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = n.config.RetryBackoff

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(n.config.MaxRetryAttempts),
		backoff.WithNotify(func(err error, duration time.Duration) {
			n.log.WithError(err).WithFields(logrus.Fields{
				"addr":  addr.String(),
				"retry": duration,
			}).Debug("Dial failed, retrying")
		}),
	)
}

func (n *Node) handshake(ctx context.Context, peer *Peer) error {
	ctx, cancel := context.WithTimeout(ctx, n.config.HandshakeTimeout)
	defer cancel()

	core, err := n.core.CoreSyncData(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get core sync data")
	}

	resp, err := levin.Invoke(ctx, peer.Conn(), protocol.Handshake, &protocol.HandshakeRequest{
		NodeData:    n.nodeData(),
		PayloadData: core,
	})
	if err != nil {
		return ErrPeerHandshakeFailed.WithDetails(err.Error())
	}

	if err := n.acceptPeer(peer, resp.NodeData, resp.PayloadData); err != nil {
		return err
	}

	n.addressBook.Add(resp.Peers...)
	n.metrics.recordKnownPeers(n.addressBook.Len())

	return nil
}

// acceptPeer validates the node data a peer sent and marks it handshaked.
func (n *Node) acceptPeer(peer *Peer, data protocol.BasicNodeData, core protocol.CoreSyncData) error {
	if data.NetworkID != n.network.ID {
		return ErrPeerNetworkMismatch.WithDetails(data.NetworkID.String())
	}

	if data.PeerID == n.peerID {
		return ErrPeerSelf
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	handshaked := 0

	for _, other := range n.peers {
		if other == peer || !other.Handshaked() {
			continue
		}

		if other.PeerID() == data.PeerID {
			return ErrPeerDuplicate.WithDetails(fmt.Sprintf("peer id %d", data.PeerID))
		}

		handshaked++
	}

	if handshaked >= n.config.MaxPeers {
		return ErrPeerMaxPeers
	}

	peer.completeHandshake(data, core)

	n.metrics.recordPeerConnected(peer.Outbound())

	return nil
}

func (n *Node) nodeData() protocol.BasicNodeData {
	return protocol.BasicNodeData{
		NetworkID:    n.network.ID,
		LocalTime:    uint64(time.Now().Unix()),
		MyPort:       n.config.MyPort,
		PeerID:       n.peerID,
		SupportFlags: protocol.SupportFlagsAll,
	}
}

func (n *Node) peer(id uint64) (*Peer, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	p, ok := n.peers[id]

	return p, ok
}

func (n *Node) connections() []*Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		out = append(out, p)
	}

	return out
}

// Peers returns the handshaked peers.
func (n *Node) Peers() []*Peer {
	all := n.connections()
	out := all[:0]

	for _, p := range all {
		if p.Handshaked() {
			out = append(out, p)
		}
	}

	return out
}

// PeerCount returns the number of handshaked peers.
func (n *Node) PeerCount() int {
	return len(n.Peers())
}

// AddPeer queues addr to be dialed.
func (n *Node) AddPeer(ctx context.Context, addr ma.Multiaddr) error {
	return n.enqueueDial(ctx, addr)
}

func (n *Node) enqueueDial(_ context.Context, addr ma.Multiaddr) error {
	select {
	case n.dials <- addr:
		n.metrics.recordPendingDials(len(n.dials))

		return nil
	default:
		return fmt.Errorf("dial queue full, dropping %s", addr)
	}
}

func (n *Node) startDialers(ctx context.Context) {
	for range n.config.DialConcurrency {
		n.wg.Add(1)

		go func() {
			defer n.wg.Done()

			for {
				select {
				case <-ctx.Done():
					return
				case addr := <-n.dials:
					n.metrics.recordPendingDials(len(n.dials))

					if _, err := n.Connect(ctx, addr); err != nil && !errors.Is(err, ErrPeerTooSoon) {
						n.log.WithError(err).WithField("addr", addr.String()).Debug("Failed to connect to peer")
					}
				}
			}
		}()
	}
}

func (n *Node) startCrons(ctx context.Context) error {
	c, err := gocron.NewScheduler(gocron.WithLocation(time.Local))
	if err != nil {
		return err
	}

	if _, err := c.NewJob(
		gocron.DurationJob(n.config.TimedSyncInterval),
		gocron.NewTask(func(ctx context.Context) {
			if err := n.SyncPeers(ctx); err != nil {
				n.log.WithError(err).Debug("Timed sync failed for some peers")
			}
		}, ctx),
	); err != nil {
		return err
	}

	if _, err := c.NewJob(
		gocron.DurationJob(n.config.DialInterval),
		gocron.NewTask(n.dialKnownPeers, ctx),
	); err != nil {
		return err
	}

	n.mu.Lock()
	n.scheduler = c
	n.mu.Unlock()

	c.Start()

	return nil
}

// SyncPeers runs a timed sync with every handshaked peer. Peers that fail
// are disconnected and their errors returned together.
func (n *Node) SyncPeers(ctx context.Context) error {
	core, err := n.core.CoreSyncData(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get core sync data")
	}

	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)

	g.SetLimit(n.config.DialConcurrency)

	for _, peer := range n.Peers() {
		g.Go(func() error {
			resp, err := levin.Invoke(ctx, peer.Conn(), protocol.TimedSync, &protocol.TimedSyncRequest{PayloadData: core})
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("timed sync with %s: %w", peer, err))
				mu.Unlock()

				_ = peer.Conn().Close()

				return nil
			}

			peer.updateSyncData(resp.PayloadData)
			n.emitPeerSyncData(peer, resp.PayloadData)

			n.addressBook.Add(resp.Peers...)

			return nil
		})
	}

	_ = g.Wait()

	n.metrics.recordKnownPeers(n.addressBook.Len())

	return errs
}

// dialKnownPeers queues address book entries for dialing until the peer
// table would be full.
func (n *Node) dialKnownPeers(ctx context.Context) {
	need := n.config.MaxPeers - n.PeerCount()
	if need <= 0 {
		return
	}

	connected := make(map[string]struct{})
	for _, p := range n.connections() {
		connected[p.Addr().String()] = struct{}{}
	}

	for _, entry := range n.addressBook.Sample(n.addressBook.Len()) {
		if need == 0 {
			return
		}

		if entry.ID == n.peerID {
			continue
		}

		addr, err := discovery.FromAddrPort(entry.Address.AddrPort)
		if err != nil {
			continue
		}

		key := addr.String()
		if _, ok := connected[key]; ok || n.cooloff.Contains(key) {
			continue
		}

		if err := n.enqueueDial(ctx, addr); err != nil {
			return
		}

		need--
	}
}

// Broadcast sends msg to every handshaked peer not listed in except and
// returns how many peers it reached.
func Broadcast[T any, P storable[T]](
	ctx context.Context,
	n *Node,
	notification levin.Notification[T],
	msg *T,
	except ...uint64,
) (int, error) {
	body, err := P(msg).ToSection()
	if err != nil {
		return 0, err
	}

	return n.BroadcastSection(ctx, notification.ID, body, except...)
}

// BroadcastSection sends body as a notification for command to every
// handshaked peer not listed in except.
func (n *Node) BroadcastSection(ctx context.Context, command uint32, body *portable.Section, except ...uint64) (int, error) {
	skip := make(map[uint64]struct{}, len(except))
	for _, id := range except {
		skip[id] = struct{}{}
	}

	var (
		mu      sync.Mutex
		reached int
		errs    error
		g       errgroup.Group
	)

	for _, peer := range n.Peers() {
		if _, ok := skip[peer.ID()]; ok {
			continue
		}

		g.Go(func() error {
			err := peer.Conn().Notify(ctx, command, body)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("notify %s: %w", peer, err))

				return nil
			}

			reached++

			return nil
		})
	}

	_ = g.Wait()

	return reached, errs
}

func addrPortOf(addr net.Addr) (netip.AddrPort, error) {
	m, err := manet.FromNetAddr(addr)
	if err != nil {
		return netip.AddrPort{}, err
	}

	return discovery.ToAddrPort(m)
}

func withPort(ap netip.AddrPort, port uint16) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr(), port)
}
