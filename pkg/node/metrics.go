package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// Metrics holds Prometheus metrics for a Node. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	peers         *prometheus.GaugeVec
	pendingDials  prometheus.Gauge
	dials         *prometheus.CounterVec
	failedPeers   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	knownPeers    prometheus.Gauge
}

// NewMetrics creates the node metrics under namespace.
func NewMetrics(namespace string) *Metrics {
	subsystem := "node"

	return &Metrics{
		peers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "peers",
			Help:      "Number of handshaked peers",
		}, []string{"direction"}),
		pendingDials: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pending_dials",
			Help:      "Number of addresses waiting to be dialed",
		}),
		dials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dials_total",
			Help:      "Number of outbound dial attempts",
		}, []string{"result"}),
		failedPeers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "failed_peers_total",
			Help:      "Number of peers refused or dropped",
		}, []string{"reason"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_total",
			Help:      "Number of notifications received from peers",
		}, []string{"command"}),
		knownPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "address_book_size",
			Help:      "Number of addresses in the address book",
		}),
	}
}

// Register registers every collector with registerer. Collectors that fail
// to register are reported together.
func (m *Metrics) Register(registerer prometheus.Registerer) error {
	var err error

	for _, c := range []prometheus.Collector{
		m.peers,
		m.pendingDials,
		m.dials,
		m.failedPeers,
		m.notifications,
		m.knownPeers,
	} {
		err = multierr.Append(err, registerer.Register(c))
	}

	return err
}

func direction(outbound bool) string {
	if outbound {
		return "outbound"
	}

	return "inbound"
}

func (m *Metrics) recordPeerConnected(outbound bool) {
	if m == nil {
		return
	}

	m.peers.WithLabelValues(direction(outbound)).Inc()
}

func (m *Metrics) recordPeerDisconnected(outbound bool) {
	if m == nil {
		return
	}

	m.peers.WithLabelValues(direction(outbound)).Dec()
}

func (m *Metrics) recordPendingDials(count int) {
	if m == nil {
		return
	}

	m.pendingDials.Set(float64(count))
}

func (m *Metrics) recordDial(err error) {
	if m == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "failure"
	}

	m.dials.WithLabelValues(result).Inc()
}

func (m *Metrics) recordFailedPeer(err error) {
	if m == nil {
		return
	}

	m.failedPeers.WithLabelValues(errorType(err)).Inc()
}

func (m *Metrics) recordNotification(command string) {
	if m == nil {
		return
	}

	m.notifications.WithLabelValues(command).Inc()
}

func (m *Metrics) recordKnownPeers(count int) {
	if m == nil {
		return
	}

	m.knownPeers.Set(float64(count))
}
