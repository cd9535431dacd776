package levin

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for bucket traffic. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	framesReceived *prometheus.CounterVec
	framesSent     *prometheus.CounterVec
	bytesReceived  prometheus.Counter
	bytesSent      prometheus.Counter
	invocations    *prometheus.CounterVec
	invokeDuration *prometheus.HistogramVec
	errors         *prometheus.CounterVec
	connections    prometheus.Gauge

	registered bool
	mu         sync.Mutex
}

// NewMetrics creates the levin metrics under namespace.
func NewMetrics(namespace string) *Metrics {
	subsystem := "levin"

	return &Metrics{
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_received_total",
			Help:      "Number of buckets received",
		}, []string{"command", "flags"}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_sent_total",
			Help:      "Number of buckets written",
		}, []string{"command", "flags"}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_received_total",
			Help:      "Number of bytes read from peers",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_sent_total",
			Help:      "Number of bytes written to peers",
		}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "invocations_total",
			Help:      "Number of completed outbound invocations",
		}, []string{"command", "result"}),
		invokeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "invocation_duration_seconds",
			Help:      "Time from enqueueing an invocation to its response",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Number of protocol errors by type",
		}, []string{"type"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections",
			Help:      "Number of open connections",
		}),
	}
}

// Register registers the metrics with registerer, or the default registerer
// when nil.
func (m *Metrics) Register(registerer prometheus.Registerer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	collectors := []prometheus.Collector{
		m.framesReceived,
		m.framesSent,
		m.bytesReceived,
		m.bytesSent,
		m.invocations,
		m.invokeDuration,
		m.errors,
		m.connections,
	}

	for i, c := range collectors {
		if err := registerer.Register(c); err != nil {
			for _, prev := range collectors[:i] {
				registerer.Unregister(prev)
			}

			return err
		}
	}

	m.registered = true

	return nil
}

func commandLabel(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (m *Metrics) recordFrameReceived(h Header) {
	if m == nil {
		return
	}

	m.framesReceived.WithLabelValues(commandLabel(h.Command), h.Flags.String()).Inc()
	m.bytesReceived.Add(float64(HeaderSize + h.BodySize))
}

func (m *Metrics) recordFrameSent(command uint32, flags Flags, size int) {
	if m == nil {
		return
	}

	m.framesSent.WithLabelValues(commandLabel(command), flags.String()).Inc()
	m.bytesSent.Add(float64(size))
}

func (m *Metrics) recordInvocation(command uint32, err error, took time.Duration) {
	if m == nil {
		return
	}

	m.invocations.WithLabelValues(commandLabel(command), errorType(err)).Inc()
	m.invokeDuration.WithLabelValues(commandLabel(command)).Observe(took.Seconds())
}

func (m *Metrics) recordError(err error) {
	if m == nil {
		return
	}

	m.errors.WithLabelValues(errorType(err)).Inc()
}

func (m *Metrics) connectionOpened() {
	if m == nil {
		return
	}

	m.connections.Inc()
}

func (m *Metrics) connectionClosed() {
	if m == nil {
		return
	}

	m.connections.Dec()
}
