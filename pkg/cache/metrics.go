package cache

import (
	"sync"

	"github.com/jellydator/ttlcache/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for a cool-off cache. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	insertionsTotal prometheus.Counter
	hitsTotal       prometheus.Counter
	evictionsTotal  *prometheus.CounterVec
	sizeGauge       prometheus.Gauge

	registered bool
	mu         sync.Mutex
}

// MetricsConfig holds configuration for cache metrics.
type MetricsConfig struct {
	// Namespace is the prometheus namespace for metrics.
	Namespace string
	// Subsystem is the prometheus subsystem for metrics.
	// If empty, defaults to "cooloff".
	Subsystem string
	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if cfg.Subsystem == "" {
		cfg.Subsystem = "cooloff"
	}

	return &Metrics{
		insertionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "insertions_total",
			Help:        "Total number of keys put into cool-off",
			ConstLabels: cfg.ConstLabels,
		}),
		hitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "hits_total",
			Help:        "Total number of attempts skipped because the key was cooling off",
			ConstLabels: cfg.ConstLabels,
		}),
		evictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "evictions_total",
			Help:        "Total number of keys leaving cool-off",
			ConstLabels: cfg.ConstLabels,
		}, []string{"reason"}),
		sizeGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "size",
			Help:        "Current number of keys cooling off",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

// Register registers the metrics with the provided registerer.
// If registerer is nil, the default prometheus registerer is used.
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
		m.insertionsTotal,
		m.hitsTotal,
		m.evictionsTotal,
		m.sizeGauge,
	}

	for i, c := range collectors {
		if err := registerer.Register(c); err != nil {
			// Undo the partial registration.
			for _, prev := range collectors[:i] {
				registerer.Unregister(prev)
			}

			return err
		}
	}

	m.registered = true

	return nil
}

// Unregister unregisters the metrics from the provided registerer.
func (m *Metrics) Unregister(registerer prometheus.Registerer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.registered {
		return
	}

	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	registerer.Unregister(m.insertionsTotal)
	registerer.Unregister(m.hitsTotal)
	registerer.Unregister(m.evictionsTotal)
	registerer.Unregister(m.sizeGauge)

	m.registered = false
}

func (m *Metrics) recordInsertion() {
	if m == nil {
		return
	}

	m.insertionsTotal.Inc()
}

func (m *Metrics) recordHit() {
	if m == nil {
		return
	}

	m.hitsTotal.Inc()
}

func (m *Metrics) recordEviction(reason ttlcache.EvictionReason) {
	if m == nil {
		return
	}

	m.evictionsTotal.WithLabelValues(evictionReason(reason)).Inc()
}

func (m *Metrics) setSize(size int) {
	if m == nil {
		return
	}

	m.sizeGauge.Set(float64(size))
}

func evictionReason(reason ttlcache.EvictionReason) string {
	switch reason {
	case ttlcache.EvictionReasonDeleted:
		return "deleted"
	case ttlcache.EvictionReasonCapacityReached:
		return "capacity"
	case ttlcache.EvictionReasonExpired:
		return "expired"
	default:
		return "unknown"
	}
}
