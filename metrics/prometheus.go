package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rtpmidi"

// Metrics contains all Prometheus metrics for the RTP-MIDI service
type Metrics struct {
	// Datagram metrics
	DatagramsReceived *prometheus.CounterVec
	DatagramsSent     *prometheus.CounterVec
	DatagramsDropped  *prometheus.CounterVec

	// Engine outcome metrics
	Responses   *prometheus.CounterVec
	Disconnects *prometheus.CounterVec
	PacketsLost prometheus.Counter

	// Session metrics
	ActivePeers  prometheus.Gauge
	PeersCreated prometheus.Counter
	Latency      prometheus.Histogram
}

// NewMetrics creates all metrics and registers them with reg. A nil reg
// registers with the Prometheus default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		DatagramsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_received_total",
			Help:      "Total number of UDP datagrams received, by channel",
		}, []string{"channel"}),
		DatagramsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_sent_total",
			Help:      "Total number of UDP datagrams sent, by channel",
		}, []string{"channel"}),
		DatagramsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_dropped_total",
			Help:      "Total number of datagrams dropped before reaching a session, by cause",
		}, []string{"cause"}),

		Responses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_responses_total",
			Help:      "Total number of session engine responses, by kind",
		}, []string{"kind"}),
		Disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Total number of session disconnects, by reason",
		}, []string{"reason"}),
		PacketsLost: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_lost_total",
			Help:      "Total number of MIDI packets detected as lost from sequence gaps",
		}),

		ActivePeers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_peers",
			Help:      "Current number of sessions",
		}),
		PeersCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peers_created_total",
			Help:      "Total number of sessions created",
		}),
		Latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "latency_seconds",
			Help:      "Latency measured by clock synchronization",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 100us to ~0.8s
		}),
	}
}

// ObserveLatency records a clock synchronization measurement.
func (m *Metrics) ObserveLatency(d time.Duration) {
	m.Latency.Observe(d.Seconds())
}
