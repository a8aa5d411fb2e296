// Package metrics registers the Prometheus surface for one peerd instance,
// re-themed from the teacher's quorum/CCS metrics to sync, gossip,
// election, and crypto concerns.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector this node exports.
type Metrics struct {
	PullLatency       *prometheus.HistogramVec
	PushAckTotal      *prometheus.CounterVec
	HandshakeOutcomes *prometheus.CounterVec

	GossipMessagesPropagated prometheus.Counter
	GossipMessagesReceived   prometheus.Counter
	GossipMessagesDropped    *prometheus.CounterVec
	GossipHops               prometheus.Histogram

	ElectionFlipsTotal prometheus.Counter
	IsCloudGateway     prometheus.Gauge

	HealthRTT          *prometheus.GaugeVec
	HealthFailureTotal *prometheus.CounterVec

	CryptoHandshakeLatency prometheus.Histogram
	CompressionRatio       prometheus.Histogram

	Errors *prometheus.CounterVec
}

// NewMetrics constructs and registers every collector under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		PullLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pull_latency_seconds",
			Help:      "Latency of one orchestrator pull round-trip per peer",
			Buckets:   prometheus.DefBuckets,
		}, []string{"peer"}),

		PushAckTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_ack_total",
			Help:      "Total push acknowledgements by result",
		}, []string{"result"}),

		HandshakeOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_outcomes_total",
			Help:      "Application handshake outcomes",
		}, []string{"outcome"}),

		GossipMessagesPropagated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gossip_messages_propagated_total",
			Help:      "Total locally originated gossip messages",
		}),

		GossipMessagesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gossip_messages_received_total",
			Help:      "Total gossip messages received, including duplicates",
		}),

		GossipMessagesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gossip_messages_dropped_total",
			Help:      "Total gossip messages dropped by reason",
		}, []string{"reason"}),

		GossipHops: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gossip_hops",
			Help:      "Hop count of accepted gossip messages",
			Buckets:   prometheus.LinearBuckets(0, 1, 5),
		}),

		ElectionFlipsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "election_flips_total",
			Help:      "Total isCloudGateway state flips",
		}),

		IsCloudGateway: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "is_cloud_gateway",
			Help:      "Whether this node currently holds the elected leadership (1=yes, 0=no)",
		}),

		HealthRTT: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_rtt_seconds",
			Help:      "Round-trip time of the last successful health probe per peer",
		}, []string{"peer"}),

		HealthFailureTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_failure_total",
			Help:      "Total failed health probes per peer",
		}, []string{"peer"}),

		CryptoHandshakeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crypto_handshake_latency_seconds",
			Help:      "Latency of the ECDH handshake",
			Buckets:   prometheus.DefBuckets,
		}),

		CompressionRatio: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compression_ratio",
			Help:      "Compressed-over-original payload size ratio when Brotli was applied",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),

		Errors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total errors by taxonomy category",
		}, []string{"category"}),
	}
}

// ObserveRTT and IncFailure implement internal/health.Recorder, letting
// cmd/peerd wire Metrics directly into the health probe.
func (m *Metrics) ObserveRTT(peer string, rtt time.Duration) {
	m.HealthRTT.WithLabelValues(peer).Set(rtt.Seconds())
}

func (m *Metrics) IncFailure(peer string) {
	m.HealthFailureTotal.WithLabelValues(peer).Inc()
}

// RecordElectionFlip updates the gateway gauge and flip counter together,
// mirroring election.Subscriber's callback shape.
func (m *Metrics) RecordElectionFlip(isCloudGateway bool) {
	m.ElectionFlipsTotal.Inc()
	if isCloudGateway {
		m.IsCloudGateway.Set(1)
	} else {
		m.IsCloudGateway.Set(0)
	}
}

// RecordError increments the error counter for a taxonomy category, e.g.
// "protocol", "auth", "crypto", "transport", "timeout", "store", "config".
func (m *Metrics) RecordError(category string) {
	m.Errors.WithLabelValues(category).Inc()
}
