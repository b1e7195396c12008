// Package telemetry exposes observability for a running sender or
// receiver process: Prometheus counters/gauges and a read-only
// WebSocket status feed built from the sender's receiver registry. The
// Report packet's trailing telemetry floats are not read. Telemetry
// only ever observes
// state the core components have already computed — it never feeds
// back into protocol decisions.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter/gauge the sender and receiver publish.
type Metrics struct {
	PacketsSent       *prometheus.CounterVec
	PacketsReceived   *prometheus.CounterVec
	RetransmitsServed prometheus.Counter
	ParityReconstructions prometheus.Counter
	FramesRendered    prometheus.Counter
	FramesDropped     prometheus.Counter
	BitrateReady      prometheus.Gauge
	BitrateKeyframe   prometheus.Gauge
	ReceiverLossPct   *prometheus.GaugeVec
	AudioOverflows    prometheus.Counter
	AudioUnderflows   prometheus.Counter
}

// NewMetrics registers every duplexcast metric against reg and returns
// the bundle. Passing a fresh prometheus.NewRegistry() (rather than the
// global DefaultRegisterer) lets sender and receiver processes, or
// multiple tests, register independently without collisions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duplexcast",
			Name:      "packets_sent_total",
			Help:      "Packets sent, by kind.",
		}, []string{"kind"}),
		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duplexcast",
			Name:      "packets_received_total",
			Help:      "Packets received, by kind.",
		}, []string{"kind"}),
		RetransmitsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "duplexcast",
			Name:      "retransmits_served_total",
			Help:      "Requests resolved against sender storage.",
		}),
		ParityReconstructions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "duplexcast",
			Name:      "parity_reconstructions_total",
			Help:      "Video packets recovered via parity XOR.",
		}),
		FramesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "duplexcast",
			Name:      "frames_rendered_total",
			Help:      "Video frames submitted to Presentation.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "duplexcast",
			Name:      "frames_dropped_total",
			Help:      "Video frames discarded while skipping to a keyframe.",
		}),
		BitrateReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "duplexcast",
			Name:      "bitrate_is_ready",
			Help:      "1 if the adaptive bitrate gate allowed the last capture tick.",
		}),
		BitrateKeyframe: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "duplexcast",
			Name:      "bitrate_keyframe",
			Help:      "1 if the last capture tick was gated to produce a keyframe.",
		}),
		ReceiverLossPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "duplexcast",
			Name:      "receiver_loss_percent",
			Help:      "Estimated packet loss percentage, by receiver_id.",
		}, []string{"receiver_id"}),
		AudioOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "duplexcast",
			Name:      "audio_ring_overflows_total",
			Help:      "Audio samples dropped by producer-side ring buffer overflow.",
		}),
		AudioUnderflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "duplexcast",
			Name:      "audio_ring_underflows_total",
			Help:      "Audio ring buffer consumer-side underflow events.",
		}),
	}

	reg.MustRegister(
		m.PacketsSent, m.PacketsReceived, m.RetransmitsServed,
		m.ParityReconstructions, m.FramesRendered, m.FramesDropped,
		m.BitrateReady, m.BitrateKeyframe, m.ReceiverLossPct,
		m.AudioOverflows, m.AudioUnderflows,
	)
	return m
}
