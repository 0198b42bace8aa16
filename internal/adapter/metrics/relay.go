package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RelayMetrics holds Prometheus metrics for the connection registry and fanout.
// All methods are safe to call on a nil receiver.
type RelayMetrics struct {
	Connections          *prometheus.GaugeVec
	CodesBroadcast       *prometheus.CounterVec
	Deliveries           prometheus.Counter
	DroppedDeliveries    prometheus.Counter
	ProtocolErrors       *prometheus.CounterVec
	IgnoredMessages      *prometheus.CounterVec
	LivenessTerminations prometheus.Counter
	ForcedCloses         prometheus.Counter
	SendDuration         prometheus.Histogram
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	factory := promauto.With(reg)
	return &RelayMetrics{
		Connections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "connections",
			Help:      "Number of tracked WebSocket connections, by role.",
		}, []string{"role"}),
		CodesBroadcast: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "codes_broadcast_total",
			Help:      "Total number of codes fanned out, by ingestion source.",
		}, []string{"source"}),
		Deliveries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "deliveries_total",
			Help:      "Total number of code events queued to consumers.",
		}),
		DroppedDeliveries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "dropped_deliveries_total",
			Help:      "Total number of code events dropped for consumers with a full send queue.",
		}),
		ProtocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "protocol_errors_total",
			Help:      "Total number of connections closed for protocol violations, by reason.",
		}, []string{"reason"}),
		IgnoredMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "ignored_messages_total",
			Help:      "Total number of inbound messages ignored, by reason.",
		}, []string{"reason"}),
		LivenessTerminations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "liveness_terminations_total",
			Help:      "Total number of connections terminated for missing a keepalive probe.",
		}),
		ForcedCloses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "forced_closes_total",
			Help:      "Total number of connections force-terminated after their close grace window.",
		}),
		SendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "send_duration_seconds",
			Help:      "Duration of single WebSocket frame writes in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

func (m *RelayMetrics) ConnectionOpened(role string) {
	if m != nil {
		m.Connections.WithLabelValues(role).Inc()
	}
}

func (m *RelayMetrics) ConnectionClosed(role string) {
	if m != nil {
		m.Connections.WithLabelValues(role).Dec()
	}
}

func (m *RelayMetrics) RoleAssigned(from, to string) {
	if m != nil {
		m.Connections.WithLabelValues(from).Dec()
		m.Connections.WithLabelValues(to).Inc()
	}
}

func (m *RelayMetrics) Broadcast(source string, delivered, dropped int) {
	if m != nil {
		m.CodesBroadcast.WithLabelValues(source).Inc()
		m.Deliveries.Add(float64(delivered))
		m.DroppedDeliveries.Add(float64(dropped))
	}
}

func (m *RelayMetrics) ProtocolError(reason string) {
	if m != nil {
		m.ProtocolErrors.WithLabelValues(reason).Inc()
	}
}

func (m *RelayMetrics) MessageIgnored(reason string) {
	if m != nil {
		m.IgnoredMessages.WithLabelValues(reason).Inc()
	}
}

func (m *RelayMetrics) LivenessTerminated() {
	if m != nil {
		m.LivenessTerminations.Inc()
	}
}

func (m *RelayMetrics) ForcedClose() {
	if m != nil {
		m.ForcedCloses.Inc()
	}
}

func (m *RelayMetrics) ObserveSend(d time.Duration) {
	if m != nil {
		m.SendDuration.Observe(d.Seconds())
	}
}
