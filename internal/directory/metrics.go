package directory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the relay's Prometheus instruments. A nil registerer yields
// working but unregistered instruments, which is what tests use.
type Metrics struct {
	Rooms          prometheus.Gauge
	Participants   prometheus.Gauge
	SignalsRelayed prometheus.Counter
	SignalsDropped prometheus.Counter
	ProtocolErrors prometheus.Counter
	Evictions      prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Rooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_relay_rooms",
			Help: "Number of non-empty rooms",
		}),
		Participants: factory.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_relay_participants",
			Help: "Number of connected participants",
		}),
		SignalsRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "huddle_relay_signals_relayed_total",
			Help: "Negotiation payloads forwarded to their target",
		}),
		SignalsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "huddle_relay_signals_dropped_total",
			Help: "Negotiation payloads dropped because the target was absent or not reading",
		}),
		ProtocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "huddle_relay_protocol_errors_total",
			Help: "Malformed or unrecognized inbound messages",
		}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "huddle_relay_evictions_total",
			Help: "Participants disconnected because their send queue was full",
		}),
	}
}
