package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the Prometheus instruments the server exposes at /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	ConnectedClients   prometheus.Gauge
	EventsBroadcast    *prometheus.CounterVec
	DroppedMessages    prometheus.Counter
	SideEffectFailures *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bedtrack_connected_clients",
			Help: "Number of realtime sessions currently registered with the hub.",
		}),
		EventsBroadcast: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bedtrack_events_broadcast_total",
			Help: "Realtime events fanned out to sessions, by event name.",
		}, []string{"event"}),
		DroppedMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "bedtrack_dropped_messages_total",
			Help: "Messages dropped because a session send buffer was full.",
		}),
		SideEffectFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bedtrack_side_effect_failures_total",
			Help: "Background side effects that failed, by task name.",
		}, []string{"task"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bedtrack_http_requests_total",
			Help: "HTTP requests served, by method and status.",
		}, []string{"method", "status"}),
	}
}
