package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Instance interface {
	Register(r prometheus.Registerer)

	Action(action string)
	PublishFailed(channel string)
	EventAppended(kind string, evicted bool)
	ConnectionOpened()
	ConnectionClosed()
	BridgeMessage(ok bool)
}

type Options struct {
	Labels prometheus.Labels
}

type mon struct {
	actions         *prometheus.CounterVec
	publishFailures *prometheus.CounterVec
	eventsAppended  *prometheus.CounterVec
	eventsEvicted   *prometheus.CounterVec
	connections     prometheus.Gauge
	bridgeMessages  *prometheus.CounterVec
}

func New(o Options) Instance {
	return &mon{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "live_actions_total",
			Help:        "The number of collaboration actions handled",
			ConstLabels: o.Labels,
		}, []string{"action"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "live_publish_failures_total",
			Help:        "The number of envelopes the broadcaster failed to deliver",
			ConstLabels: o.Labels,
		}, []string{"channel"}),
		eventsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "live_event_log_appended_total",
			Help:        "The number of envelopes appended to board event logs",
			ConstLabels: o.Labels,
		}, []string{"kind"}),
		eventsEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "live_event_log_evicted_total",
			Help:        "The number of envelopes evicted from full board event logs",
			ConstLabels: o.Labels,
		}, []string{"kind"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "live_ws_connections",
			Help:        "The number of open websocket connections",
			ConstLabels: o.Labels,
		}),
		bridgeMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "live_bridge_messages_total",
			Help:        "The number of actions received over the event bridge",
			ConstLabels: o.Labels,
		}, []string{"result"}),
	}
}

func (m *mon) Register(r prometheus.Registerer) {
	r.MustRegister(
		m.actions,
		m.publishFailures,
		m.eventsAppended,
		m.eventsEvicted,
		m.connections,
		m.bridgeMessages,
	)
}

func (m *mon) Action(action string) {
	m.actions.WithLabelValues(action).Inc()
}

func (m *mon) PublishFailed(channel string) {
	m.publishFailures.WithLabelValues(channel).Inc()
}

func (m *mon) EventAppended(kind string, evicted bool) {
	m.eventsAppended.WithLabelValues(kind).Inc()

	if evicted {
		m.eventsEvicted.WithLabelValues(kind).Inc()
	}
}

func (m *mon) ConnectionOpened() {
	m.connections.Inc()
}

func (m *mon) ConnectionClosed() {
	m.connections.Dec()
}

func (m *mon) BridgeMessage(ok bool) {
	if ok {
		m.bridgeMessages.WithLabelValues("ok").Inc()
	} else {
		m.bridgeMessages.WithLabelValues("error").Inc()
	}
}
