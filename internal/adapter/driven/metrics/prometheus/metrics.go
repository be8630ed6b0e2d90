package prometheus

import (
	"net/http"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interbot"

// Metrics implements port.Metrics on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	events     *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	outcomes   *prometheus.CounterVec
	rpcErrors  *prometheus.CounterVec
	callStatus *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_events_total",
			Help:      "User events received, by type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_events_dropped_total",
			Help:      "User events dropped, by type and reason.",
		}, []string{"type", "reason"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_outcomes_total",
			Help:      "Activity negotiation outcomes.",
		}, []string{"activity", "outcome"}),
		rpcErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_errors_total",
			Help:      "Failed RPC calls, by method.",
		}, []string{"method"}),
		callStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "call_status",
			Help:      "1 for the current call status, 0 otherwise.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.events, m.dropped, m.outcomes, m.rpcErrors, m.callStatus,
	)
	m.CallStatus(domain.CallReady)
	return m
}

func (m *Metrics) EventReceived(t domain.EventType) {
	m.events.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) EventDropped(t domain.EventType, reason string) {
	m.dropped.WithLabelValues(string(t), reason).Inc()
}

func (m *Metrics) ActivityOutcome(name domain.ActivityName, kind domain.OutcomeKind) {
	m.outcomes.WithLabelValues(string(name), kind.String()).Inc()
}

func (m *Metrics) RPCFailed(method string) {
	m.rpcErrors.WithLabelValues(method).Inc()
}

func (m *Metrics) CallStatus(status domain.CallStatus) {
	for _, s := range []domain.CallStatus{domain.CallReady, domain.CallConnecting, domain.CallReceiving, domain.CallInCall} {
		v := 0.0
		if s == status {
			v = 1
		}
		m.callStatus.WithLabelValues(string(s)).Set(v)
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
