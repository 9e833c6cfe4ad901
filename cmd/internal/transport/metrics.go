package transport

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the transport's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	episodes     *prometheus.CounterVec
	attempts     *prometheus.CounterVec
	state        prometheus.Gauge
	replacements prometheus.Counter
	auth         *prometheus.CounterVec
}

// NewMetrics registers the transport collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		episodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mezon",
			Subsystem: "transport",
			Name:      "reconnect_episodes_total",
			Help:      "Reconnection episodes by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mezon",
			Subsystem: "transport",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnection attempts by result.",
		}, []string{"result"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mezon",
			Subsystem: "transport",
			Name:      "reconnect_state",
			Help:      "Current reconnection state (0 idle, 1 reconnecting, 2 recovered, 3 exhausted).",
		}),
		replacements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mezon",
			Subsystem: "transport",
			Name:      "socket_replacements_total",
			Help:      "Socket handles created.",
		}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mezon",
			Subsystem: "transport",
			Name:      "auth_total",
			Help:      "Authentication flow results.",
		}, []string{"flow", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.episodes, m.attempts, m.state, m.replacements, m.auth)
	}
	return m
}

func (m *Metrics) episode(o Outcome) {
	if m == nil {
		return
	}
	m.episodes.WithLabelValues(o.String()).Inc()
}

func (m *Metrics) attempt(ok bool) {
	if m == nil {
		return
	}
	result := "fail"
	if ok {
		result = "ok"
	}
	m.attempts.WithLabelValues(result).Inc()
}

func (m *Metrics) setState(s ReconnectState) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
}

func (m *Metrics) socketReplaced() {
	if m == nil {
		return
	}
	m.replacements.Inc()
}

func (m *Metrics) authResult(flow string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.auth.WithLabelValues(flow, result).Inc()
}
