package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects server-side Prometheus metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	connections  prometheus.Gauge
	users        prometheus.Gauge
	channels     prometheus.Gauge
	commands     *prometheus.CounterVec
	errors       *prometheus.CounterVec
	sendqDropped prometheus.Counter
	disconnects  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ircd_connections",
			Help: "Open client connections, registered or not",
		}),
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ircd_registered_users",
			Help: "Users that completed registration",
		}),
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ircd_channels",
			Help: "Existing channels",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ircd_commands_total",
			Help: "Commands received, by verb",
		}, []string{"verb"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ircd_command_errors_total",
			Help: "Error replies sent, by numeric",
		}, []string{"numeric"}),
		sendqDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ircd_sendq_dropped_total",
			Help: "Outbound lines dropped because a client's sendq was full",
		}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ircd_disconnects_total",
			Help: "Client teardowns, by cause",
		}, []string{"cause"}),
	}

	reg.MustRegister(
		m.connections,
		m.users,
		m.channels,
		m.commands,
		m.errors,
		m.sendqDropped,
		m.disconnects,
	)
	return m
}

// knownVerbs bounds the label cardinality of ircd_commands_total
var knownVerbs = map[string]bool{
	"AWAY": true, "CAP": true, "JOIN": true, "KICK": true, "MODE": true,
	"MOTD": true, "NAMES": true, "NICK": true, "NOTICE": true, "PART": true,
	"PASS": true, "PING": true, "PONG": true, "PRIVMSG": true, "QUIT": true,
	"TOPIC": true, "USER": true, "WHO": true, "WHOIS": true,
}

func (m *Metrics) connectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) connectionClosed(cause string, wasRegistered bool) {
	if m == nil {
		return
	}
	m.connections.Dec()
	if wasRegistered {
		m.users.Dec()
	}
	m.disconnects.WithLabelValues(cause).Inc()
}

func (m *Metrics) userRegistered() {
	if m != nil {
		m.users.Inc()
	}
}

func (m *Metrics) setChannels(n int) {
	if m != nil {
		m.channels.Set(float64(n))
	}
}

func (m *Metrics) command(verb string) {
	if m == nil {
		return
	}
	if !knownVerbs[verb] {
		verb = "other"
	}
	m.commands.WithLabelValues(verb).Inc()
}

func (m *Metrics) errorReply(numeric string) {
	if m != nil {
		m.errors.WithLabelValues(numeric).Inc()
	}
}

func (m *Metrics) sendqDrop() {
	if m != nil {
		m.sendqDropped.Inc()
	}
}
