package server

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	d := NewDispatcher(testSettings(), m, zaptest.NewLogger(t).Sugar())

	alice := register(t, d, "alice")
	bob := register(t, d, "bob")
	connect(t, d, "pending")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.connections))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.users))

	alice.send("JOIN #a,#b")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.channels))

	alice.send("FOO")
	alice.send("BAR")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("other")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.errors.WithLabelValues("421")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("NICK")))

	alice.send("QUIT")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.disconnects.WithLabelValues("quit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.channels))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.users))

	d.Disconnect(bob.u, "Ping timeout")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.disconnects.WithLabelValues("ping_timeout")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.users))

	count, err := testutil.GatherAndCount(reg, "ircd_disconnects_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.connectionOpened()
		m.userRegistered()
		m.setChannels(3)
		m.command("JOIN")
		m.errorReply("401")
		m.sendqDrop()
		m.connectionClosed("quit", true)
	})
}

func TestCauseLabel(t *testing.T) {
	assert.Equal(t, "ping_timeout", causeLabel("Ping timeout"))
	assert.Equal(t, "sendq_exceeded", causeLabel("SendQ exceeded"))
	assert.Equal(t, "connection_closed", causeLabel(reasonClosed))
}
