package server

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/presbrey/ircd/irc"
)

const testHost = "127.0.0.1"

func testSettings() Settings {
	return Settings{
		Name:    "irc.test",
		Network: "TestNet",
		MOTD:    []string{"Hello {nick}"},
	}
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	return NewDispatcher(testSettings(), nil, zaptest.NewLogger(t).Sugar())
}

// lookup finds a user by nick under the dispatcher lock
func (d *Dispatcher) lookup(nick string) *User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.users.Lookup(nick)
}

// channel finds a channel by name under the dispatcher lock
func (d *Dispatcher) channel(name string) *Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channels.Get(name)
}

// testClient drives one in-memory user through a dispatcher
type testClient struct {
	t *testing.T
	d *Dispatcher
	u *User
}

func connect(t *testing.T, d *Dispatcher, id string) *testClient {
	t.Helper()
	u := NewUser(id, testHost, 256)
	require.NoError(t, d.Connect(u))
	return &testClient{t: t, d: d, u: u}
}

// register connects and completes registration, discarding the welcome burst
func register(t *testing.T, d *Dispatcher, nick string) *testClient {
	t.Helper()
	c := connect(t, d, nick+"-conn")
	c.send("NICK " + nick)
	c.send("USER " + nick + " 0 * :" + nick)
	require.True(t, c.u.Registered(), "%s did not register", nick)
	c.drain()
	return c
}

func (c *testClient) send(line string) {
	c.t.Helper()
	msg, ok := irc.ParseMessage(line)
	require.True(c.t, ok, "unparseable line %q", line)
	c.d.Dispatch(c.u, msg)
}

// drain returns every queued line, parsed
func (c *testClient) drain() []*irc.Message {
	c.t.Helper()
	var msgs []*irc.Message
	for {
		select {
		case line := <-c.u.Outbox():
			msg, ok := irc.ParseMessage(line)
			require.True(c.t, ok, "unparseable reply %q", line)
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

// one drains and requires exactly one line
func (c *testClient) one() *irc.Message {
	c.t.Helper()
	msgs := c.drain()
	require.Len(c.t, msgs, 1, "got %v", commandsOf(msgs))
	return msgs[0]
}

func (c *testClient) mask() string {
	return c.u.Mask()
}

func (c *testClient) closed() bool {
	select {
	case <-c.u.Done():
		return true
	default:
		return false
	}
}

func drainAll(clients ...*testClient) {
	for _, c := range clients {
		c.drain()
	}
}

func commandsOf(msgs []*irc.Message) []string {
	commands := make([]string, len(msgs))
	for i, m := range msgs {
		commands[i] = m.Command
	}
	return commands
}
