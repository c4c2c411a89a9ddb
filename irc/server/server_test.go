package server_test

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lrstanley/girc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/presbrey/ircd/irc/config"
	"github.com/presbrey/ircd/irc/server"
)

const waitTimeout = 5 * time.Second

type IRCClient struct {
	Conn   net.Conn
	Reader *bufio.Reader
}

// NewIRCClient creates a new IRC client
func NewIRCClient(t *testing.T, address string) *IRCClient {
	t.Helper()
	conn, err := net.Dial("tcp", address)
	require.NoError(t, err, "Should connect to the server")
	t.Cleanup(func() { conn.Close() })

	return &IRCClient{
		Conn:   conn,
		Reader: bufio.NewReader(conn),
	}
}

// Send sends a message to the server
func (c *IRCClient) Send(message string) error {
	_, err := c.Conn.Write([]byte(message + "\r\n"))
	return err
}

// Expect waits for a message containing the expected string
func (c *IRCClient) Expect(t *testing.T, expected string, timeout time.Duration) (string, error) {
	lines, err := c.ReadUntil(t, expected, timeout)
	if err != nil {
		return "", err
	}
	return lines[len(lines)-1], nil
}

// ReadUntil reads until a specific pattern is found
func (c *IRCClient) ReadUntil(t *testing.T, pattern string, timeout time.Duration) ([]string, error) {
	c.Conn.SetReadDeadline(time.Now().Add(timeout))
	defer c.Conn.SetReadDeadline(time.Time{})

	lines := []string{}
	for {
		line, err := c.Reader.ReadString('\n')
		if err != nil {
			return lines, err
		}

		line = strings.TrimSpace(line)
		lines = append(lines, line)

		if strings.Contains(line, pattern) {
			return lines, nil
		}
	}
}

// Close closes the connection
func (c *IRCClient) Close() error {
	return c.Conn.Close()
}

// Register sends NICK and USER and waits for the end of the MOTD
func (c *IRCClient) Register(t *testing.T, nick string) {
	t.Helper()
	require.NoError(t, c.Send("NICK "+nick))
	require.NoError(t, c.Send("USER "+nick+" 0 * :"+nick))
	_, err := c.Expect(t, " 376 "+nick, waitTimeout)
	require.NoError(t, err, "%s should complete registration", nick)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Name = "irc.test"
	cfg.Server.Network = "TestNet"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Limits.FloodRate = 0
	return cfg
}

func startServer(t *testing.T, cfg *config.Config) (*server.Server, string) {
	t.Helper()
	srv := server.NewServer(cfg, nil, zaptest.NewLogger(t).Sugar())
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		srv.Stop(ctx)
	})
	return srv, srv.Addr().String()
}

func TestServerChat(t *testing.T) {
	_, addr := startServer(t, testConfig())

	alice := NewIRCClient(t, addr)
	alice.Register(t, "alice")
	bob := NewIRCClient(t, addr)
	bob.Register(t, "bob")

	require.NoError(t, alice.Send("JOIN #go"))
	_, err := alice.Expect(t, " 366 alice #go ", waitTimeout)
	require.NoError(t, err)

	require.NoError(t, bob.Send("JOIN #go"))
	lines, err := bob.ReadUntil(t, " 366 bob #go ", waitTimeout)
	require.NoError(t, err)
	assert.Contains(t, strings.Join(lines, "\n"), "353 bob = #go :@alice bob")

	line, err := alice.Expect(t, "JOIN", waitTimeout)
	require.NoError(t, err)
	assert.Equal(t, ":bob!bob@127.0.0.1 JOIN #go", line)

	require.NoError(t, bob.Send("PRIVMSG #go :hello, gophers"))
	line, err = alice.Expect(t, "PRIVMSG", waitTimeout)
	require.NoError(t, err)
	assert.Equal(t, ":bob!bob@127.0.0.1 PRIVMSG #go :hello, gophers", line)

	require.NoError(t, alice.Send("PING :lag-check"))
	line, err = alice.Expect(t, "PONG", waitTimeout)
	require.NoError(t, err)
	assert.Equal(t, ":irc.test PONG irc.test lag-check", line)
}

func TestServerQuit(t *testing.T) {
	_, addr := startServer(t, testConfig())

	alice := NewIRCClient(t, addr)
	alice.Register(t, "alice")
	bob := NewIRCClient(t, addr)
	bob.Register(t, "bob")

	alice.Send("JOIN #go")
	alice.Expect(t, " 366 ", waitTimeout)
	bob.Send("JOIN #go")
	bob.Expect(t, " 366 ", waitTimeout)

	require.NoError(t, bob.Send("QUIT :gone fishing"))
	line, err := bob.Expect(t, "ERROR", waitTimeout)
	require.NoError(t, err)
	assert.Equal(t, "ERROR :Closing Link: 127.0.0.1 (Quit: gone fishing)", line)

	line, err = alice.Expect(t, "QUIT", waitTimeout)
	require.NoError(t, err)
	assert.Equal(t, ":bob!bob@127.0.0.1 QUIT :Quit: gone fishing", line)

	// The server closes the socket after the ERROR line
	bob.Conn.SetReadDeadline(time.Now().Add(waitTimeout))
	_, err = bob.Reader.ReadString('\n')
	assert.Error(t, err)
}

func TestServerClientHangup(t *testing.T) {
	srv, addr := startServer(t, testConfig())

	alice := NewIRCClient(t, addr)
	alice.Register(t, "alice")
	bob := NewIRCClient(t, addr)
	bob.Register(t, "bob")

	alice.Send("JOIN #go")
	alice.Expect(t, " 366 ", waitTimeout)
	bob.Send("JOIN #go")
	bob.Expect(t, " 366 ", waitTimeout)

	bob.Close()

	line, err := alice.Expect(t, "QUIT", waitTimeout)
	require.NoError(t, err)
	assert.Equal(t, ":bob!bob@127.0.0.1 QUIT :Quit: Connection closed", line)
	stats := srv.Dispatcher().Snapshot()
	assert.Equal(t, 1, stats.Users)
	assert.Equal(t, []server.ChannelInfo{{Name: "#go", Members: []string{"@alice"}}}, stats.Channels)
}

func TestServerLineTooLong(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.MaxLine = 512
	_, addr := startServer(t, cfg)

	c := NewIRCClient(t, addr)
	c.Register(t, "alice")

	require.NoError(t, c.Send("PRIVMSG alice :"+strings.Repeat("a", 600)))
	line, err := c.Expect(t, "ERROR", waitTimeout)
	require.NoError(t, err)
	assert.Equal(t, "ERROR :Closing Link: 127.0.0.1 (Quit: Input line too long)", line)
}

func TestServerPingTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.PingInterval = 200 * time.Millisecond
	cfg.Limits.PingTimeout = 200 * time.Millisecond
	_, addr := startServer(t, cfg)

	c := NewIRCClient(t, addr)
	c.Register(t, "alice")

	line, err := c.Expect(t, "PING", waitTimeout)
	require.NoError(t, err)
	assert.Equal(t, "PING irc.test", line)

	// Answering keeps the connection alive for another round
	require.NoError(t, c.Send("PONG :irc.test"))
	_, err = c.Expect(t, "PING", waitTimeout)
	require.NoError(t, err)

	line, err = c.Expect(t, "ERROR", waitTimeout)
	require.NoError(t, err)
	assert.Equal(t, "ERROR :Closing Link: 127.0.0.1 (Quit: Ping timeout)", line)
}

func TestServerRegistrationTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.PingInterval = 200 * time.Millisecond
	_, addr := startServer(t, cfg)

	c := NewIRCClient(t, addr)
	require.NoError(t, c.Send("NICK lurker"))

	line, err := c.Expect(t, "ERROR", waitTimeout)
	require.NoError(t, err)
	assert.Equal(t, "ERROR :Closing Link: 127.0.0.1 (Quit: Registration timeout)", line)
}

func TestServerStop(t *testing.T) {
	srv, addr := startServer(t, testConfig())

	c := NewIRCClient(t, addr)
	c.Register(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	line, err := c.Expect(t, "ERROR", waitTimeout)
	require.NoError(t, err)
	assert.Equal(t, "ERROR :Closing Link: 127.0.0.1 (Quit: Server shutting down)", line)

	_, err = net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err, "listener should be closed")

	// Stopping twice is harmless
	require.NoError(t, srv.Stop(ctx))
}

func TestServerGircClient(t *testing.T) {
	_, addr := startServer(t, testConfig())
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	watcher := NewIRCClient(t, addr)
	watcher.Register(t, "watcher")
	watcher.Send("JOIN #go")
	_, err = watcher.Expect(t, " 366 ", waitTimeout)
	require.NoError(t, err)

	received := make(chan string, 1)
	bot := girc.New(girc.Config{
		Server: host,
		Port:   port,
		Nick:   "gircbot",
		User:   "gircbot",
		Name:   "girc test bot",
	})
	bot.Handlers.Add(girc.CONNECTED, func(c *girc.Client, e girc.Event) {
		c.Cmd.Join("#go")
		c.Cmd.Message("#go", "hello from girc")
	})
	bot.Handlers.Add(girc.PRIVMSG, func(c *girc.Client, e girc.Event) {
		select {
		case received <- e.Last():
		default:
		}
	})

	go bot.Connect()
	t.Cleanup(bot.Close)

	line, err := watcher.Expect(t, "PRIVMSG", waitTimeout)
	require.NoError(t, err)
	assert.Equal(t, ":gircbot!gircbot@127.0.0.1 PRIVMSG #go :hello from girc", line)

	require.NoError(t, watcher.Send("PRIVMSG #go :hi bot"))
	select {
	case text := <-received:
		assert.Equal(t, "hi bot", text)
	case <-time.After(waitTimeout):
		t.Fatal("bot never saw the channel message")
	}
}

func TestServerFloodLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.FloodRate = 20
	cfg.Limits.FloodBurst = 1
	_, addr := startServer(t, cfg)

	c := NewIRCClient(t, addr)
	c.Register(t, "alice")

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Send("PING :"+strconv.Itoa(i)))
	}
	_, err := c.Expect(t, "PONG irc.test 4", waitTimeout)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond, "lines beyond the burst should be paced")
}
