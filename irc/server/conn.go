package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/ergochat/irc-go/ircreader"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/presbrey/ircd/irc"
)

const (
	// initialReadBuffer is the starting size of the line buffer
	initialReadBuffer = 512
	// writeTimeout bounds a single write to the socket
	writeTimeout = 30 * time.Second
)

// Disconnect reasons raised by the transport
const (
	reasonClosed       = "Connection closed"
	reasonReadError    = "Read error"
	reasonWriteError   = "Write error"
	reasonLineTooLong  = "Input line too long"
	reasonPingTimeout  = "Ping timeout"
	reasonRegTimeout   = "Registration timeout"
	reasonShuttingDown = "Server shutting down"
)

// conn moves lines between one socket and the dispatcher. The reader
// goroutine parses and dispatches in arrival order; the writer goroutine
// is the only one that writes to the socket.
type conn struct {
	srv     *Server
	nc      net.Conn
	user    *User
	log     *zap.SugaredLogger
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	idle    *time.Timer
	pending atomic.Bool // a keepalive PING is unanswered
}

func newConn(srv *Server, nc net.Conn, user *User) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{
		srv:    srv,
		nc:     nc,
		user:   user,
		ctx:    ctx,
		cancel: cancel,
		log: srv.log.With(
			"conn_id", user.ID,
			"remote", nc.RemoteAddr().String(),
		),
	}

	limits := srv.config.Limits
	if limits.FloodRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(limits.FloodRate), limits.FloodBurst)
	}
	return c
}

// serve runs the connection until it is torn down
func (c *conn) serve() {
	c.log.Info("client connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	c.idle = time.AfterFunc(c.srv.config.Limits.PingInterval, c.onIdle)
	c.readLoop()
	c.idle.Stop()

	<-writerDone
	c.log.Info("client disconnected")
}

func (c *conn) readLoop() {
	d := c.srv.dispatcher

	var reader ircreader.Reader
	reader.Initialize(c.nc, initialReadBuffer, c.srv.config.Limits.MaxLine)

	for {
		raw, err := reader.ReadLine()
		if err != nil {
			d.Disconnect(c.user, readErrorReason(err))
			return
		}
		line := string(raw)
		c.touch()

		if c.limiter != nil {
			if err := c.limiter.Wait(c.ctx); err != nil {
				return
			}
		}

		msg, ok := irc.ParseMessage(line)
		if !ok {
			continue
		}
		c.log.Debugw("recv", "line", line)
		d.Dispatch(c.user, msg)

		select {
		case <-c.user.Done():
			return
		default:
		}
	}
}

func readErrorReason(err error) string {
	switch {
	case errors.Is(err, ircreader.ErrReadQ):
		return reasonLineTooLong
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return reasonClosed
	default:
		return reasonReadError
	}
}

// writeLoop drains the user's queue to the socket. Once the user is torn
// down it flushes whatever is still queued, such as the closing ERROR
// line, and closes the socket.
func (c *conn) writeLoop() {
	defer c.cancel()
	defer c.nc.Close()

	outbox := c.user.Outbox()
	for {
		select {
		case line := <-outbox:
			if err := c.write(line); err != nil {
				c.log.Debugw("write failed", "error", err)
				c.srv.dispatcher.Disconnect(c.user, reasonWriteError)
				return
			}
		case <-c.user.Done():
			for {
				select {
				case line := <-outbox:
					if c.write(line) != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (c *conn) write(line string) error {
	c.log.Debugw("send", "line", line)
	if err := c.nc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := io.WriteString(c.nc, line)
	return err
}

// touch records inbound activity and restarts the keepalive timer
func (c *conn) touch() {
	c.pending.Store(false)
	c.idle.Reset(c.srv.config.Limits.PingInterval)
}

// onIdle fires when the connection has been silent for a whole interval.
// The first fire sends a PING; a second fire without activity in between
// ends the connection.
func (c *conn) onIdle() {
	d := c.srv.dispatcher

	if c.pending.Load() {
		d.Disconnect(c.user, reasonPingTimeout)
		return
	}
	c.pending.Store(true)
	if !d.Ping(c.user) {
		d.Disconnect(c.user, reasonRegTimeout)
		return
	}
	c.idle.Reset(c.srv.config.Limits.PingTimeout)
}
