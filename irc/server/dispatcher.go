package server

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/presbrey/ircd/hooks"
	"github.com/presbrey/ircd/irc"
)

// Version is reported in RPL_YOURHOST and RPL_MYINFO
const Version = "ircd-1.0"

// Settings carries the identity the dispatcher advertises to clients
type Settings struct {
	Name    string
	Network string
	Version string
	Created time.Time
	// MOTD lines; "{nick}" is replaced by the recipient's nick
	MOTD []string
	// PasswordHash is a bcrypt hash clients must match with PASS, if set
	PasswordHash string
}

// Context is handed to every command hook
type Context struct {
	Dispatcher *Dispatcher
	User       *User
	Message    *irc.Message
}

// Param returns the i-th command parameter or an empty string
func (ctx *Context) Param(i int) string {
	return ctx.Message.Param(i)
}

// Dispatcher is the state machine at the core of the server. It owns the
// user and channel registries and applies every command as one atomic
// transition under a single lock. Replies and broadcasts are queued on
// the recipients' outbound queues, which never block, so the lock is
// never held across network I/O.
type Dispatcher struct {
	mu       sync.Mutex
	users    *UserRegistry
	channels *ChannelRegistry
	handlers *hooks.Table[*Context]
	settings Settings
	metrics  *Metrics
	log      *zap.SugaredLogger
}

// NewDispatcher creates a dispatcher with the default command hooks
// registered. metrics and log may be nil.
func NewDispatcher(settings Settings, metrics *Metrics, log *zap.SugaredLogger) *Dispatcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if settings.Version == "" {
		settings.Version = Version
	}
	if settings.Created.IsZero() {
		settings.Created = time.Now()
	}

	d := &Dispatcher{
		users:    NewUserRegistry(),
		channels: NewChannelRegistry(),
		handlers: hooks.NewTable[*Context](log),
		settings: settings,
		metrics:  metrics,
		log:      log,
	}
	d.registerDefaultHooks()
	return d
}

// RegisterHook adds a hook for a verb. Hooks with a lower priority run
// first; the built-in handlers use priority 0.
func (d *Dispatcher) RegisterHook(verb string, hook hooks.Hook[*Context], priority int64) {
	d.handlers.OnWithPriority(verb, hook, priority)
}

// Settings returns the advertised server identity
func (d *Dispatcher) Settings() Settings {
	return d.settings
}

// Connect registers a new connection's user
func (d *Dispatcher) Connect(u *User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.users.Register(u); err != nil {
		return err
	}
	d.metrics.connectionOpened()
	return nil
}

// preRegistration lists the verbs accepted before registration completes
var preRegistration = map[string]bool{
	"CAP":  true,
	"NICK": true,
	"PASS": true,
	"PING": true,
	"PONG": true,
	"QUIT": true,
	"USER": true,
}

// Dispatch applies one command from u. Commands of one connection must be
// dispatched in the order they were received.
func (d *Dispatcher) Dispatch(u *User, msg *irc.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if u.gone {
		return
	}
	d.metrics.command(msg.Command)

	if !u.registered && !preRegistration[msg.Command] {
		d.fail(u, irc.NewError(irc.NotRegistered))
		return
	}

	found, err := d.handlers.Run(msg.Command, &Context{Dispatcher: d, User: u, Message: msg})
	if !found {
		err = irc.NewError(irc.UnknownCommand, msg.Command)
	}
	if err != nil {
		d.fail(u, err)
	}
}

// Disconnect tears u down. It is safe to call any number of times from
// any goroutine; only the first call has an effect. reason must be one of
// a fixed set of strings since it also labels the disconnect metric.
func (d *Dispatcher) Disconnect(u *User, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.quit(u, reason, causeLabel(reason))
}

// causeLabel turns "Ping timeout" into "ping_timeout"
func causeLabel(reason string) string {
	return strings.ToLower(strings.ReplaceAll(reason, " ", "_"))
}

// Ping queues a keepalive PING for u. It reports false when u has not
// completed registration, in which case nothing is sent.
func (d *Dispatcher) Ping(u *User) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if u.gone || !u.registered {
		return false
	}
	d.send(u, irc.NewMessage("", "PING", d.settings.Name))
	return true
}

// Shutdown disconnects every user
func (d *Dispatcher) Shutdown(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range d.users.Users() {
		d.quit(u, reason, "shutdown")
	}
}

// quit removes u from every channel and from the registry, tells everyone
// who shared a channel, and closes u's queue. Must hold d.mu.
func (d *Dispatcher) quit(u *User, reason, cause string) {
	if u.gone {
		return
	}
	u.gone = true

	recipients := d.sharing(u)
	for _, ch := range u.channels {
		ch.RemoveMember(u)
		d.channels.RemoveIfEmpty(ch)
	}
	d.users.Remove(u)

	d.broadcast(recipients, d.from(u, "QUIT", "Quit: "+reason))
	d.send(u, irc.NewMessage("", "ERROR", "Closing Link: "+u.Host+" (Quit: "+reason+")"))
	u.close()

	d.metrics.connectionClosed(cause, u.registered)
	d.metrics.setChannels(d.channels.Len())
	d.log.Infow("client quit", "conn_id", u.ID, "nick", u.Nick, "reason", reason)
}

// removeMember drops u from ch and deletes ch if that emptied it. Must hold d.mu.
func (d *Dispatcher) removeMember(ch *Channel, u *User) {
	ch.RemoveMember(u)
	if d.channels.RemoveIfEmpty(ch) {
		d.metrics.setChannels(d.channels.Len())
	}
}

// sharing returns every other user on at least one of u's channels
func (d *Dispatcher) sharing(u *User) []*User {
	seen := make(map[*User]struct{})
	for _, ch := range u.channels {
		for other := range ch.members {
			if other != u {
				seen[other] = struct{}{}
			}
		}
	}
	return sortedUsers(seen)
}

// fail reports a rejected command to its sender
func (d *Dispatcher) fail(u *User, err error) {
	var ircErr *irc.Error
	if errors.As(err, &ircErr) {
		d.metrics.errorReply(ircErr.Numeric())
		d.send(u, ircErr.Reply(d.settings.Name, u.Nick))
		return
	}
	d.log.Errorw("command failed", "conn_id", u.ID, "nick", u.Nick, "error", err)
}

// from builds a message sourced by u
func (d *Dispatcher) from(u *User, command string, params ...string) *irc.Message {
	return irc.NewMessage(u.Mask(), command, params...)
}

// numeric sends a numeric reply addressed to u
func (d *Dispatcher) numeric(u *User, code string, params ...string) {
	all := make([]string, 0, len(params)+1)
	all = append(all, u.displayNick())
	all = append(all, params...)
	d.send(u, irc.NewMessage(d.settings.Name, code, all...))
}

// send queues one message for u
func (d *Dispatcher) send(u *User, msg *irc.Message) {
	line, err := msg.Line()
	if err != nil {
		d.log.Warnw("dropping unencodable message", "conn_id", u.ID, "error", err)
		return
	}
	d.deliver(u, line)
}

// broadcast encodes msg once and queues it for each recipient
func (d *Dispatcher) broadcast(recipients []*User, msg *irc.Message) {
	line, err := msg.Line()
	if err != nil {
		d.log.Warnw("dropping unencodable broadcast", "command", msg.Command, "error", err)
		return
	}
	for _, u := range recipients {
		d.deliver(u, line)
	}
}

func (d *Dispatcher) deliver(u *User, line string) {
	err := u.Send(line)
	if !errors.Is(err, ErrSendQExceeded) {
		return
	}
	d.metrics.sendqDrop()
	if u.overflowed.CompareAndSwap(false, true) {
		d.log.Warnw("sendq exceeded", "conn_id", u.ID, "nick", u.Nick)
		go d.Disconnect(u, "SendQ exceeded")
	}
}

// ChannelInfo is a point-in-time view of one channel
type ChannelInfo struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
	Topic   string   `json:"topic"`
}

// Stats is a point-in-time view of the server state
type Stats struct {
	Users      int           `json:"users"`
	Registered int           `json:"registered"`
	Channels   []ChannelInfo `json:"channels"`
}

// Snapshot returns a consistent view of users and channels
func (d *Dispatcher) Snapshot() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := Stats{Channels: []ChannelInfo{}}
	for _, u := range d.users.Users() {
		stats.Users++
		if u.registered {
			stats.Registered++
		}
	}
	for _, ch := range d.channels.Channels() {
		info := ChannelInfo{Name: ch.Name, Members: ch.Names()}
		if t := ch.Topic(); t != nil {
			info.Topic = t.Text
		}
		stats.Channels = append(stats.Channels, info)
	}
	sort.Slice(stats.Channels, func(i, j int) bool {
		return irc.Fold(stats.Channels[i].Name) < irc.Fold(stats.Channels[j].Name)
	})
	return stats
}
