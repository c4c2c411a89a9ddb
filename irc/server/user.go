package server

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/presbrey/ircd/irc"
)

var (
	// ErrSendQExceeded is returned by Send when the outbound queue is full
	ErrSendQExceeded = errors.New("sendq exceeded")
	// ErrUserClosed is returned by Send after the user has been torn down
	ErrUserClosed = errors.New("user closed")
)

// User is one client connection and, once registered, the identity behind it.
//
// Identity and membership fields are guarded by the dispatcher's lock. The
// outbound queue is safe for concurrent use.
type User struct {
	ID        string
	Host      string
	Nick      string
	Username  string
	Realname  string
	Connected time.Time

	registered     bool
	away           string
	password       string
	capNegotiating bool
	caps           map[string]bool
	channels       map[string]*Channel // keyed by folded channel name
	gone           bool

	outbox     chan string
	done       chan struct{}
	closeOnce  sync.Once
	overflowed atomic.Bool
}

// NewUser creates an unregistered user whose outbound queue holds up to sendq lines
func NewUser(id, host string, sendq int) *User {
	if sendq < 1 {
		sendq = 1
	}
	return &User{
		ID:        id,
		Host:      host,
		Connected: time.Now(),
		caps:      make(map[string]bool),
		channels:  make(map[string]*Channel),
		outbox:    make(chan string, sendq),
		done:      make(chan struct{}),
	}
}

// Send queues one encoded line without blocking
func (u *User) Send(line string) error {
	select {
	case <-u.done:
		return ErrUserClosed
	default:
	}

	select {
	case u.outbox <- line:
		return nil
	default:
		return ErrSendQExceeded
	}
}

// Outbox returns the queue drained by the connection writer
func (u *User) Outbox() <-chan string {
	return u.outbox
}

// Done is closed once the user has been torn down
func (u *User) Done() <-chan struct{} {
	return u.done
}

func (u *User) close() {
	u.closeOnce.Do(func() {
		close(u.done)
	})
}

// Mask returns the user's nick!user@host
func (u *User) Mask() string {
	return irc.FormatHostmask(orStar(u.Nick), orStar(u.Username), u.Host)
}

// displayNick is the nick used as the first parameter of numeric replies
func (u *User) displayNick() string {
	return orStar(u.Nick)
}

// Registered reports whether the registration handshake has completed
func (u *User) Registered() bool {
	return u.registered
}

// Away returns the away message, empty when present
func (u *User) Away() string {
	return u.away
}

// HasCap reports whether a capability was negotiated
func (u *User) HasCap(name string) bool {
	return u.caps[name]
}

// ChannelNames returns the display names of joined channels, sorted
func (u *User) ChannelNames() []string {
	names := make([]string, 0, len(u.channels))
	for _, ch := range u.channels {
		names = append(names, ch.Name)
	}
	sort.Strings(names)
	return names
}

// IsOn reports whether the user is a member of the named channel
func (u *User) IsOn(channel string) bool {
	_, ok := u.channels[irc.Fold(channel)]
	return ok
}

func orStar(s string) string {
	if s == "" {
		return "*"
	}
	return s
}
