package server

import (
	"sort"
	"strings"
	"time"

	"github.com/presbrey/ircd/irc"
)

// Topic is a channel topic and who set it
type Topic struct {
	Text   string
	Author string
	SetAt  time.Time
}

// Ban is one entry of a channel's ban list
type Ban struct {
	Mask  string
	SetBy string
	SetAt time.Time
}

// Channel represents an IRC channel.
// All fields are guarded by the dispatcher's lock.
type Channel struct {
	Name    string
	Created time.Time

	topic     *Topic
	modes     map[rune]bool
	members   map[*User]struct{}
	operators map[*User]struct{}
	bans      []Ban
}

// NewChannel creates an empty channel with the default +t mode
func NewChannel(name string) *Channel {
	return &Channel{
		Name:      name,
		Created:   time.Now(),
		modes:     map[rune]bool{'t': true},
		members:   make(map[*User]struct{}),
		operators: make(map[*User]struct{}),
	}
}

// AddMember adds u to the channel and records the membership on u
func (ch *Channel) AddMember(u *User) {
	ch.members[u] = struct{}{}
	u.channels[irc.Fold(ch.Name)] = ch
}

// RemoveMember drops u's membership and operator status on both sides
func (ch *Channel) RemoveMember(u *User) {
	delete(ch.members, u)
	delete(ch.operators, u)
	delete(u.channels, irc.Fold(ch.Name))
}

// HasMember reports whether u is on the channel
func (ch *Channel) HasMember(u *User) bool {
	_, ok := ch.members[u]
	return ok
}

// Len returns the member count
func (ch *Channel) Len() int {
	return len(ch.members)
}

// IsOperator reports whether u is a channel operator
func (ch *Channel) IsOperator(u *User) bool {
	_, ok := ch.operators[u]
	return ok
}

// SetOperator grants operator status to a member. Non-members are ignored
// so the operator set stays a subset of the member set.
func (ch *Channel) SetOperator(u *User) {
	if ch.HasMember(u) {
		ch.operators[u] = struct{}{}
	}
}

// RemoveOperator revokes operator status
func (ch *Channel) RemoveOperator(u *User) {
	delete(ch.operators, u)
}

// Operators returns the operators sorted by nick
func (ch *Channel) Operators() []*User {
	return sortedUsers(ch.operators)
}

// Members returns a snapshot of the members sorted by nick
func (ch *Channel) Members() []*User {
	return sortedUsers(ch.members)
}

// Names returns member nicks for a NAMES reply, operators prefixed with '@'
func (ch *Channel) Names() []string {
	members := ch.Members()
	names := make([]string, 0, len(members))
	for _, u := range members {
		if ch.IsOperator(u) {
			names = append(names, "@"+u.Nick)
		} else {
			names = append(names, u.Nick)
		}
	}
	return names
}

// Topic returns the current topic, nil when unset
func (ch *Channel) Topic() *Topic {
	return ch.topic
}

// SetTopic sets the topic; empty text clears it
func (ch *Channel) SetTopic(text, author string) {
	if text == "" {
		ch.topic = nil
		return
	}
	ch.topic = &Topic{Text: text, Author: author, SetAt: time.Now()}
}

// HasMode reports whether a channel mode letter is set
func (ch *Channel) HasMode(mode rune) bool {
	return ch.modes[mode]
}

// SetMode sets or clears a channel mode letter
func (ch *Channel) SetMode(mode rune, on bool) {
	if on {
		ch.modes[mode] = true
	} else {
		delete(ch.modes, mode)
	}
}

// ModeString returns the channel modes as "+t"
func (ch *Channel) ModeString() string {
	letters := make([]string, 0, len(ch.modes))
	for m := range ch.modes {
		letters = append(letters, string(m))
	}
	sort.Strings(letters)
	return "+" + strings.Join(letters, "")
}

// AddBan adds a normalized mask. It reports false if the mask was already banned.
func (ch *Channel) AddBan(mask, setBy string) bool {
	for _, b := range ch.bans {
		if irc.Fold(b.Mask) == irc.Fold(mask) {
			return false
		}
	}
	ch.bans = append(ch.bans, Ban{Mask: mask, SetBy: setBy, SetAt: time.Now()})
	return true
}

// RemoveBan removes a mask. It reports false if the mask was not banned.
func (ch *Channel) RemoveBan(mask string) bool {
	for i, b := range ch.bans {
		if irc.Fold(b.Mask) == irc.Fold(mask) {
			ch.bans = append(ch.bans[:i], ch.bans[i+1:]...)
			return true
		}
	}
	return false
}

// Bans returns a copy of the ban list in the order entries were added
func (ch *Channel) Bans() []Ban {
	bans := make([]Ban, len(ch.bans))
	copy(bans, ch.bans)
	return bans
}

// IsBanned reports whether u's current mask matches any ban
func (ch *Channel) IsBanned(u *User) bool {
	mask := u.Mask()
	for _, b := range ch.bans {
		if irc.MatchMask(b.Mask, mask) {
			return true
		}
	}
	return false
}

func sortedUsers(set map[*User]struct{}) []*User {
	users := make([]*User, 0, len(set))
	for u := range set {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return irc.Fold(users[i].Nick) < irc.Fold(users[j].Nick)
	})
	return users
}
