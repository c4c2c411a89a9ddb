package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMember(nick string) *User {
	u := NewUser(nick, testHost, 1)
	u.Nick = nick
	u.Username = nick
	return u
}

func TestChannelRegistry(t *testing.T) {
	r := NewChannelRegistry()

	ch, created := r.GetOrCreate("#Go")
	require.True(t, created)
	assert.Equal(t, "#Go", ch.Name)

	again, created := r.GetOrCreate("#GO")
	assert.False(t, created)
	assert.Same(t, ch, again)
	assert.Same(t, ch, r.Get("#go"))
	assert.Equal(t, 1, r.Len())

	alice := newMember("alice")
	ch.AddMember(alice)
	assert.False(t, r.RemoveIfEmpty(ch))
	assert.Equal(t, 1, r.Len())

	ch.RemoveMember(alice)
	assert.True(t, r.RemoveIfEmpty(ch))
	assert.Nil(t, r.Get("#go"))
	assert.False(t, r.RemoveIfEmpty(ch))

	r.GetOrCreate("#b")
	r.GetOrCreate("#A")
	var names []string
	for _, c := range r.Channels() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"#A", "#b"}, names)
}

func TestChannelMembership(t *testing.T) {
	ch := NewChannel("#go")
	alice, bob, carol := newMember("alice"), newMember("Bob"), newMember("carol")

	ch.AddMember(bob)
	ch.AddMember(alice)
	ch.SetOperator(alice)

	// Operators must be members
	ch.SetOperator(carol)
	assert.False(t, ch.IsOperator(carol))

	assert.True(t, alice.IsOn("#GO"))
	assert.Equal(t, 2, ch.Len())
	assert.Equal(t, []string{"@alice", "Bob"}, ch.Names())
	assert.Equal(t, []*User{alice}, ch.Operators())

	ch.RemoveMember(alice)
	assert.False(t, ch.IsOperator(alice))
	assert.False(t, alice.IsOn("#go"))
	assert.Empty(t, ch.Operators())

	ch.SetOperator(bob)
	ch.RemoveOperator(bob)
	assert.False(t, ch.IsOperator(bob))
	assert.True(t, ch.HasMember(bob))
}

func TestChannelModesAndTopic(t *testing.T) {
	ch := NewChannel("#go")
	assert.True(t, ch.HasMode('t'))
	assert.Equal(t, "+t", ch.ModeString())

	ch.SetMode('t', false)
	assert.Equal(t, "+", ch.ModeString())

	assert.Nil(t, ch.Topic())
	ch.SetTopic("hello", "alice")
	require.NotNil(t, ch.Topic())
	assert.Equal(t, "hello", ch.Topic().Text)
	assert.Equal(t, "alice", ch.Topic().Author)
	assert.False(t, ch.Topic().SetAt.IsZero())

	ch.SetTopic("", "bob")
	assert.Nil(t, ch.Topic())
}

func TestChannelBans(t *testing.T) {
	ch := NewChannel("#go")
	bob := newMember("bob")

	assert.False(t, ch.IsBanned(bob))
	assert.True(t, ch.AddBan("bob!*@*", "alice!alice@host"))
	assert.False(t, ch.AddBan("BOB!*@*", "alice!alice@host"))
	assert.True(t, ch.IsBanned(bob))

	assert.True(t, ch.AddBan("*!*@10.*", "alice!alice@host"))
	bans := ch.Bans()
	require.Len(t, bans, 2)
	assert.Equal(t, "bob!*@*", bans[0].Mask)
	assert.Equal(t, "alice!alice@host", bans[0].SetBy)

	// The copy is independent of the channel
	bans[0].Mask = "changed"
	assert.Equal(t, "bob!*@*", ch.Bans()[0].Mask)

	assert.True(t, ch.RemoveBan("Bob!*@*"))
	assert.False(t, ch.RemoveBan("bob!*@*"))
	assert.False(t, ch.IsBanned(bob))
	assert.Len(t, ch.Bans(), 1)
}
