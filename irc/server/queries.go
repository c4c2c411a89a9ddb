package server

import (
	"strings"

	"github.com/presbrey/ircd/irc"
)

// handleAway sets or clears the away message. Users sharing a channel that
// negotiated away-notify are told about the change.
func handleAway(ctx *Context) error {
	d, u := ctx.Dispatcher, ctx.User

	text := ctx.Param(0)
	var notice *irc.Message
	if text == "" {
		u.away = ""
		d.numeric(u, irc.RPL_UNAWAY, "You are no longer marked as being away")
		notice = d.from(u, "AWAY")
	} else {
		u.away = text
		d.numeric(u, irc.RPL_NOWAWAY, "You have been marked as being away")
		notice = d.from(u, "AWAY", text)
	}

	var recipients []*User
	for _, other := range d.sharing(u) {
		if other.HasCap("away-notify") {
			recipients = append(recipients, other)
		}
	}
	d.broadcast(recipients, notice)
	return nil
}

// handleWho lists the members of a channel, or a single user
func handleWho(ctx *Context) error {
	d, u := ctx.Dispatcher, ctx.User

	mask := ctx.Param(0)
	if mask == "" {
		mask = "*"
	}

	if irc.IsChannel(mask) {
		if ch := d.channels.Get(mask); ch != nil {
			for _, member := range ch.Members() {
				d.whoReply(u, ch.Name, member, ch.IsOperator(member))
			}
		}
	} else if target := d.users.Lookup(mask); target != nil && target.registered {
		d.whoReply(u, "*", target, false)
	}

	d.numeric(u, irc.RPL_ENDOFWHO, mask, "End of /WHO list.")
	return nil
}

// whoReply sends one RPL_WHOREPLY line about target
func (d *Dispatcher) whoReply(u *User, channel string, target *User, op bool) {
	flags := "H"
	if target.away != "" {
		flags = "G"
	}
	if op {
		flags += "@"
	}
	d.numeric(u, irc.RPL_WHOREPLY, channel, target.Username, target.Host,
		d.settings.Name, target.Nick, flags, "0 "+target.Realname)
}

// handleWhois describes a single user
func handleWhois(ctx *Context) error {
	d, u := ctx.Dispatcher, ctx.User

	params := ctx.Message.Params
	if len(params) < 1 {
		return irc.NewError(irc.NoNicknameGiven)
	}

	// WHOIS [server] <nick>
	nick := params[len(params)-1]
	target := d.users.Lookup(nick)
	if target == nil || !target.registered {
		return irc.NewError(irc.NoSuchNick, nick)
	}

	d.numeric(u, irc.RPL_WHOISUSER, target.Nick, target.Username, target.Host, "*", target.Realname)

	var channels []string
	for _, name := range target.ChannelNames() {
		ch := d.channels.Get(name)
		if ch != nil && ch.IsOperator(target) {
			name = "@" + name
		}
		channels = append(channels, name)
	}
	if len(channels) > 0 {
		d.numeric(u, irc.RPL_WHOISCHANNELS, target.Nick, strings.Join(channels, " "))
	}

	d.numeric(u, irc.RPL_WHOISSERVER, target.Nick, d.settings.Name, d.settings.Network)
	if target.away != "" {
		d.numeric(u, irc.RPL_AWAY, target.Nick, target.away)
	}
	d.numeric(u, irc.RPL_ENDOFWHOIS, target.Nick, "End of /WHOIS list.")
	return nil
}
