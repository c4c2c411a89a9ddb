package server

import (
	"strconv"
	"strings"

	"github.com/presbrey/ircd/irc"
)

// registerDefaultHooks registers the built-in command handlers
func (d *Dispatcher) registerDefaultHooks() {
	for verb, hook := range map[string]func(*Context) error{
		"AWAY":    handleAway,
		"CAP":     handleCap,
		"JOIN":    handleJoin,
		"KICK":    handleKick,
		"MODE":    handleMode,
		"MOTD":    handleMotd,
		"NAMES":   handleNames,
		"NICK":    handleNick,
		"NOTICE":  handleNotice,
		"PART":    handlePart,
		"PASS":    handlePass,
		"PING":    handlePing,
		"PONG":    handlePong,
		"PRIVMSG": handlePrivmsg,
		"QUIT":    handleQuit,
		"TOPIC":   handleTopic,
		"USER":    handleUser,
		"WHO":     handleWho,
		"WHOIS":   handleWhois,
	} {
		d.handlers.On(verb, hook)
	}
}

// handleJoin handles the JOIN command
func handleJoin(ctx *Context) error {
	d, u := ctx.Dispatcher, ctx.User

	if len(ctx.Message.Params) < 1 {
		return irc.NewError(irc.NeedMoreParams, "JOIN")
	}

	// JOIN 0 leaves every channel
	if ctx.Param(0) == "0" {
		for _, name := range u.ChannelNames() {
			d.part(u, d.channels.Get(name), "")
		}
		return nil
	}

	for _, name := range strings.Split(ctx.Param(0), ",") {
		if err := d.join(u, name); err != nil {
			d.fail(u, err)
		}
	}
	return nil
}

// join adds u to the named channel, creating it with u as its operator
// when it does not exist yet. Must hold d.mu.
func (d *Dispatcher) join(u *User, name string) error {
	if !irc.ValidChannelName(name) {
		return irc.NewError(irc.NoSuchChannel, name)
	}

	ch, created := d.channels.GetOrCreate(name)
	if created {
		ch.AddMember(u)
		ch.SetOperator(u)
		d.metrics.setChannels(d.channels.Len())
	} else {
		if ch.HasMember(u) {
			return nil
		}
		if ch.IsBanned(u) {
			return irc.NewError(irc.BannedFromChannel, ch.Name)
		}
		ch.AddMember(u)
	}

	d.broadcast(ch.Members(), d.from(u, "JOIN", ch.Name))
	if ch.Topic() != nil {
		d.sendTopic(u, ch)
	}
	d.sendNames(u, ch)
	return nil
}

// handlePart handles the PART command
func handlePart(ctx *Context) error {
	d, u := ctx.Dispatcher, ctx.User

	if len(ctx.Message.Params) < 1 {
		return irc.NewError(irc.NeedMoreParams, "PART")
	}

	reason := ctx.Param(1)
	for _, name := range strings.Split(ctx.Param(0), ",") {
		ch := d.channels.Get(name)
		if ch == nil {
			d.fail(u, irc.NewError(irc.NoSuchChannel, name))
			continue
		}
		if !ch.HasMember(u) {
			d.fail(u, irc.NewError(irc.NotOnChannel, ch.Name))
			continue
		}
		d.part(u, ch, reason)
	}
	return nil
}

// part announces u leaving ch to its members, then removes u. Must hold d.mu.
func (d *Dispatcher) part(u *User, ch *Channel, reason string) {
	params := []string{ch.Name}
	if reason != "" {
		params = append(params, reason)
	}
	d.broadcast(ch.Members(), d.from(u, "PART", params...))
	d.removeMember(ch, u)
}

// handlePrivmsg handles the PRIVMSG command
func handlePrivmsg(ctx *Context) error {
	return ctx.Dispatcher.message(ctx, "PRIVMSG")
}

// handleNotice handles the NOTICE command. Notices never produce error
// replies or automatic away responses.
func handleNotice(ctx *Context) error {
	_ = ctx.Dispatcher.message(ctx, "NOTICE")
	return nil
}

// message routes PRIVMSG and NOTICE to a channel or a single user.
// The sender does not get an echo of its own channel messages.
func (d *Dispatcher) message(ctx *Context, verb string) error {
	u := ctx.User
	target, text := ctx.Param(0), ctx.Param(1)

	if target == "" {
		return irc.NewError(irc.NoRecipient).WithText("No recipient given (" + verb + ")")
	}
	if text == "" {
		return irc.NewError(irc.NoTextToSend)
	}

	if irc.IsChannel(target) {
		ch := d.channels.Get(target)
		if ch == nil {
			return irc.NewError(irc.NoSuchNick, target)
		}
		if !ch.HasMember(u) {
			return irc.NewError(irc.NotOnChannel, ch.Name)
		}
		if ch.IsBanned(u) {
			return irc.NewError(irc.CannotSendToChan, ch.Name)
		}

		others := make([]*User, 0, ch.Len())
		for _, member := range ch.Members() {
			if member != u {
				others = append(others, member)
			}
		}
		d.broadcast(others, d.from(u, verb, ch.Name, text))
		return nil
	}

	recipient := d.users.Lookup(target)
	if recipient == nil || !recipient.registered {
		return irc.NewError(irc.NoSuchNick, target)
	}
	d.send(recipient, d.from(u, verb, recipient.Nick, text))
	if verb == "PRIVMSG" && recipient.away != "" {
		d.numeric(u, irc.RPL_AWAY, recipient.Nick, recipient.away)
	}
	return nil
}

// handleTopic handles the TOPIC command
func handleTopic(ctx *Context) error {
	d, u := ctx.Dispatcher, ctx.User

	if len(ctx.Message.Params) < 1 {
		return irc.NewError(irc.NeedMoreParams, "TOPIC")
	}

	ch := d.channels.Get(ctx.Param(0))
	if ch == nil {
		return irc.NewError(irc.NoSuchChannel, ctx.Param(0))
	}
	if !ch.HasMember(u) {
		return irc.NewError(irc.NotOnChannel, ch.Name)
	}

	if len(ctx.Message.Params) < 2 {
		d.sendTopic(u, ch)
		return nil
	}

	if ch.HasMode('t') && !ch.IsOperator(u) {
		return irc.NewError(irc.NotChannelOperator, ch.Name)
	}

	text := ctx.Param(1)
	ch.SetTopic(text, u.Nick)
	d.broadcast(ch.Members(), d.from(u, "TOPIC", ch.Name, text))
	return nil
}

// sendTopic sends RPL_TOPIC and RPL_TOPICWHOTIME, or RPL_NOTOPIC
func (d *Dispatcher) sendTopic(u *User, ch *Channel) {
	topic := ch.Topic()
	if topic == nil {
		d.numeric(u, irc.RPL_NOTOPIC, ch.Name, "No topic is set.")
		return
	}
	d.numeric(u, irc.RPL_TOPIC, ch.Name, topic.Text)
	d.numeric(u, irc.RPL_TOPICWHOTIME, ch.Name, topic.Author, strconv.FormatInt(topic.SetAt.Unix(), 10))
}

// namesChunk bounds the nick list carried by one RPL_NAMREPLY
const namesChunk = 400

// sendNames sends RPL_NAMREPLY lines followed by RPL_ENDOFNAMES
func (d *Dispatcher) sendNames(u *User, ch *Channel) {
	var line strings.Builder
	for _, name := range ch.Names() {
		if line.Len() > 0 && line.Len()+len(name)+1 > namesChunk {
			d.numeric(u, irc.RPL_NAMREPLY, "=", ch.Name, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(name)
	}
	if line.Len() > 0 {
		d.numeric(u, irc.RPL_NAMREPLY, "=", ch.Name, line.String())
	}
	d.numeric(u, irc.RPL_ENDOFNAMES, ch.Name, "End of /NAMES list.")
}

// handleNames handles the NAMES command
func handleNames(ctx *Context) error {
	d, u := ctx.Dispatcher, ctx.User

	if len(ctx.Message.Params) < 1 {
		d.numeric(u, irc.RPL_ENDOFNAMES, "*", "End of /NAMES list.")
		return nil
	}

	for _, name := range strings.Split(ctx.Param(0), ",") {
		if ch := d.channels.Get(name); ch != nil {
			d.sendNames(u, ch)
		} else {
			d.numeric(u, irc.RPL_ENDOFNAMES, name, "End of /NAMES list.")
		}
	}
	return nil
}

// handleKick handles the KICK command
func handleKick(ctx *Context) error {
	d, u := ctx.Dispatcher, ctx.User

	if len(ctx.Message.Params) < 2 {
		return irc.NewError(irc.NeedMoreParams, "KICK")
	}

	ch := d.channels.Get(ctx.Param(0))
	if ch == nil {
		return irc.NewError(irc.NoSuchChannel, ctx.Param(0))
	}
	target := d.users.Lookup(ctx.Param(1))
	if target == nil {
		return irc.NewError(irc.NoSuchNick, ctx.Param(1))
	}
	if !ch.IsOperator(u) {
		return irc.NewError(irc.NotChannelOperator, ch.Name)
	}
	if !ch.HasMember(target) {
		return irc.NewError(irc.UserNotInChannel, target.Nick, ch.Name)
	}

	reason := ctx.Param(2)
	if reason == "" {
		reason = target.Nick
	}

	d.broadcast(ch.Members(), d.from(u, "KICK", ch.Name, target.Nick, reason))
	d.removeMember(ch, target)
	return nil
}
