package server

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/presbrey/ircd/irc"
)

// handleNick handles the NICK command
func handleNick(ctx *Context) error {
	d, u := ctx.Dispatcher, ctx.User

	proposed := ctx.Param(0)
	if proposed == "" {
		return irc.NewError(irc.NoNicknameGiven)
	}
	if proposed == u.Nick {
		return nil
	}

	oldMask := u.Mask()
	if err := d.users.SetNickname(u, proposed); err != nil {
		return err
	}

	if !u.registered {
		return d.tryRegister(u)
	}

	recipients := append(d.sharing(u), u)
	d.broadcast(recipients, irc.NewMessage(oldMask, "NICK", proposed))
	return nil
}

// handleUser handles the USER command
func handleUser(ctx *Context) error {
	d, u := ctx.Dispatcher, ctx.User

	if u.registered {
		return irc.NewError(irc.AlreadyRegistered)
	}
	if len(ctx.Message.Params) < 4 {
		return irc.NewError(irc.NeedMoreParams, "USER")
	}

	u.Username = ctx.Param(0)
	u.Realname = ctx.Param(3)
	return d.tryRegister(u)
}

// handlePass handles the PASS command
func handlePass(ctx *Context) error {
	u := ctx.User

	if u.registered {
		return irc.NewError(irc.AlreadyRegistered)
	}
	if len(ctx.Message.Params) < 1 {
		return irc.NewError(irc.NeedMoreParams, "PASS")
	}
	u.password = ctx.Param(0)
	return nil
}

// handlePing answers a client PING
func handlePing(ctx *Context) error {
	d := ctx.Dispatcher

	token := ctx.Param(0)
	if token == "" {
		return irc.NewError(irc.NoOrigin)
	}
	d.send(ctx.User, irc.NewMessage(d.settings.Name, "PONG", d.settings.Name, token))
	return nil
}

// handlePong accepts a keepalive reply. Liveness itself is tracked by the
// connection, which counts any inbound line as activity.
func handlePong(ctx *Context) error {
	if ctx.Param(0) == "" {
		return irc.NewError(irc.NoOrigin)
	}
	return nil
}

// handleQuit handles the QUIT command
func handleQuit(ctx *Context) error {
	reason := ctx.Param(0)
	if reason == "" {
		reason = "Client Quit"
	}
	ctx.Dispatcher.quit(ctx.User, reason, "quit")
	return nil
}

// tryRegister completes registration once NICK and USER are in and no
// capability negotiation is open. Must hold d.mu.
func (d *Dispatcher) tryRegister(u *User) error {
	if u.registered || u.Nick == "" || u.Username == "" || u.capNegotiating {
		return nil
	}

	if d.settings.PasswordHash != "" {
		err := bcrypt.CompareHashAndPassword([]byte(d.settings.PasswordHash), []byte(u.password))
		if err != nil {
			d.fail(u, irc.NewError(irc.PasswordMismatch))
			d.quit(u, "Bad password", "bad_password")
			return nil
		}
	}

	u.registered = true
	d.metrics.userRegistered()
	d.log.Infow("client registered", "conn_id", u.ID, "mask", u.Mask())

	d.welcome(u)
	return nil
}

// isupport is advertised in RPL_ISUPPORT
func (d *Dispatcher) isupport() []string {
	return []string{
		"AWAYLEN=307",
		"CASEMAPPING=ascii",
		"CHANMODES=b,,,t",
		"CHANNELLEN=50",
		"CHANTYPES=#",
		"NETWORK=" + d.settings.Network,
		"NICKLEN=16",
		"PREFIX=(o)@",
		"TARGMAX=PRIVMSG:1,NOTICE:1,KICK:1",
	}
}

// welcome sends the registration burst: 001-005 and the MOTD
func (d *Dispatcher) welcome(u *User) {
	s := d.settings

	d.numeric(u, irc.RPL_WELCOME, "Welcome to the "+s.Network+" IRC Network "+u.Mask())
	d.numeric(u, irc.RPL_YOURHOST, "Your host is "+s.Name+", running version "+s.Version)
	d.numeric(u, irc.RPL_CREATED, "This server was created "+s.Created.Format("Mon Jan 2 2006 at 15:04:05 MST"))
	d.numeric(u, irc.RPL_MYINFO, s.Name, s.Version, "i", "bt", "bo")

	params := append(d.isupport(), "are supported by this server")
	d.numeric(u, irc.RPL_ISUPPORT, params...)

	d.motd(u)
}

// motd sends the message of the day
func (d *Dispatcher) motd(u *User) {
	if len(d.settings.MOTD) == 0 {
		d.numeric(u, irc.ERR_NOMOTD, "MOTD File is missing")
		return
	}

	d.numeric(u, irc.RPL_MOTDSTART, "- "+d.settings.Name+" Message of the day - ")
	for _, line := range d.settings.MOTD {
		d.numeric(u, irc.RPL_MOTD, "- "+strings.ReplaceAll(line, "{nick}", u.Nick))
	}
	d.numeric(u, irc.RPL_ENDOFMOTD, "End of /MOTD command")
}

// handleMotd handles the MOTD command
func handleMotd(ctx *Context) error {
	ctx.Dispatcher.motd(ctx.User)
	return nil
}
