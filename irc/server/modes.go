package server

import (
	"strconv"

	"github.com/presbrey/ircd/irc"
)

// modeChange is one parsed letter of a MODE request
type modeChange struct {
	add    bool
	letter rune
	arg    string
}

// handleMode handles the MODE command for channels and users
func handleMode(ctx *Context) error {
	d, u := ctx.Dispatcher, ctx.User

	if len(ctx.Message.Params) < 1 {
		return irc.NewError(irc.NeedMoreParams, "MODE")
	}

	target := ctx.Param(0)
	if !irc.IsChannel(target) {
		return d.userMode(u, target)
	}

	ch := d.channels.Get(target)
	if ch == nil {
		return irc.NewError(irc.NoSuchChannel, target)
	}

	if len(ctx.Message.Params) < 2 {
		d.numeric(u, irc.RPL_CHANNELMODEIS, ch.Name, ch.ModeString())
		d.numeric(u, irc.RPL_CREATIONTIME, ch.Name, strconv.FormatInt(ch.Created.Unix(), 10))
		return nil
	}

	return d.channelMode(u, ch, ctx.Param(1), ctx.Message.Params[2:])
}

// parseModes splits a mode string into changes, consuming arguments for
// letters that take one. A 'b' without an argument is a ban list query.
func parseModes(modes string, args []string) ([]modeChange, error) {
	var changes []modeChange
	add := true

	for _, letter := range modes {
		switch letter {
		case '+':
			add = true
		case '-':
			add = false
		case 'o':
			if len(args) == 0 {
				return nil, irc.NewError(irc.NeedMoreParams, "MODE")
			}
			changes = append(changes, modeChange{add: add, letter: letter, arg: args[0]})
			args = args[1:]
		case 'b':
			change := modeChange{add: add, letter: letter}
			if len(args) > 0 {
				change.arg, args = args[0], args[1:]
			}
			changes = append(changes, change)
		case 't':
			changes = append(changes, modeChange{add: add, letter: letter})
		default:
			return nil, irc.NewError(irc.UnknownMode, string(letter))
		}
	}
	return changes, nil
}

// channelMode validates every change before applying any of them, so a
// rejected request leaves the channel untouched. Must hold d.mu.
func (d *Dispatcher) channelMode(u *User, ch *Channel, modes string, args []string) error {
	changes, err := parseModes(modes, args)
	if err != nil {
		return err
	}

	targets := make([]*User, len(changes))
	for i, c := range changes {
		if c.letter == 'b' && c.arg == "" {
			continue
		}
		if !ch.IsOperator(u) {
			return irc.NewError(irc.NotChannelOperator, ch.Name)
		}
		if c.letter != 'o' {
			continue
		}
		target := d.users.Lookup(c.arg)
		if target == nil {
			return irc.NewError(irc.NoSuchNick, c.arg)
		}
		if !ch.HasMember(target) {
			return irc.NewError(irc.UserNotInChannel, target.Nick, ch.Name)
		}
		targets[i] = target
	}

	listed := false
	for i, c := range changes {
		sign := "+"
		if !c.add {
			sign = "-"
		}

		switch c.letter {
		case 'o':
			if ch.IsOperator(targets[i]) == c.add {
				continue
			}
			if c.add {
				ch.SetOperator(targets[i])
			} else {
				ch.RemoveOperator(targets[i])
			}
			d.broadcast(ch.Members(), d.from(u, "MODE", ch.Name, sign+"o", targets[i].Nick))
		case 'b':
			if c.arg == "" {
				if !listed {
					d.sendBans(u, ch)
					listed = true
				}
				continue
			}
			mask := irc.NormalizeMask(c.arg)
			var changed bool
			if c.add {
				changed = ch.AddBan(mask, u.Mask())
			} else {
				changed = ch.RemoveBan(mask)
			}
			if changed {
				d.broadcast(ch.Members(), d.from(u, "MODE", ch.Name, sign+"b", mask))
			}
		case 't':
			if ch.HasMode('t') == c.add {
				continue
			}
			ch.SetMode('t', c.add)
			d.broadcast(ch.Members(), d.from(u, "MODE", ch.Name, sign+"t"))
		}
	}
	return nil
}

// sendBans sends the ban list followed by RPL_ENDOFBANLIST
func (d *Dispatcher) sendBans(u *User, ch *Channel) {
	for _, b := range ch.Bans() {
		d.numeric(u, irc.RPL_BANLIST, ch.Name, b.Mask, b.SetBy, strconv.FormatInt(b.SetAt.Unix(), 10))
	}
	d.numeric(u, irc.RPL_ENDOFBANLIST, ch.Name, "End of channel ban list")
}

// userMode answers MODE <nick>. Only a user's own modes may be queried and
// user modes cannot be changed, so any mode string is ignored.
func (d *Dispatcher) userMode(u *User, target string) error {
	if irc.Fold(target) != irc.Fold(u.Nick) {
		if d.users.Lookup(target) == nil {
			return irc.NewError(irc.NoSuchNick, target)
		}
		return irc.NewError(irc.UsersDontMatch)
	}
	d.numeric(u, irc.RPL_UMODEIS, "+i")
	return nil
}
