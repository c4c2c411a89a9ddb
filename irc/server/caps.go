package server

import (
	"sort"
	"strings"

	"github.com/presbrey/ircd/irc"
)

// Capability represents an IRC capability supported by the server
type Capability struct {
	Name        string // The name of the capability as sent to the client
	Description string // Description of what the capability does
}

// ServerCapabilities defines all the capabilities supported by this server
var ServerCapabilities = map[string]*Capability{
	"away-notify": {
		Name:        "away-notify",
		Description: "Sends automatic AWAY notifications when users change away status",
	},
	"cap-notify": {
		Name:        "cap-notify",
		Description: "Notifies about capability changes without reconnecting",
	},
}

// capabilityList returns the advertised capabilities, sorted
func capabilityList() string {
	names := make([]string, 0, len(ServerCapabilities))
	for name := range ServerCapabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, " ")
}

// handleCap handles capability negotiation (CAP LS, LIST, REQ, END)
func handleCap(ctx *Context) error {
	if len(ctx.Message.Params) < 1 {
		return irc.NewError(irc.NeedMoreParams, "CAP")
	}

	d, u := ctx.Dispatcher, ctx.User
	sub := strings.ToUpper(ctx.Param(0))

	switch sub {
	case "LS":
		// Registration waits for CAP END from here on
		if !u.registered {
			u.capNegotiating = true
		}
		d.capReply(u, "LS", capabilityList())
	case "LIST":
		enabled := make([]string, 0, len(u.caps))
		for name := range u.caps {
			enabled = append(enabled, name)
		}
		sort.Strings(enabled)
		d.capReply(u, "LIST", strings.Join(enabled, " "))
	case "REQ":
		if !u.registered {
			u.capNegotiating = true
		}
		d.capRequest(u, ctx.Param(1))
	case "END":
		if !u.capNegotiating {
			return nil
		}
		u.capNegotiating = false
		return d.tryRegister(u)
	default:
		return irc.NewError(irc.InvalidCapCommand, sub)
	}
	return nil
}

// capRequest acknowledges or rejects a whole REQ list
func (d *Dispatcher) capRequest(u *User, list string) {
	requested := strings.Fields(list)
	if len(requested) == 0 {
		d.capReply(u, "NAK", list)
		return
	}

	for _, name := range requested {
		if _, ok := ServerCapabilities[strings.TrimPrefix(name, "-")]; !ok {
			d.capReply(u, "NAK", list)
			return
		}
	}

	for _, name := range requested {
		if strings.HasPrefix(name, "-") {
			delete(u.caps, name[1:])
		} else {
			u.caps[name] = true
		}
	}
	d.capReply(u, "ACK", strings.Join(requested, " "))
}

func (d *Dispatcher) capReply(u *User, sub, caps string) {
	d.send(u, irc.NewMessage(d.settings.Name, "CAP", u.displayNick(), sub, caps))
}
