/*
Package irc holds the wire-level pieces of the ircd server: the command
parser and line encoder, numeric reply codes, protocol error kinds, the
nickname and channel name rules, and ban mask handling.

The stateful parts of the server (users, channels, the dispatcher and the
connection transport) live in the server subpackage and build on the types
defined here.

# Features

## Parsing

- Tolerant line parsing: tags and source prefixes are skipped, runs of
  spaces collapse, and a parameter beginning with ':' takes the rest of
  the line as the trailing parameter
- Empty and whitespace-only lines produce no command
- Verbs are case-insensitive; unknown verbs are left to the dispatcher

## Names

- One canonical fold (ASCII lowercase) for nicknames and channel names
- Nicknames: letter or special first, up to NICKLEN (16) characters
- Channel names: '#' followed by 1 to 49 characters other than space, BEL and comma

## Ban masks

- Short forms ("nick", "user@", "@host") are expanded to nick!user@host
- Matching is a case-folded glob against the joining user's full mask

# Usage

	msg, ok := irc.ParseMessage("PRIVMSG #go :hello there")
	if !ok {
	    return
	}
	line, err := irc.NewMessage("alice!a@127.0.0.1", msg.Command, msg.Params...).Line()
*/
package irc
