package irc

import (
	"fmt"
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
)

// Message represents an IRC message
type Message struct {
	Prefix  string
	Command string
	Params  []string
}

// NewMessage builds an outbound message from a source, a verb and its parameters
func NewMessage(prefix, command string, params ...string) *Message {
	return &Message{
		Prefix:  prefix,
		Command: command,
		Params:  params,
	}
}

// ParseMessage parses one line received from a client.
// It reports false for lines that carry no command (empty, whitespace
// only, or a bare prefix). It never fails: malformed input degrades to
// plain token splitting.
func ParseMessage(line string) (*Message, bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.IndexByte(line, 0) >= 0 {
		line = strings.ReplaceAll(line, "\x00", "")
	}

	rest := trimSpaceLeft(line)
	if rest == "" {
		return nil, false
	}

	msg := &Message{}

	// Message tags are not negotiated, skip them
	if rest[0] == '@' {
		_, rest = nextToken(rest)
	}

	// Source prefix sent by a client is ignored by the server
	if rest != "" && rest[0] == ':' {
		var prefix string
		prefix, rest = nextToken(rest)
		msg.Prefix = prefix[1:]
	}

	verb, rest := nextToken(rest)
	if verb == "" {
		return nil, false
	}
	msg.Command = strings.ToUpper(verb)

	for rest != "" {
		if rest[0] == ':' {
			msg.Params = append(msg.Params, rest[1:])
			break
		}

		var param string
		param, rest = nextToken(rest)
		msg.Params = append(msg.Params, param)
	}

	return msg, true
}

// nextToken splits off the first whitespace-delimited token
func nextToken(s string) (token, rest string) {
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], trimSpaceLeft(s[i+1:])
}

func trimSpaceLeft(s string) string {
	return strings.TrimLeft(s, " \t")
}

// Param returns the i-th parameter or an empty string
func (m *Message) Param(i int) string {
	if i < len(m.Params) {
		return m.Params[i]
	}
	return ""
}

// Line renders the message as a CRLF-terminated protocol line.
// A trailing ':' is only added to the last parameter when it needs one.
func (m *Message) Line() (string, error) {
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		params[i] = sanitizeParam(p, i == len(m.Params)-1)
	}

	out := ircmsg.MakeMessage(nil, m.Prefix, m.Command, params...)
	line, err := out.Line()
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", m.Command, err)
	}
	return line, nil
}

// sanitizeParam strips line breaks, and makes a middle parameter a single
// non-empty token so that echoed user input cannot shift the reply's fields.
func sanitizeParam(p string, last bool) string {
	p = strings.NewReplacer("\r", "", "\n", "").Replace(p)
	if last {
		return p
	}
	p = strings.TrimLeft(p, ":")
	if i := strings.IndexAny(p, " \t"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "*"
	}
	return p
}

// String returns the string representation of the message
func (m *Message) String() string {
	line, err := m.Line()
	if err != nil {
		return fmt.Sprintf("%s %v", m.Command, m.Params)
	}
	return strings.TrimRight(line, "\r\n")
}

// ParseHostmask parses a hostmask (nick!user@host)
func ParseHostmask(hostmask string) (nick, user, host string) {
	nick, userHost, found := strings.Cut(hostmask, "!")
	if !found {
		return hostmask, "", ""
	}

	user, host, found = strings.Cut(userHost, "@")
	if !found {
		return nick, userHost, ""
	}
	return nick, user, host
}

// FormatHostmask formats a hostmask
func FormatHostmask(nick, user, host string) string {
	return fmt.Sprintf("%s!%s@%s", nick, user, host)
}
