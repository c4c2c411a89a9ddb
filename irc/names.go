package irc

import (
	"regexp"
	"strings"
)

// Limits advertised in ISUPPORT
const (
	NickLen    = 16
	ChannelLen = 50
)

var (
	nicknameRegexp = regexp.MustCompile(`^[A-Za-z\[\]\\` + "`" + `_^{|}][A-Za-z0-9\[\]\\` + "`" + `_^{|}-]{0,15}$`)
	channelRegexp  = regexp.MustCompile(`^#[^ \x07,]{1,49}$`)
)

// Fold returns the canonical form of a nickname or channel name.
// ASCII letters are lowercased; everything else is left untouched.
func Fold(name string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, name)
}

// ValidNickname reports whether name may be used as a nickname
func ValidNickname(name string) bool {
	return nicknameRegexp.MatchString(name)
}

// ValidChannelName reports whether name may be used as a channel name
func ValidChannelName(name string) bool {
	return channelRegexp.MatchString(name)
}

// IsChannel reports whether target names a channel rather than a user
func IsChannel(target string) bool {
	return strings.HasPrefix(target, "#")
}
