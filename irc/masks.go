package irc

import (
	"strings"

	"github.com/gobwas/glob"
)

// NormalizeMask expands a short ban mask into nick!user@host form.
//
//	Bob         -> Bob!*@*
//	BobUsr@     -> *!BobUsr@*
//	@127.0.0.1  -> *!*@127.0.0.1
//	Bob!BobUsr  -> Bob!BobUsr@*
func NormalizeMask(mask string) string {
	nick, userHost, hasBang := strings.Cut(mask, "!")
	if !hasBang {
		user, host, hasAt := strings.Cut(mask, "@")
		if !hasAt {
			return orStar(mask) + "!*@*"
		}
		return "*!" + orStar(user) + "@" + orStar(host)
	}

	user, host, _ := strings.Cut(userHost, "@")
	return orStar(nick) + "!" + orStar(user) + "@" + orStar(host)
}

func orStar(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

// globEscaper quotes the glob syntax that may legally appear in nicks,
// leaving '*' and '?' as the only wildcards
var globEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`)

// MatchMask reports whether a nick!user@host identity matches a ban mask.
// '*' matches any run of characters and '?' exactly one. Comparison is
// case-insensitive under Fold.
func MatchMask(mask, hostmask string) bool {
	g, err := glob.Compile(globEscaper.Replace(Fold(mask)))
	if err != nil {
		return false
	}
	return g.Match(Fold(hostmask))
}
