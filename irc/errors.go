package irc

import "fmt"

// ErrorKind classifies a rejected command
type ErrorKind int

const (
	InvalidNickname ErrorKind = iota + 1
	NicknameInUse
	NoNicknameGiven
	NotRegistered
	AlreadyRegistered
	PasswordMismatch
	UnknownCommand
	NeedMoreParams
	NoSuchChannel
	NoSuchNick
	NotOnChannel
	UserNotInChannel
	NotChannelOperator
	BannedFromChannel
	CannotSendToChan
	NoRecipient
	NoTextToSend
	UnknownMode
	UsersDontMatch
	NoOrigin
	InvalidCapCommand
)

type kindInfo struct {
	name    string
	numeric string
	text    string
}

var kinds = map[ErrorKind]kindInfo{
	InvalidNickname:    {"InvalidNickname", ERR_ERRONEUSNICKNAME, "Erroneous Nickname"},
	NicknameInUse:      {"NicknameInUse", ERR_NICKNAMEINUSE, "Nickname is already in use"},
	NoNicknameGiven:    {"NoNicknameGiven", ERR_NONICKNAMEGIVEN, "No nickname given"},
	NotRegistered:      {"NotRegistered", ERR_NOTREGISTERED, "You have not registered"},
	AlreadyRegistered:  {"AlreadyRegistered", ERR_ALREADYREGISTRED, "You may not reregister"},
	PasswordMismatch:   {"PasswordMismatch", ERR_PASSWDMISMATCH, "Password incorrect"},
	UnknownCommand:     {"UnknownCommand", ERR_UNKNOWNCOMMAND, "Unknown command"},
	NeedMoreParams:     {"NeedMoreParams", ERR_NEEDMOREPARAMS, "Not enough parameters"},
	NoSuchChannel:      {"NoSuchChannel", ERR_NOSUCHCHANNEL, "No such channel"},
	NoSuchNick:         {"NoSuchNick", ERR_NOSUCHNICK, "No such nick/channel"},
	NotOnChannel:       {"NotOnChannel", ERR_NOTONCHANNEL, "You're not on that channel"},
	UserNotInChannel:   {"UserNotInChannel", ERR_USERNOTINCHANNEL, "They aren't on that channel"},
	NotChannelOperator: {"NotChannelOperator", ERR_CHANOPRIVSNEEDED, "You're not channel operator"},
	BannedFromChannel:  {"BannedFromChannel", ERR_BANNEDFROMCHAN, "Cannot join channel (+b) - you are banned"},
	CannotSendToChan:   {"CannotSendToChan", ERR_CANNOTSENDTOCHAN, "Cannot send to nick/channel"},
	NoRecipient:        {"NoRecipient", ERR_NORECIPIENT, "No recipient given"},
	NoTextToSend:       {"NoTextToSend", ERR_NOTEXTTOSEND, "No text to send"},
	UnknownMode:        {"UnknownMode", ERR_UNKNOWNMODE, "is an unknown mode char to me"},
	UsersDontMatch:     {"UsersDontMatch", ERR_USERSDONTMATCH, "Cant change mode for other users"},
	NoOrigin:           {"NoOrigin", ERR_NOORIGIN, "No origin specified"},
	InvalidCapCommand:  {"InvalidCapCommand", ERR_INVALIDCAPCMD, "Invalid CAP command"},
}

// String returns the kind's name
func (k ErrorKind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Numeric returns the reply code sent for this kind
func (k ErrorKind) Numeric() string {
	return kinds[k].numeric
}

// Error is a protocol-level rejection of a single command. It is reported
// to the issuing connection only and never ends the session.
type Error struct {
	Kind ErrorKind
	// Params are the context parameters placed between the recipient's
	// nick and the text, e.g. the channel or the offending nickname.
	Params []string
	// Text overrides the default text for the kind when set.
	Text string
}

// NewError creates an error of the given kind with its context parameters
func NewError(kind ErrorKind, params ...string) *Error {
	return &Error{Kind: kind, Params: params}
}

// WithText replaces the default reply text
func (e *Error) WithText(text string) *Error {
	e.Text = text
	return e
}

// Numeric returns the reply code
func (e *Error) Numeric() string {
	return e.Kind.Numeric()
}

// Message returns the reply text
func (e *Error) Message() string {
	if e.Text != "" {
		return e.Text
	}
	return kinds[e.Kind].text
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s %v: %s", e.Numeric(), e.Kind, e.Params, e.Message())
}

// Is matches any *Error of the same kind, so errors.Is(err, irc.NewError(irc.NoSuchNick)) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Reply renders the error as a numeric reply from server to the given nick
func (e *Error) Reply(server, nick string) *Message {
	if nick == "" {
		nick = "*"
	}
	params := make([]string, 0, len(e.Params)+2)
	params = append(params, nick)
	params = append(params, e.Params...)
	params = append(params, e.Message())
	return NewMessage(server, e.Numeric(), params...)
}
