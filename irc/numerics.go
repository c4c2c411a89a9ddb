package irc

// Numeric replies sent by the server
const (
	RPL_WELCOME       = "001"
	RPL_YOURHOST      = "002"
	RPL_CREATED       = "003"
	RPL_MYINFO        = "004"
	RPL_ISUPPORT      = "005"
	RPL_UMODEIS       = "221"
	RPL_AWAY          = "301"
	RPL_UNAWAY        = "305"
	RPL_NOWAWAY       = "306"
	RPL_WHOISUSER     = "311"
	RPL_WHOISSERVER   = "312"
	RPL_ENDOFWHO      = "315"
	RPL_ENDOFWHOIS    = "318"
	RPL_WHOISCHANNELS = "319"
	RPL_CHANNELMODEIS = "324"
	RPL_CREATIONTIME  = "329"
	RPL_NOTOPIC       = "331"
	RPL_TOPIC         = "332"
	RPL_TOPICWHOTIME  = "333"
	RPL_WHOREPLY      = "352"
	RPL_NAMREPLY      = "353"
	RPL_ENDOFNAMES    = "366"
	RPL_BANLIST       = "367"
	RPL_ENDOFBANLIST  = "368"
	RPL_MOTD          = "372"
	RPL_MOTDSTART     = "375"
	RPL_ENDOFMOTD     = "376"
)

// Numeric error replies
const (
	ERR_NOSUCHNICK        = "401"
	ERR_NOSUCHCHANNEL     = "403"
	ERR_CANNOTSENDTOCHAN  = "404"
	ERR_NOORIGIN          = "409"
	ERR_INVALIDCAPCMD     = "410"
	ERR_NORECIPIENT       = "411"
	ERR_NOTEXTTOSEND      = "412"
	ERR_UNKNOWNCOMMAND    = "421"
	ERR_NOMOTD            = "422"
	ERR_NONICKNAMEGIVEN   = "431"
	ERR_ERRONEUSNICKNAME  = "432"
	ERR_NICKNAMEINUSE     = "433"
	ERR_USERNOTINCHANNEL  = "441"
	ERR_NOTONCHANNEL      = "442"
	ERR_NOTREGISTERED     = "451"
	ERR_NEEDMOREPARAMS    = "461"
	ERR_ALREADYREGISTRED  = "462"
	ERR_PASSWDMISMATCH    = "464"
	ERR_UNKNOWNMODE       = "472"
	ERR_BANNEDFROMCHAN    = "474"
	ERR_CHANOPRIVSNEEDED  = "482"
	ERR_USERSDONTMATCH    = "502"
)
