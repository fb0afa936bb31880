package replies

import "github.com/eaescob/go-ircd/internal/wire"

// defaultTemplates returns the built-in numeric/named templates used when
// no rehash-loaded override exists for a key.
func defaultTemplates() map[string]string {
	return map[string]string{
		wire.RPL_WELCOME:       ":{server_name} 001 {nick} :Welcome to the Internet Relay Network {nick}!{user}@{host}",
		wire.RPL_YOURHOST:      ":{server_name} 002 {nick} :Your host is {server_name}, running version {info}",
		wire.RPL_CREATED:       ":{server_name} 003 {nick} :This server was created {info}",
		wire.RPL_MYINFO:        ":{server_name} 004 {nick} {server_name} {info}",
		wire.RPL_LUSERCLIENT:   ":{server_name} 251 {nick} :There are {count} users and 0 invisible on 1 server",
		wire.RPL_LUSEROP:       ":{server_name} 252 {nick} {count} :operator(s) online",
		wire.RPL_LUSERUNKNOWN:  ":{server_name} 253 {nick} {count} :unknown connection(s)",
		wire.RPL_LUSERCHANNELS: ":{server_name} 254 {nick} {count} :channels formed",
		wire.RPL_LUSERME:       ":{server_name} 255 {nick} :I have {count} clients and 1 servers",
		wire.RPL_MOTDSTART:     ":{server_name} 375 {nick} :- {server_name} Message of the day -",
		wire.RPL_MOTD:          ":{server_name} 372 {nick} :- {info}",
		wire.RPL_ENDOFMOTD:     ":{server_name} 376 {nick} :End of /MOTD command.",
		wire.ERR_NOMOTD:        ":{server_name} 422 {nick} :MOTD File is missing",
		wire.RPL_YOUREOPER:     ":{server_name} 381 {nick} :You are now an IRC operator",
		wire.ERR_NOTREGISTERED: ":{server_name} 451 {nick} :You have not registered",
		wire.ERR_NICKNAMEINUSE: ":{server_name} 433 {nick} {target} :Nickname is already in use",
		wire.ERR_NOSUCHNICK:    ":{server_name} 401 {nick} {target} :No such nick/channel",
		wire.ERR_NOSUCHCHANNEL: ":{server_name} 403 {nick} {channel} :No such channel",
		wire.ERR_NOPRIVILEGES:  ":{server_name} 481 {nick} :Permission Denied- You're not an IRC operator",
		wire.ERR_OPERONLYMODE:  ":{server_name} 503 {nick} :Operator mode can only be granted through OPER command",
		wire.ERR_USERSDONTMATCH: ":{server_name} 502 {nick} :Cannot change mode for other users",
		wire.ERR_TARGETTOOFAST: ":{server_name} 439 {nick} {target} :Target change too fast, wait {reason}",
		wire.ERR_UNKNOWNERROR:  ":{server_name} 400 {nick} {info} :An unknown error occurred",
	}
}
