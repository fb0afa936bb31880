package server

import (
	"strconv"
	"time"

	"github.com/eaescob/go-ircd/internal/audit"
	"github.com/eaescob/go-ircd/internal/replies"
	"github.com/eaescob/go-ircd/internal/store"
	"github.com/eaescob/go-ircd/internal/wire"
)

func handleWho(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	mask := "*"
	if len(m.Params) > 0 {
		mask = m.Params[0]
	}
	for _, target := range s.db.SearchUsers(mask) {
		status := "H"
		if target.AwayMessage != "" {
			status = "G"
		}
		if target.IsOperator {
			status += "*"
		}
		c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_WHOREPLY, Params: []string{
			u.Nick, mask, target.Username, target.Host, target.Server, target.Nick, status, "0 " + target.RealName,
		}}).Bytes())
	}
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_ENDOFWHO, Params: []string{u.Nick, mask, "End of /WHO list"}}).Bytes())
	return handled()
}

func handleWhois(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if len(m.Params) == 0 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "WHOIS :Not enough parameters")
	}
	target, ok := s.db.GetUserByNick(m.Params[0], time.Now())
	if !ok {
		return errNumeric(wire.ERR_NOSUCHNICK, m.Params[0]+" :No such nick/channel")
	}
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_WHOISUSER, Params: []string{u.Nick, target.Nick, target.Username, target.Host, "*", target.RealName}}).Bytes())
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_WHOISSERVER, Params: []string{u.Nick, target.Nick, target.Server, "IRC server"}}).Bytes())
	if target.IsOperator {
		c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_WHOISOPERATOR, Params: []string{u.Nick, target.Nick, "is an IRC operator"}}).Bytes())
	}
	channels := s.db.GetUserChannels(target.ID)
	if len(channels) > 0 {
		c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_WHOISCHANNELS, Params: []string{u.Nick, target.Nick, joinStrings(channels, " ")}}).Bytes())
	}
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_ENDOFWHOIS, Params: []string{u.Nick, target.Nick, "End of /WHOIS list"}}).Bytes())
	return handled()
}

func joinStrings(items []string, sep string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += sep
		}
		out += it
	}
	return out
}

func handleVersion(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: "351", Params: []string{nickOf(u), s.cfg.Server.Version, s.cfg.Server.Name, ""}}).Bytes())
	return handled()
}

func handleAdmin(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	nick := nickOf(u)
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: "256", Params: []string{nick, s.cfg.Server.Name, "Administrative info"}}).Bytes())
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: "257", Params: []string{nick, s.cfg.Server.AdminName}}).Bytes())
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: "258", Params: []string{nick, s.cfg.Server.AdminEmail}}).Bytes())
	return handled()
}

func handleInfo(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: "371", Params: []string{nickOf(u), s.cfg.Server.Description}}).Bytes())
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: "374", Params: []string{nickOf(u), "End of /INFO list"}}).Bytes())
	return handled()
}

func handleTime(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: "391", Params: []string{nickOf(u), s.cfg.Server.Name, time.Now().UTC().Format(time.RFC1123)}}).Bytes())
	return handled()
}

func sendMotd(s *Server, c *Connection, u *store.User) {
	lines := s.motdStore.Lines()
	fields := replies.Fields{"server_name": s.cfg.Server.Name, "nick": u.Nick}
	if len(lines) == 0 {
		c.sendLine([]byte(s.replies.Render(wire.ERR_NOMOTD, fields) + "\r\n"))
		return
	}
	c.sendLine([]byte(s.replies.Render(wire.RPL_MOTDSTART, fields) + "\r\n"))
	for _, line := range lines {
		f := replies.Fields{"server_name": s.cfg.Server.Name, "nick": u.Nick, "info": line}
		c.sendLine([]byte(s.replies.Render(wire.RPL_MOTD, f) + "\r\n"))
	}
	c.sendLine([]byte(s.replies.Render(wire.RPL_ENDOFMOTD, fields) + "\r\n"))
}

func handleMotd(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	sendMotd(s, c, u)
	return handled()
}

func sendLusers(s *Server, c *Connection, u *store.User) {
	var clients, operators, channels int
	s.mu.Lock()
	for _, conn := range s.conns {
		if conn.getUser() != nil {
			clients++
		}
	}
	s.mu.Unlock()
	channels = len(s.db.ListChannelNames())
	for _, usr := range s.db.SearchUsers("*") {
		if usr.IsOperator {
			operators++
		}
	}
	fields := func(count int) replies.Fields {
		return replies.Fields{"server_name": s.cfg.Server.Name, "nick": u.Nick, "count": strconv.Itoa(count)}
	}
	c.sendLine([]byte(s.replies.Render(wire.RPL_LUSERCLIENT, fields(clients)) + "\r\n"))
	c.sendLine([]byte(s.replies.Render(wire.RPL_LUSEROP, fields(operators)) + "\r\n"))
	c.sendLine([]byte(s.replies.Render(wire.RPL_LUSERUNKNOWN, fields(0)) + "\r\n"))
	c.sendLine([]byte(s.replies.Render(wire.RPL_LUSERCHANNELS, fields(channels)) + "\r\n"))
	c.sendLine([]byte(s.replies.Render(wire.RPL_LUSERME, fields(clients)) + "\r\n"))
}

func handleLusers(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	sendLusers(s, c, u)
	return handled()
}

func handleStats(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	flag := "u"
	if len(m.Params) > 0 {
		flag = m.Params[0]
	}
	nick := u.Nick
	switch flag {
	case "u":
		c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_STATSUPTIME, Params: []string{nick, "Server Up " + strconv.FormatInt(s.counters.UptimeSeconds(time.Now()), 10) + " seconds"}}).Bytes())
	case "k":
		for _, b := range s.bans.Klines() {
			c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_STATSOLINE, Params: []string{nick, b.Mask, b.Reason}}).Bytes())
		}
	case "g":
		for _, b := range s.bans.Glines() {
			c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_STATSOLINE, Params: []string{nick, b.Mask, b.Reason}}).Bytes())
		}
	case "m":
		for _, cs := range s.counters.PerCommand {
			c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_STATSCOMMANDS, Params: []string{nick, audit.FormatCommandLine(*cs)}}).Bytes())
		}
	case "c":
		for _, p := range s.peers.All() {
			c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_STATSLINKINFO, Params: []string{nick, p.Name}}).Bytes())
		}
	}
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_ENDOFSTATS, Params: []string{nick, flag, "End of /STATS report"}}).Bytes())
	return handled()
}

func nickOf(u *store.User) string {
	if u == nil {
		return "*"
	}
	return u.Nick
}
