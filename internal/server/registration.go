package server

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eaescob/go-ircd/internal/replies"
	"github.com/eaescob/go-ircd/internal/store"
	"github.com/eaescob/go-ircd/internal/wire"
)

// registerCoreHandlers wires the verb table. Core handlers win over any
// module registration for the same verb (dispatch.go's contract).
func (s *Server) registerCoreHandlers() {
	s.dispatcher.RegisterCore("CAP", handleCAP)
	s.dispatcher.RegisterCore("PASS", handlePass)
	s.dispatcher.RegisterCore("NICK", handleNick)
	s.dispatcher.RegisterCore("USER", handleUser)
	s.dispatcher.RegisterCore("PING", handlePing)
	s.dispatcher.RegisterCore("PONG", handlePong)
	s.dispatcher.RegisterCore("QUIT", handleQuit)
	s.dispatcher.RegisterCore("AUTHENTICATE", handleAuthenticate)

	s.dispatcher.RegisterCore("JOIN", handleJoin)
	s.dispatcher.RegisterCore("PART", handlePart)
	s.dispatcher.RegisterCore("TOPIC", handleTopic)
	s.dispatcher.RegisterCore("NAMES", handleNames)
	s.dispatcher.RegisterCore("LIST", handleList)
	s.dispatcher.RegisterCore("KICK", handleKick)
	s.dispatcher.RegisterCore("INVITE", handleInvite)
	s.dispatcher.RegisterCore("MODE", handleMode)

	s.dispatcher.RegisterCore("PRIVMSG", handlePrivmsg)
	s.dispatcher.RegisterCore("NOTICE", handleNotice)
	s.dispatcher.RegisterCore("AWAY", handleAway)

	s.dispatcher.RegisterCore("WHO", handleWho)
	s.dispatcher.RegisterCore("WHOIS", handleWhois)
	s.dispatcher.RegisterCore("VERSION", handleVersion)
	s.dispatcher.RegisterCore("ADMIN", handleAdmin)
	s.dispatcher.RegisterCore("INFO", handleInfo)
	s.dispatcher.RegisterCore("TIME", handleTime)
	s.dispatcher.RegisterCore("MOTD", handleMotd)
	s.dispatcher.RegisterCore("LUSERS", handleLusers)
	s.dispatcher.RegisterCore("STATS", handleStats)

	s.dispatcher.RegisterCore("OPER", handleOper)
	s.dispatcher.RegisterCore("KILL", handleKill)
	s.dispatcher.RegisterCore("KLINE", handleKline)
	s.dispatcher.RegisterCore("UNKLINE", handleUnkline)
	s.dispatcher.RegisterCore("GLINE", handleGline)
	s.dispatcher.RegisterCore("UNGLINE", handleUngline)
	s.dispatcher.RegisterCore("WALLOPS", handleWallops)
	s.dispatcher.RegisterCore("REHASH", handleRehash)
	s.dispatcher.RegisterCore("SQUIT", handleSquit)
	s.dispatcher.RegisterCore("CONNECT", handleConnect)
	s.dispatcher.RegisterCore("SERVER", handleServer)
}

func handlePing(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	token := s.cfg.Server.Name
	if len(m.Params) > 0 {
		token = m.Params[0]
	}
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: "PONG", Params: []string{s.cfg.Server.Name, token}}).Bytes())
	return handled()
}

func handlePong(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	c.timing.Touch(time.Now())
	return handled()
}

func handleQuit(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	reason := "Client Quit"
	if len(m.Params) > 0 {
		reason = m.Params[0]
	}
	c.sendLine((&wire.Message{Command: "ERROR", Params: []string{"Closing Link: " + reason}}).Bytes())
	c.setState(connClosing)
	c.close()
	return handled()
}

func handleCAP(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if len(m.Params) == 0 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "CAP :Not enough parameters")
	}
	nick := pendingNickOrStar(c)
	switch strings.ToUpper(m.Params[0]) {
	case "LS":
		c.negotiation.BeginListing()
		caps := strings.Join(s.capRegistry.AdvertisedCapabilities(), " ")
		c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: "CAP", Params: []string{nick, "LS", caps}}).Bytes())
	case "LIST":
		c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: "CAP", Params: []string{nick, "LIST", ""}}).Bytes())
	case "REQ":
		c.negotiation.BeginRequesting()
		if len(m.Params) < 2 {
			return errNumeric(wire.ERR_NEEDMOREPARAMS, "CAP :Not enough parameters")
		}
		requested := strings.Fields(m.Params[1])
		available := make(map[string]bool)
		for _, a := range s.capRegistry.AdvertisedCapabilities() {
			available[a] = true
		}
		var accepted []string
		for _, r := range requested {
			name := strings.TrimPrefix(r, "-")
			if strings.HasPrefix(r, "-") {
				c.negotiation.Disable(name)
				accepted = append(accepted, r)
				continue
			}
			if !available[name] {
				c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: "CAP", Params: []string{nick, "NAK", m.Params[1]}}).Bytes())
				return handled()
			}
			accepted = append(accepted, r)
		}
		c.negotiation.Ack(accepted)
		c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: "CAP", Params: []string{nick, "ACK", strings.Join(accepted, " ")}}).Bytes())
	case "END":
		c.negotiation.End()
		maybeCompleteRegistration(s, c)
	}
	return handled()
}

func pendingNickOrStar(c *Connection) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingNick != "" {
		return c.pendingNick
	}
	return "*"
}

func handleAuthenticate(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	// SASL chunking (PLAIN mechanism, base64 payload split at 400 bytes by
	// the client) is accepted at the wire layer; mechanism-specific
	// account binding is out of scope without a services link, so every
	// attempt is acknowledged as unsuccessful rather than silently
	// swallowed.
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: "904", Params: []string{pendingNickOrStar(c), "SASL authentication failed"}}).Bytes())
	return handled()
}

func handlePass(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if c.currentState() == connRegistered {
		return errNumeric(wire.ERR_ALREADYREGISTRED, ":Unauthorized command (already registered)")
	}
	if len(m.Params) == 0 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "PASS :Not enough parameters")
	}
	c.mu.Lock()
	c.pendingPass = m.Params[0]
	c.mu.Unlock()
	return handled()
}

func handleNick(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if len(m.Params) == 0 {
		return errNumeric(wire.ERR_NONICKNAMEGIVEN, ":No nickname given")
	}
	nick := m.Params[0]
	if !wire.ValidNick(nick) {
		return errNumeric(wire.ERR_ERRONEUSNICKNAME, nick+" :Erroneous nickname")
	}
	now := time.Now()
	if existing := u; existing != nil {
		if r := rateLimited(s, existing, "nick"); r != nil {
			return *r
		}
		if _, taken := s.db.GetUserByNick(nick, now); taken && !strings.EqualFold(nick, existing.Nick) {
			return errNumeric(wire.ERR_NICKNAMEINUSE, nick+" :Nickname is already in use")
		}
		old := existing.Nick
		if err := s.db.UpdateUser(existing.ID, now, func(usr *store.User) error { usr.Nick = nick; return nil }); err != nil {
			return errNumeric(wire.ERR_NICKNAMEINUSE, nick+" :Nickname is already in use")
		}
		nickMsg := (&wire.Message{Prefix: old + "!" + existing.Username + "@" + existing.Host, Command: "NICK", Params: []string{nick}}).Bytes()
		c.sendLine(nickMsg)
		for _, ch := range s.db.GetUserChannels(existing.ID) {
			s.broadcaster.Enqueue(broadcastItem(ch, nickMsg))
		}
		return handled()
	}
	if _, taken := s.db.GetUserByNick(nick, now); taken {
		return errNumeric(wire.ERR_NICKNAMEINUSE, nick+" :Nickname is already in use")
	}
	c.mu.Lock()
	c.pendingNick = nick
	c.mu.Unlock()
	maybeCompleteRegistration(s, c)
	return handled()
}

func handleUser(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if c.currentState() == connRegistered {
		return errNumeric(wire.ERR_ALREADYREGISTRED, ":Unauthorized command (already registered)")
	}
	if len(m.Params) < 4 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "USER :Not enough parameters")
	}
	c.mu.Lock()
	c.pendingUser = m.Params[0]
	c.pendingRealName = m.Params[3]
	c.mu.Unlock()
	maybeCompleteRegistration(s, c)
	return handled()
}

// maybeCompleteRegistration finishes the Connection Lifecycle's
// registration phase once NICK and USER are both present and any started
// CAP negotiation has ended (spec §4.9 steps 3-5).
func maybeCompleteRegistration(s *Server, c *Connection) {
	c.mu.Lock()
	nick, user, realName, pass := c.pendingNick, c.pendingUser, c.pendingRealName, c.pendingPass
	ready := nick != "" && user != "" && c.state != connRegistered
	c.mu.Unlock()
	if !ready || c.negotiation.AwaitingEnd() {
		return
	}

	if c.allowBlock != nil && c.allowBlock.Password != "" && c.allowBlock.Password != pass {
		c.sendLine((&wire.Message{Command: "ERROR", Params: []string{"Closing Link: bad password"}}).Bytes())
		c.setState(connClosing)
		c.close()
		return
	}

	now := time.Now()
	newUser := &store.User{
		ID: uuid.New(), Nick: nick, Username: user, RealName: realName,
		Host: c.remoteHost, Server: s.cfg.Server.Name, RegisteredAt: now,
		State: store.StateActive, Modes: make(map[byte]bool), LocalConn: true,
	}
	if err := s.db.AddUser(newUser, now); err != nil {
		c.sendLine((&wire.Message{Command: "ERROR", Params: []string{"Closing Link: registration failed"}}).Bytes())
		c.setState(connClosing)
		c.close()
		return
	}

	c.setUser(newUser)
	c.setState(connRegistered)
	s.capRegistry.NotifyRegister(newUser.ID.String())
	sendWelcome(s, c, newUser)
}

func sendWelcome(s *Server, c *Connection, u *store.User) {
	fields := replies.Fields{
		"server_name": s.cfg.Server.Name, "nick": u.Nick, "user": u.Username,
		"host": u.Host, "info": s.cfg.Server.Version,
	}
	c.sendLine([]byte(s.replies.Render(wire.RPL_WELCOME, fields) + "\r\n"))
	c.sendLine([]byte(s.replies.Render(wire.RPL_YOURHOST, fields) + "\r\n"))
	c.sendLine([]byte(s.replies.Render(wire.RPL_CREATED, fields) + "\r\n"))
	c.sendLine([]byte(s.replies.Render(wire.RPL_MYINFO, fields) + "\r\n"))
	sendLusers(s, c, u)
	sendMotd(s, c, u)
}
