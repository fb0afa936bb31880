package server

import (
	"time"

	"github.com/eaescob/go-ircd/internal/store"
	"github.com/eaescob/go-ircd/internal/wire"
)

func handleOper(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if len(m.Params) < 2 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "OPER :Not enough parameters")
	}
	flags, err := s.authzModel.Authenticate(m.Params[0], m.Params[1], c.remoteHost)
	if err != nil {
		return errNumeric(wire.ERR_PASSWDMISMATCH, ":Password incorrect")
	}
	s.authzModel.GrantOperatorPrivileges(u, flags)
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_YOUREOPER, Params: []string{u.Nick, "You are now an IRC operator"}}).Bytes())
	return handled()
}

func handleKill(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if len(m.Params) < 1 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "KILL :Not enough parameters")
	}
	reason := "Killed"
	if len(m.Params) > 1 {
		reason = m.Params[1]
	}
	target, ok := s.db.GetUserByNick(m.Params[0], time.Now())
	if !ok {
		return errNumeric(wire.ERR_NOSUCHNICK, m.Params[0]+" :No such nick/channel")
	}
	remote := !target.LocalConn
	if err := s.peerAuthz.CheckKill(u, remote, target.Nick, c.remoteHost); err != nil {
		return errNumeric(wire.ERR_NOPRIVILEGES, ":Permission Denied- You're not an IRC operator")
	}
	quitMsg := (&wire.Message{Prefix: userPrefix(target), Command: "QUIT", Params: []string{"Killed (" + u.Nick + " (" + reason + "))"}}).Bytes()
	if target.LocalConn {
		if conn := s.connForUser(target.ID); conn != nil {
			conn.sendLine((&wire.Message{Command: "ERROR", Params: []string{"Closing Link: Killed by " + u.Nick}}).Bytes())
			conn.close()
		}
	}
	_, affected := s.db.RemoveUserFromAllChannels(target.ID)
	for _, ch := range affected {
		s.broadcaster.Enqueue(broadcastItem(ch, quitMsg))
	}
	_, _ = s.db.RemoveUser(target.ID, time.Now())
	return handled()
}

func handleKline(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if !s.authzModel.CheckOperatorAction(u, store.FlagLocalOper, "KLINE", c.remoteHost) {
		return errNumeric(wire.ERR_NOPRIVILEGES, ":Permission Denied- You're not an IRC operator")
	}
	if len(m.Params) < 1 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "KLINE :Not enough parameters")
	}
	reason := "K-Lined"
	if len(m.Params) > 1 {
		reason = m.Params[1]
	}
	s.bans.AddKline(&BanEntry{Mask: m.Params[0], Reason: reason, SetBy: u.Nick, SetAt: time.Now()})
	return handled()
}

func handleUnkline(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if !s.authzModel.CheckOperatorAction(u, store.FlagLocalOper, "UNKLINE", c.remoteHost) {
		return errNumeric(wire.ERR_NOPRIVILEGES, ":Permission Denied- You're not an IRC operator")
	}
	if len(m.Params) < 1 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "UNKLINE :Not enough parameters")
	}
	s.bans.RemoveKline(m.Params[0])
	return handled()
}

func handleGline(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if !s.authzModel.CheckOperatorAction(u, store.FlagGlobalOper, "GLINE", c.remoteHost) {
		return errNumeric(wire.ERR_NOPRIVILEGES, ":Permission Denied- You're not an IRC operator")
	}
	if len(m.Params) < 1 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "GLINE :Not enough parameters")
	}
	reason := "G-Lined"
	if len(m.Params) > 1 {
		reason = m.Params[1]
	}
	s.bans.AddGline(&BanEntry{Mask: m.Params[0], Reason: reason, SetBy: u.Nick, SetAt: time.Now(), Global: true})
	return handled()
}

func handleUngline(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if !s.authzModel.CheckOperatorAction(u, store.FlagGlobalOper, "UNGLINE", c.remoteHost) {
		return errNumeric(wire.ERR_NOPRIVILEGES, ":Permission Denied- You're not an IRC operator")
	}
	if len(m.Params) < 1 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "UNGLINE :Not enough parameters")
	}
	s.bans.RemoveGline(m.Params[0])
	return handled()
}

func handleWallops(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if !s.authzModel.CheckOperatorAction(u, store.FlagLocalOper, "WALLOPS", c.remoteHost) {
		return errNumeric(wire.ERR_NOPRIVILEGES, ":Permission Denied- You're not an IRC operator")
	}
	if len(m.Params) < 1 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "WALLOPS :Not enough parameters")
	}
	payload := (&wire.Message{Prefix: userPrefix(u), Command: "WALLOPS", Params: []string{m.Params[0]}}).Bytes()
	s.mu.Lock()
	for _, conn := range s.conns {
		if w := conn.getUser(); w != nil && (w.Modes['w'] || w.IsOperator) {
			conn.sendLine(payload)
		}
	}
	s.mu.Unlock()
	return handled()
}

func handleRehash(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if !s.authzModel.CheckOperatorAction(u, store.FlagAdministrator, "REHASH", c.remoteHost) {
		return errNumeric(wire.ERR_NOPRIVILEGES, ":Permission Denied- You're not an IRC operator")
	}
	if err := s.rehashSvc.ReloadMainConfig(s.cfg, u.Nick, c.remoteHost); err != nil {
		return errNumeric(wire.ERR_UNKNOWNERROR, ":Rehash failed: "+err.Error())
	}
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_REHASHING, Params: []string{u.Nick, "ircd.conf", "Rehashing"}}).Bytes())
	return handled()
}

func handleSquit(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if len(m.Params) < 1 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "SQUIT :Not enough parameters")
	}
	target := m.Params[0]
	confirmToken := ""
	if len(m.Params) > 1 {
		confirmToken = m.Params[1]
	}
	affected := len(s.db.GetUsersByServer(target))
	if err := s.peerAuthz.CheckSquit(u, target, s.cfg.Server.Name, target, affected, confirmToken, c.remoteHost); err != nil {
		return errNumeric(wire.ERR_NOPRIVILEGES, ":Permission Denied- "+err.Error())
	}
	if peer, ok := s.peers.Get(target); ok {
		_ = peer.Send((&wire.Message{Command: "ERROR", Params: []string{"Closing Link: SQUIT by " + u.Nick}}).Bytes())
		_ = peer.Conn.Close()
		s.peers.Unregister(target)
	}
	return handled()
}

func handleConnect(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if len(m.Params) < 1 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "CONNECT :Not enough parameters")
	}
	remote := len(m.Params) > 2
	if err := s.peerAuthz.CheckConnect(u, remote, c.remoteHost); err != nil {
		return errNumeric(wire.ERR_NOPRIVILEGES, ":Permission Denied- "+err.Error())
	}
	go s.dialPeer(m.Params[0])
	return handled()
}
