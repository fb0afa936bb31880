package server

import (
	"time"

	"github.com/google/uuid"

	"github.com/eaescob/go-ircd/internal/broadcast"
	"github.com/eaescob/go-ircd/internal/store"
	"github.com/eaescob/go-ircd/internal/wire"
)

func handlePrivmsg(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	return deliverMessage(s, c, u, m, "PRIVMSG")
}

func handleNotice(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	return deliverMessage(s, c, u, m, "NOTICE")
}

func deliverMessage(s *Server, c *Connection, u *store.User, m *wire.Message, verb string) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if r := rateLimited(s, u, "message"); r != nil {
		if verb == "NOTICE" {
			return handled()
		}
		return *r
	}
	if len(m.Params) < 2 {
		if verb == "NOTICE" {
			return handled()
		}
		return errNumeric(wire.ERR_NEEDMOREPARAMS, verb+" :Not enough parameters")
	}
	target, text := m.Params[0], m.Params[1]
	payload := (&wire.Message{Prefix: userPrefix(u), Command: verb, Params: []string{target, text}}).Bytes()

	if wire.ValidChannel(target) {
		ch, ok := s.db.GetChannel(target)
		if !ok {
			if verb == "NOTICE" {
				return handled()
			}
			return errNumeric(wire.ERR_CANNOTSENDTOCHAN, target+" :Cannot send to channel")
		}
		if ch.Modes['n'] {
			if _, in := ch.Members[u.ID]; !in {
				if verb == "NOTICE" {
					return handled()
				}
				return errNumeric(wire.ERR_CANNOTSENDTOCHAN, target+" :Cannot send to channel")
			}
		}
		if ch.Modes['m'] {
			mem, in := ch.Members[u.ID]
			if !in || (!mem.Voice && !mem.Operator && !mem.HalfOp) {
				if verb == "NOTICE" {
					return handled()
				}
				return errNumeric(wire.ERR_CANNOTSENDTOCHAN, target+" :Cannot send to channel")
			}
		}
		s.broadcaster.Enqueue(broadcast.Item{
			Target: broadcast.Target{Kind: broadcast.TargetChannel, ChannelName: target}, Payload: payload,
			Priority: broadcast.Normal, RequiredCapability: "",
		})
		return handled()
	}

	to, ok := s.db.GetUserByNick(target, time.Now())
	if !ok {
		if verb == "NOTICE" {
			return handled()
		}
		return errNumeric(wire.ERR_NOSUCHNICK, target+" :No such nick/channel")
	}
	s.broadcaster.Enqueue(broadcast.Item{
		Target:   broadcast.Target{Kind: broadcast.TargetUserSet, UserIDs: []uuid.UUID{to.ID}},
		Payload:  payload,
		Priority: broadcast.Normal,
	})
	return handled()
}

func handleAway(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	now := time.Now()
	if len(m.Params) == 0 || m.Params[0] == "" {
		_ = s.db.UpdateUser(u.ID, now, func(usr *store.User) error { usr.AwayMessage = ""; return nil })
		c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_UNAWAY, Params: []string{u.Nick, "You are no longer marked as being away"}}).Bytes())
		return handled()
	}
	_ = s.db.UpdateUser(u.ID, now, func(usr *store.User) error { usr.AwayMessage = m.Params[0]; return nil })
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_NOWAWAY, Params: []string{u.Nick, "You have been marked as being away"}}).Bytes())
	return handled()
}
