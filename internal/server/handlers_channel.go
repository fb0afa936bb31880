package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eaescob/go-ircd/internal/broadcast"
	"github.com/eaescob/go-ircd/internal/replies"
	"github.com/eaescob/go-ircd/internal/store"
	"github.com/eaescob/go-ircd/internal/wire"
)

func broadcastItem(channel string, payload []byte) broadcast.Item {
	return broadcast.Item{Target: broadcast.Target{Kind: broadcast.TargetChannel, ChannelName: channel}, Payload: payload, Priority: broadcast.Normal}
}

func userPrefix(u *store.User) string { return u.Nick + "!" + u.Username + "@" + u.Host }

func needRegistered(u *store.User) *Result {
	if u == nil {
		r := errNumeric(wire.ERR_NOTREGISTERED, ":You have not registered")
		return &r
	}
	return nil
}

func handleJoin(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if r := rateLimited(s, u, "join"); r != nil {
		return *r
	}
	if len(m.Params) == 0 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "JOIN :Not enough parameters")
	}
	now := time.Now()
	for _, name := range strings.Split(m.Params[0], ",") {
		if !wire.ValidChannel(name) {
			continue
		}
		ch, ok := s.db.GetChannel(name)
		if !ok {
			ch = &store.Channel{Name: name, CreatedAt: now, Modes: make(map[byte]bool), Members: make(map[uuid.UUID]*store.Member)}
			s.db.AddChannel(ch)
		}
		if ch.Key != "" {
			key := ""
			if len(m.Params) > 1 {
				key = m.Params[1]
			}
			if key != ch.Key {
				return errNumeric(wire.ERR_BADCHANNELKEY, name+" :Cannot join channel (+k)")
			}
		}
		if ch.Limit > 0 && len(ch.Members) >= ch.Limit {
			return errNumeric(wire.ERR_CHANNELISFULL, name+" :Cannot join channel (+l)")
		}
		if ch.Modes['i'] && !inviteCleared(s, name, u.ID) {
			return errNumeric(wire.ERR_INVITEONLYCHAN, name+" :Cannot join channel (+i)")
		}

		isFirst := len(ch.Members) == 0
		_ = s.db.AddUserToChannel(name, &store.Member{UserID: u.ID, Operator: isFirst})

		joinMsg := (&wire.Message{Prefix: userPrefix(u), Command: "JOIN", Params: []string{name}}).Bytes()
		s.broadcaster.Enqueue(broadcastItem(name, joinMsg))

		if ch.Topic != "" {
			c.sendLine([]byte(s.replies.Render(wire.RPL_TOPIC, replies.Fields{
				"server_name": s.cfg.Server.Name, "nick": u.Nick, "channel": name, "info": ch.Topic,
			}) + "\r\n"))
		}
		sendNames(s, c, u, name)
	}
	return handled()
}

// inviteCleared is a placeholder invite-exception check; without a
// persisted invite list here it always reports false, matching the
// teacher's own single-shot (non-persisted) INVITE semantics.
func inviteCleared(s *Server, channel string, id uuid.UUID) bool { return false }

func handlePart(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if r := rateLimited(s, u, "join"); r != nil {
		return *r
	}
	if len(m.Params) == 0 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "PART :Not enough parameters")
	}
	reason := u.Nick
	if len(m.Params) > 1 {
		reason = m.Params[1]
	}
	for _, name := range strings.Split(m.Params[0], ",") {
		if _, ok := s.db.GetChannel(name); !ok {
			return errNumeric(wire.ERR_NOSUCHCHANNEL, name+" :No such channel")
		}
		partMsg := (&wire.Message{Prefix: userPrefix(u), Command: "PART", Params: []string{name, reason}}).Bytes()
		s.broadcaster.Enqueue(broadcastItem(name, partMsg))
		_, _ = s.db.RemoveUserFromChannel(name, u.ID)
	}
	return handled()
}

func handleTopic(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if r := rateLimited(s, u, "topic"); r != nil {
		return *r
	}
	if len(m.Params) == 0 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "TOPIC :Not enough parameters")
	}
	name := m.Params[0]
	ch, ok := s.db.GetChannel(name)
	if !ok {
		return errNumeric(wire.ERR_NOSUCHCHANNEL, name+" :No such channel")
	}
	if len(m.Params) == 1 {
		if ch.Topic == "" {
			c.sendLine([]byte(s.replies.Render(wire.RPL_NOTOPIC, replies.Fields{"server_name": s.cfg.Server.Name, "nick": u.Nick, "channel": name}) + "\r\n"))
			return handled()
		}
		c.sendLine([]byte(s.replies.Render(wire.RPL_TOPIC, replies.Fields{"server_name": s.cfg.Server.Name, "nick": u.Nick, "channel": name, "info": ch.Topic}) + "\r\n"))
		return handled()
	}
	if ch.Modes['t'] {
		mem, in := ch.Members[u.ID]
		if !in || (!mem.Operator && !mem.HalfOp && !u.IsOperator) {
			return errNumeric(wire.ERR_CHANOPRIVSNEEDED, name+" :You're not channel operator")
		}
	}
	ch.Topic = m.Params[1]
	ch.TopicSetBy = u.Nick
	ch.TopicSetAt = time.Now()
	topicMsg := (&wire.Message{Prefix: userPrefix(u), Command: "TOPIC", Params: []string{name, ch.Topic}}).Bytes()
	s.broadcaster.Enqueue(broadcastItem(name, topicMsg))
	return handled()
}

func sendNames(s *Server, c *Connection, u *store.User, channel string) {
	names, _ := s.db.GetChannelUsers(channel, time.Now())
	c.sendLine([]byte(s.replies.Render(wire.RPL_NAMREPLY, replies.Fields{
		"server_name": s.cfg.Server.Name, "nick": u.Nick, "channel": channel, "info": strings.Join(names, " "),
	}) + "\r\n"))
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_ENDOFNAMES, Params: []string{u.Nick, channel, "End of /NAMES list"}}).Bytes())
}

func handleNames(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if len(m.Params) == 0 {
		return handled()
	}
	for _, name := range strings.Split(m.Params[0], ",") {
		sendNames(s, c, u, name)
	}
	return handled()
}

func handleList(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	for _, name := range s.db.ListChannelNames() {
		ch, ok := s.db.GetChannel(name)
		if !ok {
			continue
		}
		c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_LIST, Params: []string{u.Nick, name, strconv.Itoa(len(ch.Members)), ch.Topic}}).Bytes())
	}
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_LISTEND, Params: []string{u.Nick, "End of /LIST"}}).Bytes())
	return handled()
}

func handleKick(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if len(m.Params) < 2 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "KICK :Not enough parameters")
	}
	channel, targetNick := m.Params[0], m.Params[1]
	reason := u.Nick
	if len(m.Params) > 2 {
		reason = m.Params[2]
	}
	ch, ok := s.db.GetChannel(channel)
	if !ok {
		return errNumeric(wire.ERR_NOSUCHCHANNEL, channel+" :No such channel")
	}
	mem, in := ch.Members[u.ID]
	if !u.IsOperator && (!in || (!mem.Operator && !mem.HalfOp)) {
		return errNumeric(wire.ERR_CHANOPRIVSNEEDED, channel+" :You're not channel operator")
	}
	target, ok := s.db.GetUserByNick(targetNick, time.Now())
	if !ok {
		return errNumeric(wire.ERR_USERNOTINCHANNEL, targetNick+" "+channel+" :They aren't on that channel")
	}
	kickMsg := (&wire.Message{Prefix: userPrefix(u), Command: "KICK", Params: []string{channel, targetNick, reason}}).Bytes()
	s.broadcaster.Enqueue(broadcastItem(channel, kickMsg))
	_, _ = s.db.RemoveUserFromChannel(channel, target.ID)
	return handled()
}

func handleInvite(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if len(m.Params) < 2 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "INVITE :Not enough parameters")
	}
	targetNick, channel := m.Params[0], m.Params[1]
	target, ok := s.db.GetUserByNick(targetNick, time.Now())
	if !ok {
		return errNumeric(wire.ERR_NOSUCHNICK, targetNick+" :No such nick/channel")
	}
	c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_INVITING, Params: []string{u.Nick, targetNick, channel}}).Bytes())
	s.broadcaster.Enqueue(broadcast.Item{
		Target:   broadcast.Target{Kind: broadcast.TargetUserSet, UserIDs: []uuid.UUID{target.ID}},
		Payload:  (&wire.Message{Prefix: userPrefix(u), Command: "INVITE", Params: []string{targetNick, channel}}).Bytes(),
		Priority: broadcast.High,
	})
	return handled()
}
