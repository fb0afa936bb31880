package server

import (
	"strings"
	"time"

	"github.com/eaescob/go-ircd/internal/store"
	"github.com/eaescob/go-ircd/internal/wire"
)

// operatorOnlyUserModes cannot be set through MODE; only the internal OPER
// grant path (authz.Model.GrantOperatorPrivileges) may set them (spec §3,
// scenario S2's 503 restriction).
var operatorOnlyUserModes = map[byte]bool{'o': true, 'O': true}

// handleMode dispatches to the channel or user mode handler depending on
// the target's shape, mirroring the teacher's reflection-driven
// usermodes.go conceptually but over store.User/Channel's plain
// map[byte]bool mode sets instead of a struct-tag-driven type.
func handleMode(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if r := needRegistered(u); r != nil {
		return *r
	}
	if len(m.Params) == 0 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "MODE :Not enough parameters")
	}
	if wire.ValidChannel(m.Params[0]) {
		return handleChannelMode(s, c, u, m)
	}
	return handleUserMode(s, c, u, m)
}

func handleUserMode(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	target := m.Params[0]
	if !strings.EqualFold(target, u.Nick) {
		return errNumeric(wire.ERR_USERSDONTMATCH, ":Cannot change mode for other users")
	}
	if len(m.Params) == 1 {
		c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: "221", Params: []string{u.Nick, renderModes(u.Modes)}}).Bytes())
		return handled()
	}

	adding := true
	blockedElevation := false
	for _, ch := range m.Params[1] {
		switch ch {
		case '+':
			adding = true
		case '-':
			adding = false
		default:
			flag := byte(ch)
			if operatorOnlyUserModes[flag] && adding {
				blockedElevation = true
				continue
			}
			if u.Modes == nil {
				u.Modes = make(map[byte]bool)
			}
			if adding {
				u.Modes[flag] = true
			} else {
				delete(u.Modes, flag)
				if flag == 'o' || flag == 'O' {
					s.authzModel.ClearOperatorStatus(u)
				}
			}
		}
	}
	if blockedElevation {
		return errNumeric(wire.ERR_OPERONLYMODE, ":Operator mode can only be granted through OPER command")
	}
	c.sendLine((&wire.Message{Prefix: userPrefix(u), Command: "MODE", Params: []string{u.Nick, m.Params[1]}}).Bytes())
	return handled()
}

func renderModes(modes map[byte]bool) string {
	var b strings.Builder
	b.WriteByte('+')
	for flag, set := range modes {
		if set {
			b.WriteByte(flag)
		}
	}
	return b.String()
}

func handleChannelMode(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	name := m.Params[0]
	ch, ok := s.db.GetChannel(name)
	if !ok {
		return errNumeric(wire.ERR_NOSUCHCHANNEL, name+" :No such channel")
	}
	if len(m.Params) == 1 {
		c.sendLine((&wire.Message{Prefix: s.cfg.Server.Name, Command: wire.RPL_CHANNELMODEIS, Params: []string{u.Nick, name, renderModes(ch.Modes)}}).Bytes())
		return handled()
	}

	mem, in := ch.Members[u.ID]
	if !u.IsOperator && (!in || (!mem.Operator && !mem.HalfOp)) {
		return errNumeric(wire.ERR_CHANOPRIVSNEEDED, name+" :You're not channel operator")
	}

	adding := true
	argIdx := 2
	for _, flag := range m.Params[1] {
		switch flag {
		case '+':
			adding = true
		case '-':
			adding = false
		case 'k':
			if adding && argIdx < len(m.Params) {
				ch.Key = m.Params[argIdx]
				argIdx++
			} else {
				ch.Key = ""
			}
		case 'l':
			if adding && argIdx < len(m.Params) {
				ch.Limit = parseIntOrZero(m.Params[argIdx])
				argIdx++
			} else {
				ch.Limit = 0
			}
		case 'o', 'h', 'v':
			if argIdx < len(m.Params) {
				applyMemberPrefix(s, ch, m.Params[argIdx], flag, adding)
				argIdx++
			}
		default:
			if ch.Modes == nil {
				ch.Modes = make(map[byte]bool)
			}
			if adding {
				ch.Modes[byte(flag)] = true
			} else {
				delete(ch.Modes, byte(flag))
			}
		}
	}
	modeMsg := (&wire.Message{Prefix: userPrefix(u), Command: "MODE", Params: append([]string{name}, m.Params[1:]...)}).Bytes()
	s.broadcaster.Enqueue(broadcastItem(name, modeMsg))
	return handled()
}

func applyMemberPrefix(s *Server, ch *store.Channel, nick string, flag rune, adding bool) {
	target, ok := s.db.GetUserByNick(nick, time.Now())
	if !ok {
		return
	}
	mem, in := ch.Members[target.ID]
	if !in {
		return
	}
	switch flag {
	case 'o':
		mem.Operator = adding
	case 'h':
		mem.HalfOp = adding
	case 'v':
		mem.Voice = adding
	}
}

func parseIntOrZero(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
