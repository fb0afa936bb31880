package server

import (
	"bufio"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/eaescob/go-ircd/internal/broadcast"
	"github.com/eaescob/go-ircd/internal/peering"
	"github.com/eaescob/go-ircd/internal/store"
	"github.com/eaescob/go-ircd/internal/wire"
)

// connectConfiguredPeers dials every outgoing link in the configuration at
// startup; failures fall into the reconnect scheduler rather than
// blocking Start (spec §4.11 step 5, grounded on the teacher's
// ConnectToPeers loop).
func (s *Server) connectConfiguredPeers() {
	for _, link := range s.cfg.Network.Links {
		if !link.Outgoing {
			continue
		}
		go s.dialPeer(link.ServerName)
	}
}

func (s *Server) dialPeer(name string) {
	var entry *struct {
		Host, Password string
		Port           int
	}
	for _, l := range s.cfg.Network.Links {
		if l.ServerName == name {
			entry = &struct {
				Host, Password string
				Port           int
			}{l.Host, l.Password, l.Port}
			break
		}
	}
	if entry == nil {
		return
	}

	state := s.reconnect.StateFor(name, s.cfg.Netsplit.ReconnectBaseDelay, s.cfg.Netsplit.ReconnectMaxDelay)
	addr := net.JoinHostPort(entry.Host, strconv.Itoa(entry.Port))
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		time.AfterFunc(state.NextDelay(time.Now()), func() { s.dialPeer(name) })
		return
	}

	conn.Write((&wire.Message{Command: "PASS", Params: []string{entry.Password}}).Bytes())
	conn.Write((&wire.Message{Command: "SERVER", Params: []string{s.cfg.Server.Name, "1", s.cfg.Server.Version}}).Bytes())

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		time.AfterFunc(state.NextDelay(time.Now()), func() { s.dialPeer(name) })
		return
	}
	reply, err := wire.Parse(trimCRLF(line))
	if err != nil || reply.Command != "SERVER" {
		conn.Close()
		time.AfterFunc(state.NextDelay(time.Now()), func() { s.dialPeer(name) })
		return
	}

	state.ResetOnSuccess()
	peer := peering.NewPeer(name, conn, true)
	peer.SetState(peering.LinkEstablished)
	s.peers.Register(peer)
	s.auditLog.Emit("LinkEstablished", s.cfg.Server.Name, name, entry.Host, "CONNECT", "", nil)

	go s.peerReadLoop(peer, reader)
}

// handleServer processes the SERVER line of an inbound peer handshake: a
// connecting server sends PASS (captured into c.pendingPass by handlePass)
// then SERVER before ever sending NICK/USER, and is promoted to a peer
// link instead of continuing through client registration (spec §4.11,
// the accept-side counterpart to dialPeer's outgoing handshake).
func handleServer(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	if len(m.Params) == 0 {
		return errNumeric(wire.ERR_NEEDMOREPARAMS, "SERVER :Not enough parameters")
	}
	name := m.Params[0]
	if err := s.linkAuth.AuthenticateIncoming(name, c.pendingPass, c.remoteIP); err != nil {
		c.sendLine((&wire.Message{Command: "ERROR", Params: []string{"Closing Link: " + err.Error()}}).Bytes())
		c.setState(connClosing)
		return handled()
	}

	peer := peering.NewPeer(name, c.conn, false)
	peer.SetState(peering.LinkEstablished)
	s.peers.Register(peer)
	c.isPeer = true
	c.peerName = name
	c.setState(connRegistered)

	c.sendLine((&wire.Message{Command: "SERVER", Params: []string{s.cfg.Server.Name, "1", s.cfg.Server.Version}}).Bytes())
	s.auditLog.Emit("LinkEstablished", name, s.cfg.Server.Name, c.remoteIP, "SERVER", "", nil)
	return handled()
}

// handlePeerLine processes one line from an already-established inbound
// peer link: UBURST and CBURST entries are merged into the Database (SBURST
// is only decoded), PING is answered with PONG, and every other line, burst
// lines included, is relayed to every other peer (loop avoidance via the
// originating peer's name, same as the outgoing side's peerReadLoop). A
// UBURST that loses a nick collision is not relayed.
func (s *Server) handlePeerLine(c *Connection, msg *wire.Message, raw []byte) {
	switch msg.Command {
	case "SBURST":
		if _, err := peering.DecodeServerBurst(msg); err != nil {
			return
		}
	case "UBURST":
		entry, err := peering.DecodeUserBurst(msg)
		if err != nil {
			return
		}
		incoming := &store.User{
			ID: entry.UUID, Nick: entry.Nick, Username: entry.Username, Host: entry.Host,
			RealName: entry.RealName, Server: entry.Server, RegisteredAt: entry.RegisteredAt,
			IsOperator: entry.IsOperator, OperFlags: entry.Flags, LocalConn: false,
		}
		if existing, ok := s.db.GetUserByNick(entry.Nick, time.Now()); ok {
			switch peering.ResolveNickCollision(existing.RegisteredAt, entry.RegisteredAt, existing.Server, entry.Server) {
			case peering.KillLocal:
				s.killForCollision(existing, c.remoteIP)
				_ = s.db.AddUser(incoming, entry.RegisteredAt)
			case peering.KillRemote:
				s.auditLog.Emit("NickCollision", entry.Nick, existing.Nick, c.remoteIP, "UBURST", peering.CollisionKillReason, nil)
				s.peers.Propagate((&wire.Message{Command: "KILL", Params: []string{entry.Nick, peering.CollisionKillReason}}).Bytes(), "")
				return
			case peering.KillBoth:
				s.killForCollision(existing, c.remoteIP)
				s.peers.Propagate((&wire.Message{Command: "KILL", Params: []string{entry.Nick, peering.CollisionKillReason}}).Bytes(), "")
				return
			}
		} else {
			_ = s.db.AddUser(incoming, entry.RegisteredAt)
		}
	case "CBURST":
		entry, err := peering.DecodeChannelBurst(msg)
		if err != nil {
			return
		}
		s.db.MergeChannelBurst(&store.Channel{
			Name: entry.Name, CreatedAt: entry.CreatedAt, Topic: entry.Topic,
			Modes:   parseBurstModes(entry.Modes),
			Members: s.resolveBurstMembers(entry.Members),
		})
	case "PING":
		c.sendLine((&wire.Message{Command: "PONG", Params: msg.Params}).Bytes())
		return
	case "SQUIT":
		if len(msg.Params) > 0 {
			s.peers.Unregister(msg.Params[0])
		}
	}
	s.peers.Propagate(raw, c.peerName)
}

// killForCollision removes the losing side of a nick collision: closing
// its local connection if it has one, then clearing it from channels and
// the Database the same way QUIT/KILL cleanup does.
func (s *Server) killForCollision(target *store.User, remoteIP string) {
	if target.LocalConn {
		s.mu.Lock()
		conn := s.connForUser(target.ID)
		s.mu.Unlock()
		if conn != nil {
			conn.sendLine((&wire.Message{Command: "ERROR", Params: []string{"Closing Link: " + peering.CollisionKillReason}}).Bytes())
			conn.setState(connClosing)
			conn.close()
		}
	}
	now := time.Now()
	_, affected := s.db.RemoveUserFromAllChannels(target.ID)
	s.db.AddToHistory(target, now)
	_, _ = s.db.RemoveUser(target.ID, now)
	s.auditLog.Emit("NickCollision", target.Nick, target.Nick, remoteIP, "UBURST", peering.CollisionKillReason, nil)

	quitMsg := (&wire.Message{
		Prefix:  target.Nick + "!" + target.Username + "@" + target.Host,
		Command: "QUIT",
		Params:  []string{peering.CollisionKillReason},
	}).Bytes()
	for _, ch := range affected {
		s.broadcaster.Enqueue(broadcast.Item{
			Target:   broadcast.Target{Kind: broadcast.TargetChannel, ChannelName: ch},
			Payload:  quitMsg,
			Priority: broadcast.Normal,
		})
	}
}

// parseBurstModes turns a CBURST entry's "+nt"-style mode string into the
// boolean set store.Channel.Modes uses.
func parseBurstModes(modes string) map[byte]bool {
	out := make(map[byte]bool)
	adding := true
	for _, r := range modes {
		switch r {
		case '+':
			adding = true
		case '-':
			adding = false
		default:
			if adding {
				out[byte(r)] = true
			}
		}
	}
	return out
}

// resolveBurstMembers maps a CBURST entry's "@nick"/"+nick"/"nick" list to
// known users, dropping names that don't resolve locally. Dropped names are
// not re-added later: UBURST handling does not read the entry's channel list.
func (s *Server) resolveBurstMembers(names []string) map[uuid.UUID]*store.Member {
	out := make(map[uuid.UUID]*store.Member, len(names))
	now := time.Now()
	for _, n := range names {
		if n == "" {
			continue
		}
		prefix := byte(0)
		nick := n
		switch n[0] {
		case '@', '+', '%':
			prefix = n[0]
			nick = n[1:]
		}
		u, ok := s.db.GetUserByNick(nick, now)
		if !ok {
			continue
		}
		out[u.ID] = &store.Member{UserID: u.ID, Operator: prefix == '@', Voice: prefix == '+', HalfOp: prefix == '%'}
	}
	return out
}

func trimCRLF(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// peerReadLoop relays lines from an established peer connection into the
// propagation path until the link drops.
func (s *Server) peerReadLoop(peer *peering.Peer, reader *bufio.Reader) {
	defer func() {
		s.peers.Unregister(peer.Name)
		_ = peer.Conn.Close()
	}()
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		msg, err := wire.Parse(trimCRLF(line))
		if err != nil {
			continue
		}
		s.peers.Propagate(msg.Bytes(), peer.Name)
	}
}
