// Package peering implements the Server-to-Server Engine: link
// authentication, the three-phase burst protocol, propagation with
// origin-prefix loop avoidance, nick-collision resolution, netsplit
// detection/recovery, and reconnect scheduling (spec §4.11).
package peering

import (
	"net"
	"sync"
	"time"
)

// LinkState is a peer connection's handshake/burst progress.
type LinkState int

const (
	LinkConnecting LinkState = iota
	LinkAuthenticated
	LinkBursting
	LinkEstablished
	LinkGone
)

// Peer is a live (or just-lost) connection to another server.
type Peer struct {
	mu            sync.Mutex
	Name          string
	Conn          net.Conn
	Outgoing      bool
	State         LinkState
	LastBurstSync time.Time
	LinkedAt      time.Time
}

func NewPeer(name string, conn net.Conn, outgoing bool) *Peer {
	return &Peer{Name: name, Conn: conn, Outgoing: outgoing, State: LinkConnecting, LinkedAt: time.Now()}
}

func (p *Peer) SetState(s LinkState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.State = s
}

func (p *Peer) CurrentState() LinkState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.State
}

// Send writes a pre-framed wire line to the peer connection.
func (p *Peer) Send(line []byte) error {
	_, err := p.Conn.Write(line)
	return err
}

// Manager owns the set of currently and formerly connected peers, and the
// hook registries for join/leave/relay events (the shape kept from the
// teacher's gRPC-era peering.Manager, re-platformed onto net.Conn).
type Manager struct {
	mu    sync.RWMutex
	peers map[string]*Peer

	onPeerJoin  []func(name string)
	onPeerLeave []func(name string)
}

func NewManager() *Manager {
	return &Manager{peers: make(map[string]*Peer)}
}

func (m *Manager) Register(p *Peer) {
	m.mu.Lock()
	m.peers[p.Name] = p
	m.mu.Unlock()
	m.fireJoin(p.Name)
}

func (m *Manager) Unregister(name string) {
	m.mu.Lock()
	delete(m.peers, name)
	m.mu.Unlock()
	m.fireLeave(name)
}

func (m *Manager) Get(name string) (*Peer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.peers[name]
	return p, ok
}

// All returns every currently registered peer.
func (m *Manager) All() []*Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		out = append(out, p)
	}
	return out
}

func (m *Manager) OnPeerJoin(fn func(name string))  { m.onPeerJoin = append(m.onPeerJoin, fn) }
func (m *Manager) OnPeerLeave(fn func(name string)) { m.onPeerLeave = append(m.onPeerLeave, fn) }

func (m *Manager) fireJoin(name string) {
	for _, fn := range m.onPeerJoin {
		fn(name)
	}
}
func (m *Manager) fireLeave(name string) {
	for _, fn := range m.onPeerLeave {
		fn(name)
	}
}

// Propagate forwards line to every peer except the one named exceptName,
// implementing loop avoidance via the origin-prefix contract: callers
// embed the origin server name in line's prefix, and a peer receiving a
// message whose origin is itself must drop it before calling Propagate
// again (enforced by the caller, since only it knows the origin).
func (m *Manager) Propagate(line []byte, exceptName string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, p := range m.peers {
		if name == exceptName || p.CurrentState() != LinkEstablished {
			continue
		}
		_ = p.Send(line)
	}
}
