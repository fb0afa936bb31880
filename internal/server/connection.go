// Package server implements the Connection Lifecycle and Command
// Dispatcher: accepting and registering connections, routing verbs to
// handlers, and wiring every other component into one running daemon
// (spec §4.9, §4.10).
package server

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eaescob/go-ircd/internal/buffer"
	"github.com/eaescob/go-ircd/internal/capability"
	"github.com/eaescob/go-ircd/internal/class"
	"github.com/eaescob/go-ircd/internal/store"
)

// connState is a connection's position in the registration state machine,
// independent of (and coarser than) store.UserState.
type connState int

const (
	connConnecting connState = iota
	connRegistering
	connRegistered
	connClosing
)

// Connection is one accepted socket, pre- or post-registration. Client and
// server-to-server links are both represented by a Connection; peering
// links are marked by isPeer and peerName (set by the accept path once a
// SERVER line is seen instead of NICK/USER).
type Connection struct {
	mu sync.Mutex

	conn net.Conn
	id   uuid.UUID

	remoteIP   string
	remoteHost string

	state connState

	sendQ  *buffer.SendQueue
	recvQ  *buffer.RecvQueue
	timing *buffer.ConnectionTiming
	negotiation *capability.Negotiation

	class      *class.Class
	allowBlock *class.AllowBlock

	user *store.User

	// pendingNick/pendingUser accumulate NICK/USER before registration
	// completes; promoted into a *store.User once both are present and
	// CAP negotiation (if any) has ended.
	pendingNick     string
	pendingUser     string
	pendingRealName string
	pendingPass     string

	isPeer   bool
	peerName string

	writeErr error
}

func newConnection(conn net.Conn, id uuid.UUID, remoteIP, remoteHost string, maxSendQ, maxRecvQ int, now time.Time) *Connection {
	return &Connection{
		conn:        conn,
		id:          id,
		remoteIP:    remoteIP,
		remoteHost:  remoteHost,
		state:       connConnecting,
		sendQ:       buffer.NewSendQueue(maxSendQ),
		recvQ:       buffer.NewRecvQueue(maxRecvQ),
		timing:      buffer.NewConnectionTiming(now),
		negotiation: capability.NewNegotiation(),
	}
}

// ID satisfies broadcast.Recipient.
func (c *Connection) ID() uuid.UUID { return c.id }

// HasCapability satisfies broadcast.Recipient.
func (c *Connection) HasCapability(name string) bool {
	return c.negotiation.HasCapability(name)
}

// WriteSendQ satisfies broadcast.Recipient: enqueue and flush immediately,
// dropping (never blocking) on overflow. The Broadcast Engine's delivery
// goroutine is the only writer racing the connection's own sendLine calls,
// and flush's Drain is safe to call concurrently with itself since the
// underlying queue does its own locking.
func (c *Connection) WriteSendQ(payload []byte) bool {
	ok := c.sendQ.Push(payload)
	_ = c.flush()
	return ok
}

// flush drains the send queue to the socket. It is called by both sendLine
// and WriteSendQ, so it can run on the Broadcast Engine's goroutine as well
// as the connection's own; each queued message goes out in one conn.Write.
func (c *Connection) flush() error {
	for _, msg := range c.sendQ.Drain() {
		if _, err := c.conn.Write(msg); err != nil {
			c.mu.Lock()
			c.writeErr = err
			c.mu.Unlock()
			return err
		}
	}
	return nil
}

// sendLine enqueues a single pre-framed line (with CRLF already applied by
// the caller via wire.Message.Bytes) and flushes immediately. Registration
// and error paths call this directly instead of going through the
// Broadcast Engine, since those messages are addressed to exactly one
// connection and must not be reordered behind queued broadcasts.
func (c *Connection) sendLine(line []byte) {
	c.sendQ.Push(line)
	_ = c.flush()
}

func (c *Connection) setUser(u *store.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = u
}

func (c *Connection) getUser() *store.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Connection) setState(s connState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Connection) currentState() connState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) close() {
	_ = c.conn.Close()
}
