// Package store implements the in-memory, concurrently-accessed database
// of users, channels, peer servers, and WHOWAS history, with the integrated
// lookup caches described in spec §3 and §4.5.
package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/eaescob/go-ircd/internal/wire"
)

// UserState is the registration/lifecycle state machine for a User.
type UserState int

const (
	StateConnecting UserState = iota
	StateRegistering
	StateActive
	StateNetSplit
	StateRemoved
)

// OperFlags is a bitset of the operator privilege flags (spec §4.7).
type OperFlags uint8

const (
	FlagGlobalOper OperFlags = 1 << iota
	FlagLocalOper
	FlagRemoteConnect
	FlagLocalConnect
	FlagAdministrator
	FlagSpy
	FlagSquit
)

func (f OperFlags) Has(flag OperFlags) bool { return f&flag != 0 }

// User is an IRC client, local or remote.
type User struct {
	ID           uuid.UUID
	Nick         string
	Username     string
	RealName     string
	Host         string
	Server       string // server-of-origin name
	RegisteredAt time.Time
	SplitAt      time.Time
	State        UserState
	Modes        map[byte]bool
	OperFlags    OperFlags
	IsOperator   bool
	Account      string // SASL/services account name, optional
	AwayMessage  string
	IsBot        bool
	LocalConn    bool // true if this server owns the connection
}

// NickKey returns the casefolded nickname used as the lookup-cache key.
func (u *User) NickKey() string { return wire.Casefold(u.Nick) }

// Channel is a channel record.
type Channel struct {
	Name        string
	Topic       string
	TopicSetBy  string
	TopicSetAt  time.Time
	CreatedAt   time.Time
	Modes       map[byte]bool
	Key         string
	Limit       int
	Members     map[uuid.UUID]*Member
}

// Member is a channel membership with its per-channel prefix flags.
type Member struct {
	UserID   uuid.UUID
	Operator bool
	HalfOp   bool
	Voice    bool
}

// IsPermanent reports whether the +P (permanent) mode is set.
func (c *Channel) IsPermanent() bool { return c.Modes['P'] }

// Server is a peer node record.
type Server struct {
	Name          string
	Version       string
	HopCount      int
	ULined        bool
	MessagesSent  uint64
	MessagesRecv  uint64
	BytesSent     uint64
	BytesRecv     uint64
	LastBurstSync time.Time
	LinkedAt      time.Time
}

// WhowasEntry is a snapshot of a departed user, kept for a bounded depth
// and retention age.
type WhowasEntry struct {
	Nick       string
	Username   string
	Host       string
	RealName   string
	Server     string
	DisconnectedAt time.Time
}
