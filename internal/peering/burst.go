package peering

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eaescob/go-ircd/internal/store"
	"github.com/eaescob/go-ircd/internal/wire"
)

// Handshake constructs the outgoing PASS/SERVER lines (spec §6: "PASS
// <link_password> TS <version>" then "SERVER <name> <hopcount> :<description>").
func Handshake(password, version, serverName, description string, hopCount int) [][]byte {
	pass := &wire.Message{Command: "PASS", Params: []string{password, "TS", version}}
	server := &wire.Message{Command: "SERVER", Params: []string{serverName, strconv.Itoa(hopCount), description}}
	return [][]byte{pass.Bytes(), server.Bytes()}
}

// ServerBurstEntry is one SBURST line's payload.
type ServerBurstEntry struct {
	Name     string
	HopCount int
	Version  string
}

// EncodeServerBurst renders an SBURST line.
func EncodeServerBurst(e ServerBurstEntry) []byte {
	m := &wire.Message{Command: "SBURST", Params: []string{e.Name, strconv.Itoa(e.HopCount), e.Version}}
	return m.Bytes()
}

// DecodeServerBurst parses an SBURST message's params.
func DecodeServerBurst(m *wire.Message) (ServerBurstEntry, error) {
	if len(m.Params) < 3 {
		return ServerBurstEntry{}, fmt.Errorf("peering: malformed SBURST")
	}
	hop, err := strconv.Atoi(m.Params[1])
	if err != nil {
		return ServerBurstEntry{}, fmt.Errorf("peering: bad hop count: %w", err)
	}
	return ServerBurstEntry{Name: m.Params[0], HopCount: hop, Version: m.Params[2]}, nil
}

// UserBurstEntry is one UBURST line's payload.
type UserBurstEntry struct {
	Nick         string
	Username     string
	Host         string
	RealName     string
	Server       string
	UUID         uuid.UUID
	RegisteredAt time.Time
	Modes        string
	Channels     []string
	IsOperator   bool
	Flags        store.OperFlags
}

// EncodeUserBurst renders a UBURST line. The registration time is sent as
// unix seconds before the modes string; after the modes come the
// comma-joined channels, the operator bit ("1"/"0"), the numeric flags, and
// the real name as the final parameter.
func EncodeUserBurst(e UserBurstEntry) []byte {
	m := &wire.Message{Command: "UBURST", Params: []string{
		e.Nick, e.Username, e.Host, e.Server, e.UUID.String(),
		strconv.FormatInt(e.RegisteredAt.Unix(), 10), e.Modes,
		strings.Join(e.Channels, ","),
		boolStr(e.IsOperator),
		strconv.Itoa(int(e.Flags)),
		e.RealName,
	}}
	return m.Bytes()
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// DecodeUserBurst parses a UBURST message's params.
func DecodeUserBurst(m *wire.Message) (UserBurstEntry, error) {
	if len(m.Params) < 11 {
		return UserBurstEntry{}, fmt.Errorf("peering: malformed UBURST")
	}
	id, err := uuid.Parse(m.Params[4])
	if err != nil {
		return UserBurstEntry{}, fmt.Errorf("peering: bad uuid: %w", err)
	}
	ts, err := strconv.ParseInt(m.Params[5], 10, 64)
	if err != nil {
		return UserBurstEntry{}, fmt.Errorf("peering: bad timestamp: %w", err)
	}
	flags, _ := strconv.Atoi(m.Params[9])
	var channels []string
	if m.Params[7] != "" {
		channels = strings.Split(m.Params[7], ",")
	}
	return UserBurstEntry{
		Nick: m.Params[0], Username: m.Params[1], Host: m.Params[2], Server: m.Params[3],
		UUID: id, RegisteredAt: time.Unix(ts, 0), Modes: m.Params[6], Channels: channels,
		IsOperator: m.Params[8] == "1", Flags: store.OperFlags(flags),
		RealName: m.Params[10],
	}, nil
}

// ChannelBurstEntry is one CBURST line's payload.
type ChannelBurstEntry struct {
	Name      string
	CreatedAt time.Time
	Topic     string
	Modes     string
	Members   []string // "nick" or "@nick"/"+nick" with prefix
}

// EncodeChannelBurst renders a CBURST line.
func EncodeChannelBurst(e ChannelBurstEntry) []byte {
	m := &wire.Message{Command: "CBURST", Params: []string{
		e.Name, strconv.FormatInt(e.CreatedAt.Unix(), 10), e.Modes,
		strings.Join(e.Members, ","), e.Topic,
	}}
	return m.Bytes()
}

// DecodeChannelBurst parses a CBURST message's params.
func DecodeChannelBurst(m *wire.Message) (ChannelBurstEntry, error) {
	if len(m.Params) < 5 {
		return ChannelBurstEntry{}, fmt.Errorf("peering: malformed CBURST")
	}
	ts, err := strconv.ParseInt(m.Params[1], 10, 64)
	if err != nil {
		return ChannelBurstEntry{}, fmt.Errorf("peering: bad timestamp: %w", err)
	}
	var members []string
	if m.Params[3] != "" {
		members = strings.Split(m.Params[3], ",")
	}
	return ChannelBurstEntry{
		Name: m.Params[0], CreatedAt: time.Unix(ts, 0), Modes: m.Params[2],
		Members: members, Topic: m.Params[4],
	}, nil
}

// ShouldSkipBurstOptimization reports whether, on a reconnect within
// burstOptimizationWindow of lastBurstSync, a given user's burst entry can
// be skipped: either the user is in NetSplit (it will be re-bursted by the
// reconnecting side per spec §4.11) or it hasn't changed since lastBurstSync.
func ShouldSkipBurstOptimization(lastBurstSync time.Time, now time.Time, window time.Duration, userChangedSince time.Time, userIsNetSplit bool) bool {
	if now.Sub(lastBurstSync) > window {
		return false
	}
	if userIsNetSplit {
		return true
	}
	return userChangedSince.Before(lastBurstSync)
}
