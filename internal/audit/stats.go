package audit

import (
	"fmt"
	"time"
)

// LinkStats mirrors one STATS l row.
type LinkStats struct {
	Name                       string
	SendQBytes, SendQCapacity  int
	RecvQBytes, RecvQCapacity  int
	MessagesSent, MessagesRecv uint64
	BytesSent, BytesRecv       uint64
	UptimeSeconds              int64
	Dropped                    uint64
}

// CommandStats mirrors one STATS m row.
type CommandStats struct {
	Verb        string
	Count       uint64
	AvgBytes    float64
	RemoteCount uint64
}

// OperatorStats mirrors one STATS o row.
type OperatorStats struct {
	HostMask string
	Class    string
	Name     string
}

// FormatLinkLine renders a STATS l reply line; non-operators get a
// redacted form omitting queue occupancy.
func FormatLinkLine(s LinkStats, operator bool) string {
	if !operator {
		return fmt.Sprintf("%s uptime=%ds", s.Name, s.UptimeSeconds)
	}
	return fmt.Sprintf("%s sendq=%d/%d recvq=%d/%d msgs=%d/%d bytes=%d/%d uptime=%ds dropped=%d",
		s.Name, s.SendQBytes, s.SendQCapacity, s.RecvQBytes, s.RecvQCapacity,
		s.MessagesSent, s.MessagesRecv, s.BytesSent, s.BytesRecv, s.UptimeSeconds, s.Dropped)
}

// FormatCommandLine renders a STATS m reply line.
func FormatCommandLine(s CommandStats) string {
	return fmt.Sprintf("%s %d %.1f %d", s.Verb, s.Count, s.AvgBytes, s.RemoteCount)
}

// Counters aggregates the running totals named in spec §4.12. Each field
// is updated by the component that owns the event (Connection Lifecycle,
// Broadcast Engine, Class Tracker); Counters itself performs no locking
// beyond what sync/atomic-style single-field updates would need, since in
// practice each field is touched from one call site behind the Server's
// own synchronization.
type Counters struct {
	StartedAt         time.Time
	TotalConnections  uint64
	CurrentClients    int
	CurrentServers    int
	CurrentChannels   int
	ThrottledIPs      uint64
	PerCommand        map[string]*CommandStats
}

// NewCounters starts the uptime clock at startedAt.
func NewCounters(startedAt time.Time) *Counters {
	return &Counters{StartedAt: startedAt, PerCommand: make(map[string]*CommandStats)}
}

// RecordCommand updates the per-command counters and the corresponding
// Prometheus series.
func (c *Counters) RecordCommand(verb string, bytes int, remote bool) {
	cs, ok := c.PerCommand[verb]
	if !ok {
		cs = &CommandStats{Verb: verb}
		c.PerCommand[verb] = cs
	}
	cs.Count++
	cs.AvgBytes = (cs.AvgBytes*float64(cs.Count-1) + float64(bytes)) / float64(cs.Count)
	if remote {
		cs.RemoteCount++
	}

	origin := "local"
	if remote {
		origin = "remote"
	}
	CommandsTotal.WithLabelValues(verb, origin).Inc()
	CommandBytesTotal.WithLabelValues(verb).Add(float64(bytes))
}

// UptimeSeconds reports server uptime for STATS u.
func (c *Counters) UptimeSeconds(now time.Time) int64 {
	return int64(now.Sub(c.StartedAt).Seconds())
}
