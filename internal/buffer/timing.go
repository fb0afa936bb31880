package buffer

import (
	"sync"
	"time"
)

// ConnectionTiming tracks the activity clock used to schedule PINGs and
// detect idle timeouts for a single connection.
type ConnectionTiming struct {
	mu              sync.Mutex
	connectAt       time.Time
	lastActivity    time.Time
	lastPingSent    time.Time
	unansweredPings int
}

// NewConnectionTiming starts the clock at now.
func NewConnectionTiming(now time.Time) *ConnectionTiming {
	return &ConnectionTiming{connectAt: now, lastActivity: now}
}

// Touch records inbound activity (including PONG), resetting the
// unanswered-ping counter.
func (t *ConnectionTiming) Touch(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActivity = now
	t.unansweredPings = 0
}

// RecordPingSent marks that a PING was just emitted.
func (t *ConnectionTiming) RecordPingSent(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastPingSent = now
	t.unansweredPings++
}

// ShouldSendPing reports whether the connection has been idle longer than
// pingFrequency.
func (t *ConnectionTiming) ShouldSendPing(now time.Time, pingFrequency time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return now.Sub(t.lastActivity) > pingFrequency
}

// IsTimedOut reports whether the connection has been idle longer than
// connectionTimeout.
func (t *ConnectionTiming) IsTimedOut(now time.Time, connectionTimeout time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return now.Sub(t.lastActivity) > connectionTimeout
}

// UnansweredPings reports the number of PINGs sent since the last inbound
// activity.
func (t *ConnectionTiming) UnansweredPings() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unansweredPings
}

// ConnectAt reports when the connection was accepted.
func (t *ConnectionTiming) ConnectAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectAt
}
