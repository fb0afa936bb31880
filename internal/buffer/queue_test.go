package buffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSendQueueOverflowDropsNewestAndCounts(t *testing.T) {
	q := NewSendQueue(10)
	assert.True(t, q.Push([]byte("12345")))
	assert.True(t, q.Push([]byte("1234")))
	assert.False(t, q.Push([]byte("xx"))) // would exceed cap of 10
	assert.Equal(t, uint64(1), q.Dropped())
	assert.LessOrEqual(t, q.Len(), 10)
}

func TestSendQueueDroppedMonotonic(t *testing.T) {
	q := NewSendQueue(1)
	var last uint64
	for i := 0; i < 5; i++ {
		q.Push([]byte("too big"))
		d := q.Dropped()
		assert.GreaterOrEqual(t, d, last)
		last = d
	}
}

func TestRecvQueueTruncatesToLastCompleteLine(t *testing.T) {
	q := NewRecvQueue(20)
	q.Append([]byte("PING 1\r\nPING 2\r\nPARTIAL"))
	assert.LessOrEqual(t, q.Len(), 20)
	lines := q.Lines()
	assert.Equal(t, []string{"PING 1", "PING 2"}, lines)
}

func TestRecvQueueOverflowNoCompleteLineClears(t *testing.T) {
	q := NewRecvQueue(5)
	q.Append([]byte("nocrlfhere"))
	assert.Equal(t, 0, q.Len())
	assert.Greater(t, q.Dropped(), uint64(0))
}

func TestConnectionTimingPingAndTimeout(t *testing.T) {
	start := time.Unix(1000, 0)
	ct := NewConnectionTiming(start)
	assert.False(t, ct.ShouldSendPing(start, 30*time.Second))
	later := start.Add(40 * time.Second)
	assert.True(t, ct.ShouldSendPing(later, 30*time.Second))
	assert.False(t, ct.IsTimedOut(later, 60*time.Second))
	ct.Touch(later)
	assert.Equal(t, 0, ct.UnansweredPings())
}
