// Package buffer implements the per-connection bounded send/receive queues
// and the connection timing record used for ping scheduling and idle
// timeout detection (spec §4.2).
package buffer

import (
	"bytes"
	"sync"
)

// SendQueue is an append-only FIFO of serialized outbound messages with a
// byte cap. On overflow the newest message is dropped (not the oldest) and
// a per-connection counter increments.
type SendQueue struct {
	mu      sync.Mutex
	maxSize int
	size    int
	items   [][]byte
	dropped uint64
}

// NewSendQueue creates a SendQueue capped at maxSizeBytes.
func NewSendQueue(maxSizeBytes int) *SendQueue {
	return &SendQueue{maxSize: maxSizeBytes}
}

// Push appends msg unless doing so would exceed the byte cap, in which
// case msg is dropped and Dropped() increments. Returns true if enqueued.
func (q *SendQueue) Push(msg []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size+len(msg) > q.maxSize {
		q.dropped++
		return false
	}
	q.items = append(q.items, msg)
	q.size += len(msg)
	return true
}

// Pop removes and returns the oldest queued message, or nil if empty.
func (q *SendQueue) Pop() []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	msg := q.items[0]
	q.items = q.items[1:]
	q.size -= len(msg)
	return msg
}

// Drain removes and returns all queued messages in order.
func (q *SendQueue) Drain() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	q.size = 0
	return out
}

// Len reports the current byte size of all queued messages.
func (q *SendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Dropped reports the monotonic count of messages dropped for overflow.
func (q *SendQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// RecvQueue is a byte buffer with a cap used to accumulate partial reads
// between CR-LF boundaries.
type RecvQueue struct {
	mu      sync.Mutex
	maxSize int
	buf     bytes.Buffer
	dropped uint64
}

// NewRecvQueue creates a RecvQueue capped at maxSizeBytes.
func NewRecvQueue(maxSizeBytes int) *RecvQueue {
	return &RecvQueue{maxSize: maxSizeBytes}
}

// Append adds data to the buffer. If the result would exceed the cap, the
// excess is dropped and the buffer is truncated back to the last complete
// CR-LF boundary, or cleared entirely if no complete line is present.
func (q *RecvQueue) Append(data []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.buf.Len()+len(data) <= q.maxSize {
		q.buf.Write(data)
		return
	}

	dropped := q.buf.Len() + len(data) - q.maxSize
	q.dropped += uint64(dropped)

	combined := append(append([]byte(nil), q.buf.Bytes()...), data...)
	if len(combined) > q.maxSize {
		combined = combined[:q.maxSize]
	}
	if idx := lastCompleteLineEnd(combined); idx >= 0 {
		combined = combined[:idx]
	} else {
		combined = nil
	}
	q.buf.Reset()
	q.buf.Write(combined)
}

// lastCompleteLineEnd returns the index one past the last "\r\n" found in
// b, or -1 if none is present.
func lastCompleteLineEnd(b []byte) int {
	idx := bytes.LastIndex(b, []byte("\r\n"))
	if idx < 0 {
		return -1
	}
	return idx + 2
}

// Lines extracts and removes all complete CR-LF terminated lines currently
// buffered, returning them without their terminator. Any trailing partial
// line is retained for the next Append.
func (q *RecvQueue) Lines() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var lines []string
	for {
		b := q.buf.Bytes()
		idx := bytes.Index(b, []byte("\r\n"))
		if idx < 0 {
			break
		}
		lines = append(lines, string(b[:idx]))
		rest := append([]byte(nil), b[idx+2:]...)
		q.buf.Reset()
		q.buf.Write(rest)
	}
	return lines
}

// Len reports the number of buffered, unconsumed bytes.
func (q *RecvQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.Len()
}

// Dropped reports the monotonic count of bytes dropped for overflow.
func (q *RecvQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
