package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Batcher coalesces consecutive writes to the same recipient, flushing to
// the recipient's send queue when any of {50 messages, 10ms elapsed, 4096
// bytes} is reached (spec §4.6). One Batcher instance is shared by the
// Engine across recipients; each recipient gets its own accumulator.
type Batcher struct {
	mu    sync.Mutex
	accum map[uuid.UUID]*batchState
}

type batchState struct {
	recipient Recipient
	buf       []byte
	count     int
	openedAt  time.Time
}

// NewBatcher constructs an empty Batcher.
func NewBatcher() *Batcher {
	return &Batcher{accum: make(map[uuid.UUID]*batchState)}
}

// Add appends payload to recipient's pending batch, writing the
// accumulated buffer to the recipient's send queue once a threshold is
// reached.
func (b *Batcher) Add(recipient Recipient, payload []byte, now time.Time) {
	b.mu.Lock()
	id := recipient.ID()
	st, ok := b.accum[id]
	if !ok {
		st = &batchState{recipient: recipient, openedAt: now}
		b.accum[id] = st
	}
	st.buf = append(st.buf, payload...)
	st.count++

	if st.count >= batchMaxMessages || len(st.buf) >= batchMaxBytes || now.Sub(st.openedAt) >= batchMaxWindow {
		out, recipient := st.buf, st.recipient
		delete(b.accum, id)
		b.mu.Unlock()
		recipient.WriteSendQ(out)
		return
	}
	b.mu.Unlock()
}

// FlushExpired writes out every recipient's batch whose window has
// elapsed without reaching the message/byte threshold; intended to run
// off the same periodic tick that drives other timing tasks.
func (b *Batcher) FlushExpired(now time.Time) {
	b.mu.Lock()
	var due []*batchState
	for id, st := range b.accum {
		if now.Sub(st.openedAt) >= batchMaxWindow {
			due = append(due, st)
			delete(b.accum, id)
		}
	}
	b.mu.Unlock()
	for _, st := range due {
		st.recipient.WriteSendQ(st.buf)
	}
}

// FlushAll writes out every pending batch regardless of age, for a clean
// shutdown where queued-but-unflushed bytes would otherwise be lost.
func (b *Batcher) FlushAll() {
	b.mu.Lock()
	due := make([]*batchState, 0, len(b.accum))
	for id, st := range b.accum {
		due = append(due, st)
		delete(b.accum, id)
	}
	b.mu.Unlock()
	for _, st := range due {
		st.recipient.WriteSendQ(st.buf)
	}
}
