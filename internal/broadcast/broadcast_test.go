package broadcast

import (
	"bytes"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeRecipient struct {
	id    uuid.UUID
	caps  map[string]bool
	mu    sync.Mutex
	recvd [][]byte
	full  bool
	drops *int64
}

func (f *fakeRecipient) ID() uuid.UUID                   { return f.id }
func (f *fakeRecipient) HasCapability(name string) bool  { return f.caps[name] }
func (f *fakeRecipient) WriteSendQ(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		if f.drops != nil {
			atomic.AddInt64(f.drops, 1)
		}
		return false
	}
	f.recvd = append(f.recvd, payload)
	return true
}

type fakeResolver struct{ recipients []Recipient }

func (r *fakeResolver) Resolve(t Target) []Recipient { return r.recipients }

func TestDeliverFiltersOnCapability(t *testing.T) {
	r1 := &fakeRecipient{id: uuid.New(), caps: map[string]bool{"server-time": true}}
	r2 := &fakeRecipient{id: uuid.New(), caps: map[string]bool{}}
	resolver := &fakeResolver{recipients: []Recipient{r1, r2}}
	e := New(resolver, 10)

	ok := e.Enqueue(Item{Target: Target{Kind: TargetAllUsers}, Payload: []byte("msg"), Priority: Normal, RequiredCapability: "server-time"})
	assert.True(t, ok)

	go e.Run()
	time.Sleep(20 * time.Millisecond)
	e.Stop()

	// the single message is below every batch threshold, so it only
	// reaches r1's send queue once the batch window's tick flushes it.
	assert.Len(t, r1.recvd, 1)
	assert.Equal(t, []byte("msg"), r1.recvd[0])
	assert.Len(t, r2.recvd, 0)
}

func TestStarvationGuardServicesLowPriority(t *testing.T) {
	r := &fakeRecipient{id: uuid.New(), caps: map[string]bool{}}
	resolver := &fakeResolver{recipients: []Recipient{r}}
	e := New(resolver, 100)

	for i := 0; i < 20; i++ {
		e.Enqueue(Item{Target: Target{Kind: TargetAllUsers}, Payload: []byte("low"), Priority: Low})
	}
	for i := 0; i < 5; i++ {
		e.Enqueue(Item{Target: Target{Kind: TargetAllUsers}, Payload: []byte("crit"), Priority: Critical})
	}

	go e.Run()
	time.Sleep(50 * time.Millisecond)
	e.Stop()

	// the Batcher may coalesce several of these into fewer WriteSendQ
	// calls, so assert on total content delivered rather than call count.
	var got bytes.Buffer
	for _, payload := range r.recvd {
		got.Write(payload)
	}
	assert.Equal(t, 20, bytes.Count(got.Bytes(), []byte("low")))
	assert.Equal(t, 5, bytes.Count(got.Bytes(), []byte("crit")))
}

func TestBatcherFlushesOnMessageCount(t *testing.T) {
	b := NewBatcher()
	r := &fakeRecipient{id: uuid.New(), caps: map[string]bool{}}
	now := time.Now()
	for i := 0; i < batchMaxMessages; i++ {
		b.Add(r, []byte("x"), now)
	}
	assert.Len(t, r.recvd, 1)
	assert.Len(t, r.recvd[0], batchMaxMessages)
}

func TestBatcherFlushExpiredOnWindow(t *testing.T) {
	b := NewBatcher()
	r := &fakeRecipient{id: uuid.New(), caps: map[string]bool{}}
	start := time.Now()
	b.Add(r, []byte("a"), start)
	later := start.Add(20 * time.Millisecond)
	b.FlushExpired(later)
	assert.Len(t, r.recvd, 1)
	assert.Equal(t, []byte("a"), r.recvd[0])
}
