// Package broadcast implements the priority-queued fan-out engine: target
// resolution, strict-priority draining with a starvation guard, per
// recipient drop-not-block delivery, message batching, and capability
// filtering (spec §4.6).
package broadcast

import (
	"time"

	"github.com/google/uuid"
)

// Priority orders the four delivery queues.
type Priority int

const (
	Critical Priority = iota
	High
	Normal
	Low
	numPriorities
)

// TargetKind selects how a Target resolves to recipients.
type TargetKind int

const (
	TargetAllUsers TargetKind = iota
	TargetChannel
	TargetUserSet
	TargetOperatorsOnly
	TargetPattern
	TargetPeerServers
)

// Target names the recipients of an enqueued message.
type Target struct {
	Kind           TargetKind
	ChannelName    string
	UserIDs        []uuid.UUID
	Pattern        string
	ExceptServer   string // for TargetPeerServers
}

// Recipient abstracts a live connection that can accept a write, letting
// the engine stay decoupled from the concrete connection/user types in
// internal/server.
type Recipient interface {
	ID() uuid.UUID
	HasCapability(name string) bool
	WriteSendQ(payload []byte) (ok bool)
}

// RecipientResolver maps a Target to its live recipients; implemented by
// the Database-backed server in internal/server.
type RecipientResolver interface {
	Resolve(t Target) []Recipient
}

// Item is a single enqueued broadcast.
type Item struct {
	Target    Target
	Payload   []byte
	Priority  Priority
	RequiredCapability string // empty if none required
}

const (
	batchMaxMessages = 50
	batchMaxBytes    = 4096
	batchMaxWindow   = 10 * time.Millisecond
	lowPriorityDrainsPerCriticalPass = 4
)

// Engine is the priority-queued broadcast worker.
type Engine struct {
	queues   [numPriorities]chan Item
	resolver RecipientResolver
	batcher  *Batcher
	stop     chan struct{}
}

// New constructs an Engine bound to resolver, with per-queue depth cap.
func New(resolver RecipientResolver, queueDepth int) *Engine {
	e := &Engine{resolver: resolver, batcher: NewBatcher(), stop: make(chan struct{})}
	for p := range e.queues {
		e.queues[p] = make(chan Item, queueDepth)
	}
	return e
}

// Enqueue submits an item for delivery. If the priority's ring buffer is
// full, the item is dropped (this is the one blocking suspension point
// named in spec §5; here it is non-blocking and drops instead, since the
// caller must never stall on a slow broadcast target).
func (e *Engine) Enqueue(item Item) bool {
	select {
	case e.queues[item.Priority] <- item:
		return true
	default:
		return false
	}
}

// Stop halts the drain loop.
func (e *Engine) Stop() { close(e.stop) }

// Run drains the queues with strict priority and a starvation guard: after
// draining a Critical item, the worker may still service up to
// lowPriorityDrainsPerCriticalPass items from Normal/Low before returning
// to Critical, so low-priority traffic always makes progress.
func (e *Engine) Run() {
	lowBudget := 0
	flushTick := time.NewTicker(batchMaxWindow)
	defer flushTick.Stop()
	defer e.batcher.FlushAll()

	for {
		critical := e.queues[Critical]
		if lowBudget > 0 {
			critical = nil // hold Critical back until the Normal/Low budget is spent
		}
		select {
		case <-e.stop:
			return
		case item := <-critical:
			e.deliver(item)
			lowBudget = lowPriorityDrainsPerCriticalPass
			continue
		default:
		}

		select {
		case item := <-e.queues[High]:
			e.deliver(item)
			continue
		default:
		}

		if lowBudget > 0 {
			select {
			case item := <-e.queues[Normal]:
				e.deliver(item)
				lowBudget--
				continue
			case item := <-e.queues[Low]:
				e.deliver(item)
				lowBudget--
				continue
			default:
				lowBudget = 0
			}
		}

		select {
		case item := <-e.queues[Critical]:
			e.deliver(item)
			lowBudget = lowPriorityDrainsPerCriticalPass
		case item := <-e.queues[High]:
			e.deliver(item)
		case item := <-e.queues[Normal]:
			e.deliver(item)
		case item := <-e.queues[Low]:
			e.deliver(item)
		case now := <-flushTick.C:
			e.batcher.FlushExpired(now)
		case <-e.stop:
			return
		}
	}
}

// deliver resolves item's recipients and routes each payload through the
// Batcher rather than writing straight to the send queue, coalescing
// bursts of consecutive messages per spec §4.6.
func (e *Engine) deliver(item Item) {
	recipients := e.resolver.Resolve(item.Target)
	now := time.Now()
	for _, r := range recipients {
		if item.RequiredCapability != "" && !r.HasCapability(item.RequiredCapability) {
			continue
		}
		e.batcher.Add(r, item.Payload, now) // drop-not-block is the Recipient's contract, inherited from WriteSendQ
	}
}
