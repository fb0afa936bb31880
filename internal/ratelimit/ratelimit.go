// Package ratelimit implements the per-user sliding-window message flood
// protection applied post-registration (spec §4.14).
package ratelimit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Window is a sliding-window limit for one command class.
type Window struct {
	Limit  int
	Period time.Duration
}

// Config groups the default windows per command class (spec gives
// PRIVMSG/NOTICE 10/10s, JOIN/PART 5/30s, NICK 2/60s, TOPIC 3/60s).
type Config struct {
	Windows map[string]Window // keyed by command class, e.g. "message", "join", "nick", "topic"
}

type bucket struct {
	mu    sync.Mutex
	stamps map[string][]time.Time
}

// Limiter tracks sliding windows per user per command class.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[uuid.UUID]*bucket
}

// New constructs a Limiter from cfg.
func New(cfg Config) *Limiter {
	return &Limiter{cfg: cfg, buckets: make(map[uuid.UUID]*bucket)}
}

func (l *Limiter) bucketFor(id uuid.UUID) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[id]
	if !ok {
		b = &bucket{stamps: make(map[string][]time.Time)}
		l.buckets[id] = b
	}
	return b
}

// Allow checks and records an event for the given command class at now.
// Operators should be checked for bypass by the caller before invoking
// Allow (spec: "Operators bypass or receive relaxed limits").
func (l *Limiter) Allow(id uuid.UUID, class string, now time.Time) bool {
	w, ok := l.cfg.Windows[class]
	if !ok {
		return true
	}
	b := l.bucketFor(id)
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := now.Add(-w.Period)
	kept := b.stamps[class][:0]
	for _, ts := range b.stamps[class] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= w.Limit {
		b.stamps[class] = kept
		return false
	}
	b.stamps[class] = append(kept, now)
	return true
}

// Forget drops all state for id, called on disconnect.
func (l *Limiter) Forget(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, id)
}

// DefaultConfig returns the windows named explicitly in spec §4.14.
func DefaultConfig() Config {
	return Config{Windows: map[string]Window{
		"message": {Limit: 10, Period: 10 * time.Second},
		"join":    {Limit: 5, Period: 30 * time.Second},
		"nick":    {Limit: 2, Period: 60 * time.Second},
		"topic":   {Limit: 3, Period: 60 * time.Second},
	}}
}
