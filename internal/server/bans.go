package server

import (
	"sync"
	"time"

	"github.com/eaescob/go-ircd/internal/wire"
)

// BanEntry is a K-LINE (local) or G-LINE (network-wide) ban, matched
// against *!*@<ip> when a connection is accepted. Users who are already
// connected are not re-checked.
type BanEntry struct {
	Mask     string
	Reason   string
	SetBy    string
	SetAt    time.Time
	Duration time.Duration // zero means permanent
	Global   bool
}

func (b *BanEntry) expired(now time.Time) bool {
	return b.Duration > 0 && now.After(b.SetAt.Add(b.Duration))
}

// BanList tracks K-LINEs and G-LINEs and answers whether a given
// nick!user@host is currently banned.
type BanList struct {
	mu     sync.RWMutex
	klines map[string]*BanEntry
	glines map[string]*BanEntry
}

func NewBanList() *BanList {
	return &BanList{klines: make(map[string]*BanEntry), glines: make(map[string]*BanEntry)}
}

func (l *BanList) AddKline(e *BanEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.klines[e.Mask] = e
}

func (l *BanList) RemoveKline(mask string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.klines[mask]
	delete(l.klines, mask)
	return ok
}

func (l *BanList) AddGline(e *BanEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.glines[e.Mask] = e
}

func (l *BanList) RemoveGline(mask string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.glines[mask]
	delete(l.glines, mask)
	return ok
}

// Matches reports whether full (nick!user@host, or *!*@host pre-registration)
// matches any non-expired K-LINE or G-LINE, returning the matching entry.
func (l *BanList) Matches(full string, now time.Time) (*BanEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.klines {
		if !e.expired(now) && wire.MaskMatches(e.Mask, full) {
			return e, true
		}
	}
	for _, e := range l.glines {
		if !e.expired(now) && wire.MaskMatches(e.Mask, full) {
			return e, true
		}
	}
	return nil, false
}

func (l *BanList) Klines() []*BanEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*BanEntry, 0, len(l.klines))
	for _, e := range l.klines {
		out = append(out, e)
	}
	return out
}

func (l *BanList) Glines() []*BanEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*BanEntry, 0, len(l.glines))
	for _, e := range l.glines {
		out = append(out, e)
	}
	return out
}
