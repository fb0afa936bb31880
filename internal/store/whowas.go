package store

import (
	"time"

	"github.com/eaescob/go-ircd/internal/wire"
)

// AddToHistory records a departed user's snapshot, capped at the
// configured per-nick depth.
func (s *Store) AddToHistory(u *User, now time.Time) {
	key := wire.Casefold(u.Nick)
	entry := &WhowasEntry{
		Nick: u.Nick, Username: u.Username, Host: u.Host,
		RealName: u.RealName, Server: u.Server, DisconnectedAt: now,
	}
	s.whowasMu.Lock()
	defer s.whowasMu.Unlock()
	list := append([]*WhowasEntry{entry}, s.whowas[key]...)
	if s.cfg.WhowasDepth > 0 && len(list) > s.cfg.WhowasDepth {
		list = list[:s.cfg.WhowasDepth]
	}
	s.whowas[key] = list
}

// SearchHistory returns up to limit entries for nick, newest first.
func (s *Store) SearchHistory(nick string, limit int) []*WhowasEntry {
	key := wire.Casefold(nick)
	s.whowasMu.Lock()
	defer s.whowasMu.Unlock()
	list := s.whowas[key]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]*WhowasEntry, len(list))
	copy(out, list)
	return out
}

// ExpireHistory drops entries older than the configured retention age.
func (s *Store) ExpireHistory(now time.Time) {
	if s.cfg.WhowasRetention <= 0 {
		return
	}
	s.whowasMu.Lock()
	defer s.whowasMu.Unlock()
	for key, list := range s.whowas {
		kept := list[:0]
		for _, e := range list {
			if now.Sub(e.DisconnectedAt) <= s.cfg.WhowasRetention {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(s.whowas, key)
		} else {
			s.whowas[key] = kept
		}
	}
}
