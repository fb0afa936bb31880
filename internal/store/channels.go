package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/eaescob/go-ircd/internal/wire"
)

func channelKey(name string) string { return wire.Casefold(name) }

// AddChannel inserts a new channel record. Returns false if a channel with
// that name already exists.
func (s *Store) AddChannel(c *Channel) bool {
	key := channelKey(c.Name)
	if _, ok := s.channels.Get(key); ok {
		return false
	}
	if c.Members == nil {
		c.Members = make(map[uuid.UUID]*Member)
	}
	s.channels.Set(key, c)
	s.memberCache.Invalidate(key)
	return true
}

// RemoveChannel deletes a channel by name.
func (s *Store) RemoveChannel(name string) {
	key := channelKey(name)
	s.channels.Delete(key)
	s.memberCache.Invalidate(key)
}

// GetChannel returns the channel by name, case-insensitively.
func (s *Store) GetChannel(name string) (*Channel, bool) {
	return s.channels.Get(channelKey(name))
}

// AddUserToChannel adds a membership and invalidates the member cache in
// the same call.
func (s *Store) AddUserToChannel(channelName string, m *Member) error {
	key := channelKey(channelName)
	ch, ok := s.channels.Get(key)
	if !ok {
		return ErrNotFound
	}
	ch.Members[m.UserID] = m
	s.memberCache.Invalidate(key)
	return nil
}

// RemoveUserFromChannel removes a membership; if the channel becomes empty
// and is not permanent (+P), it is destroyed (spec §3 Channel invariant).
func (s *Store) RemoveUserFromChannel(channelName string, userID uuid.UUID) (destroyed bool, err error) {
	key := channelKey(channelName)
	ch, ok := s.channels.Get(key)
	if !ok {
		return false, ErrNotFound
	}
	delete(ch.Members, userID)
	s.memberCache.Invalidate(key)
	if len(ch.Members) == 0 && !ch.IsPermanent() {
		s.channels.Delete(key)
		return true, nil
	}
	return false, nil
}

// RemoveUserFromAllChannels is used on QUIT/disconnect/KILL cleanup,
// returning the names of channels that were destroyed as a result.
func (s *Store) RemoveUserFromAllChannels(userID uuid.UUID) (destroyed []string, affected []string) {
	s.channels.Range(func(key string, ch *Channel) bool {
		if _, in := ch.Members[userID]; in {
			affected = append(affected, ch.Name)
			d, _ := s.RemoveUserFromChannel(ch.Name, userID)
			if d {
				destroyed = append(destroyed, ch.Name)
			}
		}
		return true
	})
	return destroyed, affected
}

// GetChannelUsers returns the member list, consulting (and populating) the
// member-name cache.
func (s *Store) GetChannelUsers(channelName string, now time.Time) ([]string, bool) {
	key := channelKey(channelName)
	if names, ok := s.memberCache.Get(key, now); ok {
		return names, true
	}
	ch, ok := s.channels.Get(key)
	if !ok {
		return nil, false
	}
	var names []string
	for id := range ch.Members {
		if u, ok := s.GetUserByID(id); ok {
			names = append(names, u.Nick)
		}
	}
	s.memberCache.Set(key, names, now)
	return names, true
}

// ListChannelNames returns every known channel's name, for LIST.
func (s *Store) ListChannelNames() []string {
	var names []string
	s.channels.Range(func(_ string, ch *Channel) bool {
		names = append(names, ch.Name)
		return true
	})
	return names
}

// GetUserChannels returns the names of every channel the user belongs to.
func (s *Store) GetUserChannels(userID uuid.UUID) []string {
	var names []string
	s.channels.Range(func(_ string, ch *Channel) bool {
		if _, ok := ch.Members[userID]; ok {
			names = append(names, ch.Name)
		}
		return true
	})
	return names
}

// MergeChannelBurst applies TS6-style resolution for a channel received
// over CBURST (spec §4.11 phase 3 / S6). If the channel is unknown it is
// created outright. If known, the older createdAt wins: its modes/topic
// stay authoritative and the other side's differing mode state is
// discarded; membership is always unioned. Equal timestamps merge modes
// from both sides.
func (s *Store) MergeChannelBurst(incoming *Channel) *Channel {
	key := channelKey(incoming.Name)
	existing, ok := s.channels.Get(key)
	if !ok {
		if incoming.Members == nil {
			incoming.Members = make(map[uuid.UUID]*Member)
		}
		s.channels.Set(key, incoming)
		s.memberCache.Invalidate(key)
		return incoming
	}

	switch {
	case existing.CreatedAt.Before(incoming.CreatedAt):
		// existing (older) is authoritative; union membership only.
		for id, m := range incoming.Members {
			if _, have := existing.Members[id]; !have {
				existing.Members[id] = m
			}
		}
	case incoming.CreatedAt.Before(existing.CreatedAt):
		// incoming is older: it becomes authoritative, union membership.
		for id, m := range existing.Members {
			if _, have := incoming.Members[id]; !have {
				incoming.Members[id] = m
			}
		}
		s.channels.Set(key, incoming)
		existing = incoming
	default:
		// equal timestamps: merge modes from both, union membership.
		for m := range incoming.Modes {
			existing.Modes[m] = true
		}
		for id, m := range incoming.Members {
			if _, have := existing.Members[id]; !have {
				existing.Members[id] = m
			}
		}
	}
	s.memberCache.Invalidate(key)
	return existing
}
