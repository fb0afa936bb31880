package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/eaescob/go-ircd/internal/wire"
)

// Config parameterizes cache sizes/TTLs and WHOWAS retention (spec §6
// "database" config section).
type Config struct {
	NickCacheTTL      time.Duration
	NickCacheCapacity int
	ChannelCacheTTL   time.Duration
	DNSCacheTTL       time.Duration
	WhowasDepth       int
	WhowasRetention   time.Duration
}

// Store is the concurrent Database described in spec §4.5: sharded maps
// for users/channels/servers/whowas, plus integrated lookup caches whose
// coherence rules are enforced inline with every mutating operation.
type Store struct {
	cfg Config

	usersByID *shardedMap[*User]
	nickCache *ttlLRUCache[uuid.UUID] // casefolded nick -> user id

	channels *shardedMap[*Channel]
	memberCache *ttlCache[[]string] // channel name -> member nick list

	servers *shardedMap[*Server]

	dnsFwd *ttlCache[string]
	dnsRev *ttlCache[string]

	whowasMu sync.Mutex
	whowas   map[string][]*WhowasEntry // casefolded nick -> history, newest first
}

// New constructs a Store with the given cache configuration.
func New(cfg Config) *Store {
	return &Store{
		cfg:         cfg,
		usersByID:   newShardedMap[*User](),
		nickCache:   newTTLLRUCache[uuid.UUID](cfg.NickCacheTTL, cfg.NickCacheCapacity),
		channels:    newShardedMap[*Channel](),
		memberCache: newTTLCache[[]string](cfg.ChannelCacheTTL),
		servers:     newShardedMap[*Server](),
		dnsFwd:      newTTLCache[string](cfg.DNSCacheTTL),
		dnsRev:      newTTLCache[string](cfg.DNSCacheTTL),
		whowas:      make(map[string][]*WhowasEntry),
	}
}

// AddUser inserts a new user. Fails with ErrNicknameInUse if the nick is
// already taken, ErrInternal if the UUID already exists. The nick cache is
// populated in the same call as the main-map insert, satisfying the
// write-before-or-with-mutation coherence rule.
func (s *Store) AddUser(u *User, now time.Time) error {
	if _, ok := s.usersByID.Get(u.ID.String()); ok {
		return ErrInternal
	}
	key := u.NickKey()
	if existing, ok := s.nickCache.Get(key, now); ok {
		if live, ok2 := s.usersByID.Get(existing.String()); ok2 && live.State != StateRemoved {
			return ErrNicknameInUse
		}
	}
	// Authoritative duplicate check: the cache is only a hint, so every
	// call also scans the map itself.
	var collision bool
	s.usersByID.Range(func(_ string, other *User) bool {
		if other.State != StateRemoved && wire.Casefold(other.Nick) == key {
			collision = true
			return false
		}
		return true
	})
	if collision {
		return ErrNicknameInUse
	}

	s.usersByID.Set(u.ID.String(), u)
	s.nickCache.Set(key, u.ID, now)
	return nil
}

// RemoveUser deletes a user by id, invalidating the nick cache before the
// removal becomes visible to new readers.
func (s *Store) RemoveUser(id uuid.UUID, now time.Time) (*User, error) {
	u, ok := s.usersByID.Get(id.String())
	if !ok {
		return nil, ErrNotFound
	}
	s.nickCache.Delete(u.NickKey())
	s.usersByID.Delete(id.String())
	return u, nil
}

// UpdateUser applies mutator to the user with id under the shard's write
// lock, re-keying the nick cache if the nickname changed.
func (s *Store) UpdateUser(id uuid.UUID, now time.Time, mutator func(u *User) error) error {
	var u *User
	var oldKey string
	err := ErrNotFound
	s.usersByID.WithLock(id.String(), func(cur *User, ok bool) (*User, bool) {
		if ok {
			u, oldKey = cur, cur.NickKey()
			err = mutator(cur)
		}
		return cur, ok
	})
	if err != nil {
		return err
	}
	newKey := u.NickKey()
	if newKey != oldKey {
		s.nickCache.Delete(oldKey)
		s.nickCache.Set(newKey, u.ID, now)
	} else {
		s.nickCache.Set(newKey, u.ID, now)
	}
	return nil
}

// GetUserByID returns the user with the given id, if present.
func (s *Store) GetUserByID(id uuid.UUID) (*User, bool) {
	return s.usersByID.Get(id.String())
}

// GetUserByNick performs a case-insensitive lookup, consulting the nick
// cache first and falling back to a full scan on miss (cache is a hint,
// never load-bearing for correctness).
func (s *Store) GetUserByNick(nick string, now time.Time) (*User, bool) {
	key := wire.Casefold(nick)
	if id, ok := s.nickCache.Get(key, now); ok {
		if u, ok2 := s.usersByID.Get(id.String()); ok2 && u.State != StateRemoved {
			return u, true
		}
	}
	var found *User
	s.usersByID.Range(func(_ string, u *User) bool {
		if u.State != StateRemoved && wire.Casefold(u.Nick) == key {
			found = u
			return false
		}
		return true
	})
	if found != nil {
		s.nickCache.Set(key, found.ID, now)
		return found, true
	}
	return nil, false
}

// GetUsersByServer returns all users whose server-of-origin equals name,
// used during netsplit cleanup and burst.
func (s *Store) GetUsersByServer(name string) []*User {
	var out []*User
	s.usersByID.Range(func(_ string, u *User) bool {
		if u.Server == name {
			out = append(out, u)
		}
		return true
	})
	return out
}

// SearchUsers returns all users whose nick!user@host glob-matches pattern,
// for WHO/WHOIS.
func (s *Store) SearchUsers(pattern string) []*User {
	var out []*User
	s.usersByID.Range(func(_ string, u *User) bool {
		full := u.Nick + "!" + u.Username + "@" + u.Host
		if wire.MaskMatches(pattern, full) {
			out = append(out, u)
		}
		return true
	})
	return out
}

// NickCacheStats reports the nick-lookup cache's current size.
func (s *Store) NickCacheStats() CacheStats { return CacheStats{Size: s.nickCache.Len()} }
