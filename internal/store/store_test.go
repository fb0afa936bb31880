package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore() *Store {
	return New(Config{NickCacheTTL: time.Minute, NickCacheCapacity: 1000, ChannelCacheTTL: time.Minute, DNSCacheTTL: time.Minute, WhowasDepth: 5})
}

func TestNicknameUniqueness(t *testing.T) {
	s := testStore()
	now := time.Now()
	u1 := &User{ID: uuid.New(), Nick: "Alice", State: StateActive}
	require.NoError(t, s.AddUser(u1, now))

	u2 := &User{ID: uuid.New(), Nick: "alice", State: StateActive} // casemapped collision
	err := s.AddUser(u2, now)
	assert.ErrorIs(t, err, ErrNicknameInUse)
}

func TestGetUserByNickCaseInsensitive(t *testing.T) {
	s := testStore()
	now := time.Now()
	u := &User{ID: uuid.New(), Nick: "Bob", State: StateActive}
	require.NoError(t, s.AddUser(u, now))
	found, ok := s.GetUserByNick("BOB", now)
	require.True(t, ok)
	assert.Equal(t, u.ID, found.ID)
}

func TestChannelDestroyedWhenEmpty(t *testing.T) {
	s := testStore()
	now := time.Now()
	ch := &Channel{Name: "#test", CreatedAt: now, Modes: map[byte]bool{}}
	require.True(t, s.AddChannel(ch))
	uid := uuid.New()
	require.NoError(t, s.AddUserToChannel("#test", &Member{UserID: uid}))

	destroyed, err := s.RemoveUserFromChannel("#test", uid)
	require.NoError(t, err)
	assert.True(t, destroyed)
	_, ok := s.GetChannel("#test")
	assert.False(t, ok)
}

func TestChannelPermanentSurvivesEmpty(t *testing.T) {
	s := testStore()
	now := time.Now()
	ch := &Channel{Name: "#perm", CreatedAt: now, Modes: map[byte]bool{'P': true}}
	require.True(t, s.AddChannel(ch))
	uid := uuid.New()
	require.NoError(t, s.AddUserToChannel("#perm", &Member{UserID: uid}))
	destroyed, err := s.RemoveUserFromChannel("#perm", uid)
	require.NoError(t, err)
	assert.False(t, destroyed)
}

func TestMergeChannelBurstOlderWins(t *testing.T) {
	s := testStore()
	t1 := time.Unix(1000, 0)
	t2 := t1.Add(60 * time.Second)

	local := &Channel{Name: "#dev", CreatedAt: t1, Topic: "alpha", Modes: map[byte]bool{'t': true}}
	require.True(t, s.AddChannel(local))

	incoming := &Channel{Name: "#dev", CreatedAt: t2, Topic: "beta", Modes: map[byte]bool{'m': true}, Members: map[uuid.UUID]*Member{uuid.New(): {}}}
	merged := s.MergeChannelBurst(incoming)

	assert.Equal(t, "alpha", merged.Topic)
	assert.True(t, merged.Modes['t'])
	assert.False(t, merged.Modes['m'])
	assert.Equal(t, t1, merged.CreatedAt)
}

func TestCacheCoherenceAfterNickChange(t *testing.T) {
	s := testStore()
	now := time.Now()
	u := &User{ID: uuid.New(), Nick: "old", State: StateActive}
	require.NoError(t, s.AddUser(u, now))

	err := s.UpdateUser(u.ID, now, func(u *User) error {
		u.Nick = "new"
		return nil
	})
	require.NoError(t, err)

	_, ok := s.GetUserByNick("old", now)
	assert.False(t, ok)
	found, ok := s.GetUserByNick("new", now)
	require.True(t, ok)
	assert.Equal(t, u.ID, found.ID)
}

func TestWhowasDepthCap(t *testing.T) {
	s := testStore()
	now := time.Now()
	for i := 0; i < 10; i++ {
		s.AddToHistory(&User{Nick: "gone"}, now)
	}
	entries := s.SearchHistory("gone", 0)
	assert.LessOrEqual(t, len(entries), 5)
}
