package peering

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaescob/go-ircd/internal/wire"
)

func TestUserBurstRoundTrip(t *testing.T) {
	entry := UserBurstEntry{
		Nick: "carol", Username: "c", Host: "host.example.com", Server: "b.example.net",
		UUID: uuid.New(), RegisteredAt: time.Unix(1700000000, 0), Modes: "+i",
		Channels: []string{"#a", "#b"}, IsOperator: true, Flags: 3, RealName: "Carol Example",
	}
	raw := EncodeUserBurst(entry)
	m, err := wire.Parse(string(raw[:len(raw)-2]))
	require.NoError(t, err)
	decoded, err := DecodeUserBurst(m)
	require.NoError(t, err)
	assert.Equal(t, entry.Nick, decoded.Nick)
	assert.Equal(t, entry.UUID, decoded.UUID)
	assert.Equal(t, entry.Channels, decoded.Channels)
	assert.Equal(t, entry.RealName, decoded.RealName)
}

func TestChannelBurstRoundTrip(t *testing.T) {
	entry := ChannelBurstEntry{Name: "#dev", CreatedAt: time.Unix(1000, 0), Topic: "hello world", Modes: "+t", Members: []string{"@alice", "bob"}}
	raw := EncodeChannelBurst(entry)
	m, err := wire.Parse(string(raw[:len(raw)-2]))
	require.NoError(t, err)
	decoded, err := DecodeChannelBurst(m)
	require.NoError(t, err)
	assert.Equal(t, entry.Name, decoded.Name)
	assert.Equal(t, entry.CreatedAt.Unix(), decoded.CreatedAt.Unix())
	assert.Equal(t, entry.Members, decoded.Members)
	assert.Equal(t, entry.Topic, decoded.Topic)
}

func TestResolveNickCollisionOlderWins(t *testing.T) {
	t1 := time.Unix(1000, 0)
	t2 := t1.Add(5 * time.Second)
	outcome := ResolveNickCollision(t1, t2, "a.example.net", "b.example.net")
	assert.Equal(t, KillRemote, outcome)
}

func TestResolveNickCollisionTieBreaksOnServerName(t *testing.T) {
	t1 := time.Unix(1000, 0)
	outcome := ResolveNickCollision(t1, t1, "b.example.net", "a.example.net")
	assert.Equal(t, KillLocal, outcome)
}

func TestResolveNickCollisionFullTieKillsBoth(t *testing.T) {
	t1 := time.Unix(1000, 0)
	outcome := ResolveNickCollision(t1, t1, "same.example.net", "same.example.net")
	assert.Equal(t, KillBoth, outcome)
}

func TestClassifySplitSeverity(t *testing.T) {
	assert.Equal(t, SeverityMinor, ClassifySplitSeverity(8, 10))
	assert.Equal(t, SeverityMajor, ClassifySplitSeverity(5, 10))
	assert.Equal(t, SeverityCritical, ClassifySplitSeverity(2, 10))
}

func TestReconnectBackoffDoublesAndCaps(t *testing.T) {
	r := NewReconnectState(time.Second, 10*time.Second)
	now := time.Unix(0, 0)
	assert.Equal(t, time.Second, r.NextDelay(now))
	assert.Equal(t, 2*time.Second, r.NextDelay(now))
	assert.Equal(t, 4*time.Second, r.NextDelay(now))
	assert.Equal(t, 8*time.Second, r.NextDelay(now))
	assert.Equal(t, 10*time.Second, r.NextDelay(now)) // capped
	r.ResetOnSuccess()
	assert.Equal(t, time.Second, r.NextDelay(now))
}
