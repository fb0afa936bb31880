package class

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignAndAcceptanceCaps(t *testing.T) {
	classes := map[string]*Class{
		"users": {Name: "users", MaxClients: 1, MaxConnectionsPerIP: 5, MaxConnectionsPerHost: 5},
	}
	blocks := []*AllowBlock{{HostPatterns: []string{"*"}, ClassName: "users"}}
	tr := NewTracker(classes, blocks, "users")

	cls, block, err := tr.Assign("host1", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "users", cls.Name)

	_, _, err = tr.Assign("host2", "10.0.0.2")
	assert.Error(t, err, "class should be full")

	tr.Release(cls, block, "host1", "10.0.0.1")
	_, _, err = tr.Assign("host2", "10.0.0.2")
	assert.NoError(t, err)
}

func TestAssignDeniesWhenNoBlockMatches(t *testing.T) {
	classes := map[string]*Class{"users": {Name: "users"}}
	blocks := []*AllowBlock{{HostPatterns: []string{"*.example.com"}, ClassName: "users"}}
	tr := NewTracker(classes, blocks, "users")
	_, _, err := tr.Assign("attacker.evil.net", "10.0.0.9")
	assert.Error(t, err)
}

func TestThrottleEscalation(t *testing.T) {
	cfg := ThrottleConfig{
		MaxConnectionsPerIP: 3,
		TimeWindow:          60 * time.Second,
		InitialThrottle:     10 * time.Second,
		StageFactor:         10,
		MaxStages:           3,
	}
	th := NewThrottle(cfg)
	base := time.Unix(1000, 0)

	for i := 0; i < 3; i++ {
		assert.True(t, th.Allow("192.0.2.1", base.Add(time.Duration(i)*time.Second)))
	}
	assert.False(t, th.Allow("192.0.2.1", base.Add(4*time.Second)))
	assert.Equal(t, 1, th.Stage("192.0.2.1"))

	after := base.Add(4*time.Second + 10*time.Second + time.Second)
	for i := 0; i < 3; i++ {
		assert.True(t, th.Allow("192.0.2.1", after.Add(time.Duration(i)*time.Second)))
	}
	assert.False(t, th.Allow("192.0.2.1", after.Add(4*time.Second)))
	assert.Equal(t, 2, th.Stage("192.0.2.1"))
}

func TestThrottleStageCapped(t *testing.T) {
	cfg := ThrottleConfig{MaxConnectionsPerIP: 1, TimeWindow: time.Second, InitialThrottle: time.Second, StageFactor: 10, MaxStages: 2}
	th := NewThrottle(cfg)
	now := time.Unix(0, 0)
	for i := 0; i < 10; i++ {
		th.Allow("10.0.0.1", now)
		now = now.Add(2 * time.Second)
	}
	assert.LessOrEqual(t, th.Stage("10.0.0.1"), 2)
}
