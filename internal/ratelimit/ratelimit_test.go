package ratelimit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSlidingWindowDeniesOverLimit(t *testing.T) {
	l := New(DefaultConfig())
	id := uuid.New()
	now := time.Unix(0, 0)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow(id, "message", now))
	}
	assert.False(t, l.Allow(id, "message", now))
}

func TestSlidingWindowRecoversAfterPeriod(t *testing.T) {
	l := New(DefaultConfig())
	id := uuid.New()
	now := time.Unix(0, 0)
	for i := 0; i < 10; i++ {
		l.Allow(id, "message", now)
	}
	later := now.Add(11 * time.Second)
	assert.True(t, l.Allow(id, "message", later))
}

func TestUnknownClassAlwaysAllowed(t *testing.T) {
	l := New(DefaultConfig())
	assert.True(t, l.Allow(uuid.New(), "unknown-class", time.Now()))
}
