package replies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaescob/go-ircd/internal/wire"
)

func TestRenderSubstitutesKnownFields(t *testing.T) {
	c := NewCatalogue()
	out := c.Render(wire.RPL_YOUREOPER, Fields{"server_name": "irc.example.net", "nick": "alice"})
	assert.Contains(t, out, "irc.example.net")
	assert.Contains(t, out, "alice")
}

func TestRenderLeavesMissingPlaceholderLiteral(t *testing.T) {
	c := NewCatalogue()
	require.NoError(t, c.Load(map[string]string{"custom": "hello {nick}, {missing}"}))
	out := c.Render("custom", Fields{"nick": "bob"})
	assert.Equal(t, "hello bob, {missing}", out)
}

func TestLoadRejectsOverlongTemplate(t *testing.T) {
	c := NewCatalogue()
	long := make([]byte, maxTemplateLength+1)
	for i := range long {
		long[i] = 'a'
	}
	err := c.Load(map[string]string{"bad": string(long)})
	assert.Error(t, err)
}

func TestLoadRejectsNestedRecursion(t *testing.T) {
	c := NewCatalogue()
	err := c.Load(map[string]string{"bad": "${${nick}}"})
	assert.Error(t, err)
}

func TestUnknownNumericFallsBackToBuiltinDefault(t *testing.T) {
	c := NewCatalogue()
	out := c.Render("999", Fields{})
	assert.Equal(t, "999", out)
}

func TestRehashReplacesAtomically(t *testing.T) {
	c := NewCatalogue()
	require.NoError(t, c.Load(map[string]string{wire.RPL_YOUREOPER: "custom {nick}"}))
	assert.Equal(t, "custom alice", c.Render(wire.RPL_YOUREOPER, Fields{"nick": "alice"}))
}
