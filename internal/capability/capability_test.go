package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiationStateMachine(t *testing.T) {
	n := NewNegotiation()
	assert.Equal(t, Unnegotiated, n.CurrentState())
	assert.False(t, n.AwaitingEnd())

	n.BeginListing()
	assert.Equal(t, Listing, n.CurrentState())
	assert.True(t, n.AwaitingEnd())

	n.BeginRequesting()
	assert.Equal(t, Requesting, n.CurrentState())

	n.Ack([]string{"server-time", "batch"})
	assert.True(t, n.HasCapability("server-time"))

	n.End()
	assert.Equal(t, Done, n.CurrentState())
	assert.False(t, n.AwaitingEnd())
}

func TestRegistryAdvertisedCapabilities(t *testing.T) {
	r := NewRegistry()
	r.RegisterCapabilityExtension(stubCapExt{names: []string{"sasl", "multi-prefix"}})
	caps := r.AdvertisedCapabilities()
	assert.ElementsMatch(t, []string{"sasl", "multi-prefix"}, caps)
}

type stubCapExt struct{ names []string }

func (s stubCapExt) Names() []string                  { return s.names }
func (s stubCapExt) OnEnable(connID, name string)     {}
func (s stubCapExt) OnDisable(connID, name string)    {}
