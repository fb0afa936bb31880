package peering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaescob/go-ircd/internal/config"
	"github.com/eaescob/go-ircd/internal/store"
	"github.com/eaescob/go-ircd/internal/wire"
)

func recordingAudit() (AuditFunc, func() []string) {
	var kinds []string
	return func(kind, actor, target, ip, method, reason string, meta map[string]string) {
		kinds = append(kinds, kind)
	}, func() []string { return kinds }
}

func TestAuthenticateIncomingSuccess(t *testing.T) {
	emit, kinds := recordingAudit()
	la := NewLinkAuthenticator([]config.LinkEntry{{ServerName: "b.example.net", Password: "s3cret"}}, emit)
	err := la.AuthenticateIncoming("b.example.net", "s3cret", "10.0.0.2")
	require.NoError(t, err)
	assert.Contains(t, kinds(), "LinkEstablished")
}

func TestAuthenticateIncomingUnknownServer(t *testing.T) {
	emit, kinds := recordingAudit()
	la := NewLinkAuthenticator(nil, emit)
	err := la.AuthenticateIncoming("ghost.example.net", "whatever", "10.0.0.2")
	assert.ErrorIs(t, err, ErrNoSuchLink)
	assert.Contains(t, kinds(), "AuthFailure")
}

func TestAuthenticateIncomingWrongPassword(t *testing.T) {
	emit, kinds := recordingAudit()
	la := NewLinkAuthenticator([]config.LinkEntry{{ServerName: "b.example.net", Password: "s3cret"}}, emit)
	err := la.AuthenticateIncoming("b.example.net", "wrong", "10.0.0.2")
	assert.ErrorIs(t, err, ErrLinkPasswordWrong)
	assert.Contains(t, kinds(), "AuthFailure")
}

func TestParseIncomingHandshake(t *testing.T) {
	pass, err := wire.Parse("PASS s3cret TS 1")
	require.NoError(t, err)
	server, err := wire.Parse("SERVER b.example.net 1 :test link")
	require.NoError(t, err)
	name, password, err := ParseIncomingHandshake(pass, server)
	require.NoError(t, err)
	assert.Equal(t, "b.example.net", name)
	assert.Equal(t, "s3cret", password)
}

func operWithFlags(flags store.OperFlags) *store.User {
	return &store.User{Nick: "op", IsOperator: true, OperFlags: flags, State: store.StateActive}
}

func TestCheckSquitRequiresFlag(t *testing.T) {
	emit, _ := recordingAudit()
	a := NewAuthorizer(emit)
	err := a.CheckSquit(operWithFlags(0), "c.example.net", "a.example.net", "b.example.net", 5, "", "10.0.0.1")
	assert.Error(t, err)
}

func TestCheckSquitRejectsOwnServer(t *testing.T) {
	emit, _ := recordingAudit()
	a := NewAuthorizer(emit)
	err := a.CheckSquit(operWithFlags(store.FlagSquit|store.FlagGlobalOper), "a.example.net", "a.example.net", "b.example.net", 5, "", "10.0.0.1")
	assert.Error(t, err)
}

func TestCheckSquitLocalOperCannotTargetNonAdjacent(t *testing.T) {
	emit, _ := recordingAudit()
	a := NewAuthorizer(emit)
	err := a.CheckSquit(operWithFlags(store.FlagSquit|store.FlagLocalOper), "c.example.net", "a.example.net", "b.example.net", 5, "", "10.0.0.1")
	assert.Error(t, err)
}

func TestCheckSquitRequiresConfirmOverThreshold(t *testing.T) {
	emit, _ := recordingAudit()
	a := NewAuthorizer(emit)
	actor := operWithFlags(store.FlagSquit | store.FlagGlobalOper)
	err := a.CheckSquit(actor, "b.example.net", "a.example.net", "b.example.net", 150, "", "10.0.0.1")
	assert.Error(t, err)
	err = a.CheckSquit(actor, "b.example.net", "a.example.net", "b.example.net", 150, "confirm-token", "10.0.0.1")
	assert.NoError(t, err)
}

func TestCheckConnectLocalVsRemote(t *testing.T) {
	emit, _ := recordingAudit()
	a := NewAuthorizer(emit)
	assert.Error(t, a.CheckConnect(operWithFlags(0), false, "10.0.0.1"))
	assert.NoError(t, a.CheckConnect(operWithFlags(store.FlagLocalConnect), false, "10.0.0.1"))
	assert.Error(t, a.CheckConnect(operWithFlags(store.FlagLocalConnect), true, "10.0.0.1"))
	assert.NoError(t, a.CheckConnect(operWithFlags(store.FlagRemoteConnect), true, "10.0.0.1"))
}

func TestCheckKillLocalVsGlobal(t *testing.T) {
	emit, _ := recordingAudit()
	a := NewAuthorizer(emit)
	assert.NoError(t, a.CheckKill(operWithFlags(store.FlagLocalOper), false, "victim", "10.0.0.1"))
	assert.Error(t, a.CheckKill(operWithFlags(store.FlagLocalOper), true, "victim", "10.0.0.1"))
	assert.NoError(t, a.CheckKill(operWithFlags(store.FlagGlobalOper), true, "victim", "10.0.0.1"))
}
