package authz

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaescob/go-ircd/internal/store"
)

func recordingAudit() (AuditFunc, *[]string) {
	kinds := &[]string{}
	return func(kind, actor, target, ip, method, reason string, meta map[string]string) {
		*kinds = append(*kinds, kind)
	}, kinds
}

func TestOperAuthenticateSuccess(t *testing.T) {
	salt := []byte("0123456789abcdef")
	hash := HashPasswordArgon2id("correctpassword", salt)
	emit, kinds := recordingAudit()
	m := New([]*OperatorEntry{{Name: "admin", PasswordHash: hash, HostMask: "*", Flags: store.FlagGlobalOper}}, emit)

	flags, err := m.Authenticate("admin", "correctpassword", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, flags.Has(store.FlagGlobalOper))
	assert.Contains(t, *kinds, "OperAuth")
}

func TestOperAuthenticateWrongPassword(t *testing.T) {
	salt := []byte("0123456789abcdef")
	hash := HashPasswordArgon2id("correctpassword", salt)
	emit, kinds := recordingAudit()
	m := New([]*OperatorEntry{{Name: "admin", PasswordHash: hash, HostMask: "*"}}, emit)

	_, err := m.Authenticate("admin", "wrong", "1.2.3.4")
	assert.Error(t, err)
	assert.Contains(t, *kinds, "OperAuthFailure")
}

func TestGrantOperatorPrivilegesIsOnlyPath(t *testing.T) {
	emit, _ := recordingAudit()
	m := New(nil, emit)
	u := &store.User{ID: uuid.New(), Nick: "alice", State: store.StateActive, Modes: map[byte]bool{}}

	m.GrantOperatorPrivileges(u, store.FlagLocalOper)
	assert.True(t, u.IsOperator)
	assert.True(t, u.Modes['o'])

	m.ClearOperatorStatus(u)
	assert.False(t, u.IsOperator)
	assert.False(t, u.Modes['o'])
}

func TestCheckOperatorActionGate(t *testing.T) {
	emit, kinds := recordingAudit()
	m := New(nil, emit)
	u := &store.User{ID: uuid.New(), Nick: "alice", State: store.StateActive}
	m.GrantOperatorPrivileges(u, store.FlagLocalOper)

	assert.False(t, m.CheckOperatorAction(u, store.FlagSquit, "SQUIT", "1.2.3.4"))
	assert.True(t, m.CheckOperatorAction(u, store.FlagLocalOper, "STATS", "1.2.3.4"))
	assert.Contains(t, *kinds, "AuthzFailure")
	assert.Contains(t, *kinds, "AuthzSuccess")
}

func TestLegacySHA256Recognized(t *testing.T) {
	sum := sha256.Sum256([]byte("legacypassword"))
	hash := hex.EncodeToString(sum[:])
	emit, _ := recordingAudit()
	m := New([]*OperatorEntry{{Name: "admin", PasswordHash: hash, HostMask: "*"}}, emit)

	_, err := m.Authenticate("admin", "legacypassword", "1.2.3.4")
	assert.NoError(t, err)
}
