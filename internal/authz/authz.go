// Package authz implements the operator authorization model: the flag
// bitset, the check_operator_action gate with audit emission, and the OPER
// command's password verification and internal-only privilege grant
// (spec §4.7).
package authz

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/eaescob/go-ircd/internal/store"
	"github.com/eaescob/go-ircd/internal/wire"
)

// OperatorEntry is a configured operator account (network.operators in
// spec §6), carrying a hashed password and hostmask restriction.
type OperatorEntry struct {
	Name           string
	PasswordHash   string // argon2id-encoded, bcrypt-prefixed, or hex sha256 (legacy)
	HostMask       string
	Flags          store.OperFlags
}

// AuditFunc is the hook the Authorization Model uses to emit audit events;
// internal/audit implements this without authz importing it, avoiding an
// import cycle.
type AuditFunc func(kind, actor, target, ip, method, reason string, meta map[string]string)

// Model gates privileged actions and runs the OPER flow.
type Model struct {
	operators map[string]*OperatorEntry
	emit      AuditFunc
}

// New constructs a Model over the given configured operator entries.
func New(entries []*OperatorEntry, emit AuditFunc) *Model {
	m := &Model{operators: make(map[string]*OperatorEntry), emit: emit}
	for _, e := range entries {
		m.operators[e.Name] = e
	}
	return m
}

// Replace atomically swaps the operator table, for rehash.
func (m *Model) Replace(entries []*OperatorEntry) {
	ops := make(map[string]*OperatorEntry, len(entries))
	for _, e := range entries {
		ops[e.Name] = e
	}
	m.operators = ops
}

var (
	ErrNoSuchOperator   = errors.New("authz: no such operator entry")
	ErrHostMaskMismatch = errors.New("authz: hostmask mismatch")
	ErrPasswordMismatch = errors.New("authz: password mismatch")
)

// Authenticate runs the OPER command flow: look up the named operator
// entry, verify the connecting host against its mask, and verify the
// password with a constant-time comparison. It does not itself mutate the
// user; callers use GrantOperatorPrivileges on success.
func (m *Model) Authenticate(name, password, host string) (store.OperFlags, error) {
	entry, ok := m.operators[name]
	if !ok {
		m.audit("OperAuthFailure", name, "", host, "OPER", "generic failure", nil)
		return 0, ErrNoSuchOperator
	}
	if entry.HostMask != "" && !wire.MaskMatches(entry.HostMask, host) {
		m.audit("OperAuthFailure", name, "", host, "OPER", "generic failure", nil)
		return 0, ErrHostMaskMismatch
	}
	if !verifyPassword(entry.PasswordHash, password) {
		m.audit("OperAuthFailure", name, "", host, "OPER", "generic failure", nil)
		return 0, ErrPasswordMismatch
	}
	m.audit("OperAuth", name, "", host, "OPER", "", nil)
	return entry.Flags, nil
}

// GrantOperatorPrivileges is the internal-only path that sets +o/+O on a
// user. It is never reachable from the MODE command handler; only the OPER
// flow calls it (spec §3, §4.7).
func (m *Model) GrantOperatorPrivileges(u *store.User, flags store.OperFlags) {
	u.OperFlags = flags
	u.IsOperator = true
	if u.Modes == nil {
		u.Modes = make(map[byte]bool)
	}
	u.Modes['o'] = true
}

// ClearOperatorStatus removes operator flags, used on disconnect, nick
// cancellation, server split, and any state reset.
func (m *Model) ClearOperatorStatus(u *store.User) {
	u.OperFlags = 0
	u.IsOperator = false
	if u.Modes != nil {
		delete(u.Modes, 'o')
		delete(u.Modes, 'O')
	}
}

// CheckOperatorAction is the single gate every privileged command routes
// through. It re-verifies the user is registered/still operator, checks
// the required flag, and emits AuthzSuccess/AuthzFailure.
func (m *Model) CheckOperatorAction(u *store.User, required store.OperFlags, action, ip string) bool {
	if u == nil || u.State != store.StateActive || !u.IsOperator {
		m.audit("AuthzFailure", userActor(u), "", ip, action, "not an active operator", nil)
		return false
	}
	if !u.OperFlags.Has(required) {
		m.audit("AuthzFailure", userActor(u), "", ip, action, "missing required flag", nil)
		return false
	}
	m.audit("AuthzSuccess", userActor(u), "", ip, action, "", nil)
	return true
}

func userActor(u *store.User) string {
	if u == nil {
		return ""
	}
	return u.Nick
}

func (m *Model) audit(kind, actor, target, ip, method, reason string, meta map[string]string) {
	if m.emit != nil {
		m.emit(kind, actor, target, ip, method, reason, meta)
	}
}

// verifyPassword recognizes argon2id-encoded hashes (reference scheme),
// bcrypt hashes, and legacy hex-encoded SHA-256 digests, all compared in
// constant time.
func verifyPassword(stored, candidate string) bool {
	switch {
	case len(stored) > 9 && stored[:9] == "$argon2id":
		ok, _ := verifyArgon2id(stored, candidate)
		return ok
	case len(stored) > 4 && stored[:4] == "$2a$", len(stored) > 4 && stored[:4] == "$2b$":
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
	default:
		sum := sha256.Sum256([]byte(candidate))
		return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(stored)) == 1
	}
}

// HashPasswordArgon2id produces the reference password hash format used
// for newly configured operator entries.
func HashPasswordArgon2id(password string, salt []byte) string {
	key := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return "$argon2id$" + hex.EncodeToString(salt) + "$" + hex.EncodeToString(key)
}

func verifyArgon2id(stored, candidate string) (bool, error) {
	// format: $argon2id$<hexsalt>$<hexkey>
	parts := splitN(stored, '$', 4)
	if len(parts) != 4 {
		return false, errors.New("authz: malformed argon2id hash")
	}
	salt, err := hex.DecodeString(parts[2])
	if err != nil {
		return false, err
	}
	want, err := hex.DecodeString(parts[3])
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(candidate), salt, 1, 64*1024, 4, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func splitN(s string, sep byte, n int) []string {
	var out []string
	start := 0
	for i := 0; i < len(s) && len(out) < n-1; i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
