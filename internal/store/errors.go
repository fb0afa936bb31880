package store

import "errors"

// Sentinel errors for the Database's failure modes (spec §4.5, §7).
var (
	ErrNicknameInUse = errors.New("store: nickname in use")
	ErrInternal      = errors.New("store: internal error (duplicate id)")
	ErrNotFound      = errors.New("store: not found")
)
