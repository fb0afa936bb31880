package peering

import (
	"strings"
	"time"
)

// CollisionOutcome names which side of a nick collision is killed.
type CollisionOutcome int

const (
	KillRemote CollisionOutcome = iota
	KillLocal
	KillBoth
)

// ResolveNickCollision implements spec §4.11's nick-collision resolution:
// older registered_at wins; on an exact tie, the lexicographically lower
// server name wins; if still tied (same server, identical timestamp),
// both are killed.
func ResolveNickCollision(localRegisteredAt, remoteRegisteredAt time.Time, localServer, remoteServer string) CollisionOutcome {
	switch {
	case localRegisteredAt.Before(remoteRegisteredAt):
		return KillRemote
	case remoteRegisteredAt.Before(localRegisteredAt):
		return KillLocal
	}
	switch strings.Compare(localServer, remoteServer) {
	case -1:
		return KillRemote
	case 1:
		return KillLocal
	default:
		return KillBoth
	}
}

// CollisionKillReason is the standard reason text used on the losing
// side(s), containing the phrase spec.md's scenario S5 checks for.
const CollisionKillReason = "Nick collision (older nick wins)"
