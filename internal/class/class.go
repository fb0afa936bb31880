// Package class implements connection classes, the allow-block matcher
// that assigns an incoming connection to a class, per-class/per-IP/per-host
// acceptance tracking, and the progressive per-IP throttle governor
// (spec §4.3, §4.4).
package class

import (
	"sync"
	"time"

	"github.com/eaescob/go-ircd/internal/wire"
)

// Class is a named tuple of connection resource limits and timings.
type Class struct {
	Name                 string
	MaxClients           int
	PingFrequency        time.Duration
	ConnectionTimeout    time.Duration
	MaxSendQBytes        int
	MaxRecvQBytes        int
	MaxConnectionsPerIP  int
	MaxConnectionsPerHost int
	DisableThrottling    bool
}

// AllowBlock maps a set of host/IP patterns (and an optional password) to
// a class name. First match wins.
type AllowBlock struct {
	HostPatterns []string
	CIDRs        []string
	Password     string
	ClassName    string
	MaxConnections int
}

// matches reports whether host (a bare hostname or dotted IP) satisfies
// this allow block's patterns.
func (b *AllowBlock) matches(host string) bool {
	for _, p := range b.HostPatterns {
		if wire.MaskMatches(p, host) {
			return true
		}
	}
	for _, c := range b.CIDRs {
		if wire.MaskMatches(c, host) {
			return true
		}
	}
	return false
}

// Tracker assigns incoming connections to classes via AllowBlocks and
// enforces per-class/per-block/per-IP/per-host acceptance caps.
type Tracker struct {
	mu           sync.RWMutex
	blocks       []*AllowBlock
	classes      map[string]*Class
	defaultClass string

	classCounts map[string]int
	blockCounts map[*AllowBlock]int
	ipCounts    map[string]int
	hostCounts  map[string]int
}

// NewTracker builds a Tracker from the given allow blocks and class table.
// defaultClass is used only if no allow blocks are configured at all; if
// blocks are configured but none match, the connection is denied.
func NewTracker(classes map[string]*Class, blocks []*AllowBlock, defaultClass string) *Tracker {
	return &Tracker{
		classes:      classes,
		blocks:       blocks,
		defaultClass: defaultClass,
		classCounts:  make(map[string]int),
		blockCounts:  make(map[*AllowBlock]int),
		ipCounts:     make(map[string]int),
		hostCounts:   make(map[string]int),
	}
}

// AssignmentError distinguishes "no matching allow block" from capacity
// denials so the caller can choose the right wire-level response.
type AssignmentError struct{ Reason string }

func (e *AssignmentError) Error() string { return "class: " + e.Reason }

// Assign finds the class for an incoming connection from host/ip, then
// performs the acceptance check (§4.3). On success it reserves the
// counters; the caller MUST call Release with the same host/ip/class
// exactly once when the connection closes.
func (t *Tracker) Assign(host, ip string) (*Class, *AllowBlock, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var block *AllowBlock
	var className string
	if len(t.blocks) == 0 {
		className = t.defaultClass
	} else {
		for _, b := range t.blocks {
			if b.matches(host) || b.matches(ip) {
				block = b
				className = b.ClassName
				break
			}
		}
		if className == "" {
			return nil, nil, &AssignmentError{Reason: "no allow block matched"}
		}
	}

	cls, ok := t.classes[className]
	if !ok {
		return nil, nil, &AssignmentError{Reason: "unknown class " + className}
	}

	if cls.MaxClients > 0 && t.classCounts[className] >= cls.MaxClients {
		return nil, nil, &AssignmentError{Reason: "class full"}
	}
	if block != nil && block.MaxConnections > 0 && t.blockCounts[block] >= block.MaxConnections {
		return nil, nil, &AssignmentError{Reason: "allow block connection cap reached"}
	}
	if cls.MaxConnectionsPerIP > 0 && t.ipCounts[ip] >= cls.MaxConnectionsPerIP {
		return nil, nil, &AssignmentError{Reason: "per-IP cap reached"}
	}
	if cls.MaxConnectionsPerHost > 0 && t.hostCounts[host] >= cls.MaxConnectionsPerHost {
		return nil, nil, &AssignmentError{Reason: "per-host cap reached"}
	}

	t.classCounts[className]++
	if block != nil {
		t.blockCounts[block]++
	}
	t.ipCounts[ip]++
	t.hostCounts[host]++

	return cls, block, nil
}

// Release decrements the counters reserved by a prior successful Assign.
// Safe to call concurrently with other Assign/Release calls; decrements
// exactly the counters it was given, exactly once.
func (t *Tracker) Release(cls *Class, block *AllowBlock, host, ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cls != nil {
		if t.classCounts[cls.Name] > 0 {
			t.classCounts[cls.Name]--
		}
	}
	if block != nil {
		if t.blockCounts[block] > 0 {
			t.blockCounts[block]--
		}
	}
	if t.ipCounts[ip] > 0 {
		t.ipCounts[ip]--
	}
	if t.hostCounts[host] > 0 {
		t.hostCounts[host]--
	}
}

// Replace atomically swaps the class table and allow-block list, for
// rehash. The counter maps are left as they are: class counts carry over by
// name, and counts for removed classes or replaced allow blocks stay in the
// maps until their connections Release them.
func (t *Tracker) Replace(classes map[string]*Class, blocks []*AllowBlock, defaultClass string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.classes = classes
	t.blocks = blocks
	t.defaultClass = defaultClass
}
