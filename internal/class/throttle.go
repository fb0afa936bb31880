package class

import (
	"math"
	"sync"
	"time"
)

// ThrottleConfig parameterizes the progressive per-IP connection governor.
type ThrottleConfig struct {
	MaxConnectionsPerIP  int
	TimeWindow           time.Duration
	InitialThrottle      time.Duration
	StageFactor          float64
	MaxStages            int
}

type ipState struct {
	attempts     []time.Time
	stage        int
	penaltyUntil time.Time
}

// Throttle implements the progressive per-IP throttle governor (spec §4.4).
type Throttle struct {
	mu    sync.Mutex
	cfg   ThrottleConfig
	state map[string]*ipState
}

// NewThrottle constructs a Throttle with the given configuration.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	return &Throttle{cfg: cfg, state: make(map[string]*ipState)}
}

// Allow records a connection attempt from ip at now and reports whether it
// is allowed. A denial advances the IP's stage by at most one per call and
// starts (or is already inside) a penalty window. Once a penalty window has
// passed, attempts made before its end no longer count toward the limit.
func (th *Throttle) Allow(ip string, now time.Time) bool {
	th.mu.Lock()
	defer th.mu.Unlock()

	st, ok := th.state[ip]
	if !ok {
		st = &ipState{}
		th.state[ip] = st
	}

	if now.Before(st.penaltyUntil) {
		return false
	}

	cutoff := now.Add(-th.cfg.TimeWindow)
	kept := st.attempts[:0]
	for _, ts := range st.attempts {
		if ts.After(cutoff) && !ts.Before(st.penaltyUntil) {
			kept = append(kept, ts)
		}
	}
	st.attempts = kept
	st.attempts = append(st.attempts, now)

	if len(st.attempts) <= th.cfg.MaxConnectionsPerIP {
		return true
	}

	if st.stage < th.cfg.MaxStages {
		st.stage++
	}
	penalty := th.penaltyFor(st.stage)
	st.penaltyUntil = now.Add(penalty)
	return false
}

// penaltyFor computes initial_throttle_seconds * stage_factor^(stage-1).
func (th *Throttle) penaltyFor(stage int) time.Duration {
	if stage <= 0 {
		return 0
	}
	mult := math.Pow(th.cfg.StageFactor, float64(stage-1))
	return time.Duration(float64(th.cfg.InitialThrottle) * mult)
}

// Stage reports the current throttle stage for ip (0 if never throttled).
func (th *Throttle) Stage(ip string) int {
	th.mu.Lock()
	defer th.mu.Unlock()
	if st, ok := th.state[ip]; ok {
		return st.stage
	}
	return 0
}

// Expire removes entries whose attempts and penalty window have both
// elapsed, bounding memory growth. Intended to run on a periodic
// background task.
func (th *Throttle) Expire(now time.Time) {
	th.mu.Lock()
	defer th.mu.Unlock()
	longestPenalty := th.penaltyFor(th.cfg.MaxStages)
	for ip, st := range th.state {
		if now.Sub(lastAttempt(st)) > th.cfg.TimeWindow+longestPenalty && now.After(st.penaltyUntil) {
			delete(th.state, ip)
		}
	}
}

func lastAttempt(st *ipState) time.Time {
	if len(st.attempts) == 0 {
		return time.Time{}
	}
	return st.attempts[len(st.attempts)-1]
}
