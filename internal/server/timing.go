package server

import (
	"time"

	"github.com/eaescob/go-ircd/internal/wire"
)

// timingLoop drives ping scheduling and idle-timeout enforcement across
// every live connection (spec §4.2, §4.9 step 6).
func (s *Server) timingLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.shutdown:
			return
		case now := <-ticker.C:
			s.sweepConnections(now)
		}
	}
}

func (s *Server) sweepConnections(now time.Time) {
	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		freq := 2 * time.Minute
		timeout := 4 * time.Minute
		if c.class != nil {
			if c.class.PingFrequency > 0 {
				freq = c.class.PingFrequency
			}
			if c.class.ConnectionTimeout > 0 {
				timeout = c.class.ConnectionTimeout
			}
		}

		if c.timing.IsTimedOut(now, timeout) {
			c.sendLine((&wire.Message{Command: "ERROR", Params: []string{"Closing Link: ping timeout"}}).Bytes())
			c.close()
			continue
		}
		if c.timing.ShouldSendPing(now, freq) {
			c.sendLine((&wire.Message{Command: "PING", Params: []string{s.cfg.Server.Name}}).Bytes())
			c.timing.RecordPingSent(now)
		}
	}
}
