package audit

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestEmitRespectsEnabledGate(t *testing.T) {
	log, hook := test.NewNullLogger()
	l := NewLogger(log, false, LevelDebug)
	l.Emit("AuthFailure", "alice", "", "1.2.3.4", "OPER", "bad password", nil)
	assert.Empty(t, hook.Entries)
}

func TestEmitRespectsMinLevel(t *testing.T) {
	log, hook := test.NewNullLogger()
	l := NewLogger(log, true, LevelWarning)
	l.Emit("OperAuth", "alice", "", "1.2.3.4", "OPER", "", nil)
	assert.Empty(t, hook.Entries, "info-level event should be filtered below min_level=warning")

	l.Emit("AuthFailure", "alice", "", "1.2.3.4", "OPER", "bad password", nil)
	assert.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestEmitNeverLogsPasswordField(t *testing.T) {
	log, hook := test.NewNullLogger()
	l := NewLogger(log, true, LevelDebug)
	l.Emit("OperAuthFailure", "alice", "", "1.2.3.4", "OPER", "generic failure", map[string]string{"nonsense": "x"})
	for k := range hook.LastEntry().Data {
		assert.NotEqual(t, "password", k)
	}
}

func TestRecordCommandUpdatesAverages(t *testing.T) {
	c := NewCounters(time.Now())
	c.RecordCommand("PRIVMSG", 10, false)
	c.RecordCommand("PRIVMSG", 20, false)
	cs := c.PerCommand["PRIVMSG"]
	assert.Equal(t, uint64(2), cs.Count)
	assert.InDelta(t, 15.0, cs.AvgBytes, 0.001)
}
