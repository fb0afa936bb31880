package audit

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Level gates which events reach the log at all, independent of logrus's
// own level (spec: "AuditLogger is configured with enabled and min_level").
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
)

// Event is one structured security-relevant occurrence.
type Event struct {
	Kind      string
	Actor     string
	Target    string
	SourceIP  string
	Method    string
	Reason    string
	Metadata  map[string]string
	Timestamp time.Time
}

// classifyLevel maps an event kind to its logging level per spec §4.12:
// failures at warning, privileged operations at info, routine successes
// at debug.
func classifyLevel(kind string) Level {
	switch kind {
	case "AuthFailure", "AuthzFailure", "OperAuthFailure", "LinkFailed", "ThrottleDenied":
		return LevelWarning
	case "OperAuth", "AuthzSuccess", "OperatorAction", "PrivilegeGrant", "PrivilegeRevoke", "SQUIT", "ConfigChange", "Rehash", "NickCollision":
		return LevelInfo
	default:
		return LevelDebug
	}
}

// Logger is the AuditLogger: a logrus-backed structured event sink gated
// by enabled/min_level, never logging passwords or SASL payloads.
type Logger struct {
	log      *logrus.Logger
	enabled  bool
	minLevel Level
}

// NewLogger constructs a Logger. enabled=false makes every Emit a no-op,
// matching the rehash-toggleable "audit.enabled" config flag.
func NewLogger(log *logrus.Logger, enabled bool, minLevel Level) *Logger {
	return &Logger{log: log, enabled: enabled, minLevel: minLevel}
}

// SetEnabled and SetMinLevel allow rehash to adjust the gate atomically
// enough for this single-field swap (the caller's rehash already
// serializes config reloads).
func (l *Logger) SetEnabled(enabled bool)   { l.enabled = enabled }
func (l *Logger) SetMinLevel(level Level)   { l.minLevel = level }

// Emit logs a structured audit event if enabled and at or above minLevel.
// Satisfies authz.AuditFunc's shape so it can be passed directly as the
// Authorization Model's audit hook.
func (l *Logger) Emit(kind, actor, target, ip, method, reason string, meta map[string]string) {
	if !l.enabled {
		return
	}
	level := classifyLevel(kind)
	if level < l.minLevel {
		return
	}

	fields := logrus.Fields{
		"kind":   kind,
		"actor":  actor,
		"target": target,
		"ip":     ip,
		"method": method,
	}
	for k, v := range meta {
		fields[k] = v
	}
	entry := l.log.WithFields(fields)

	switch level {
	case LevelWarning:
		entry.Warn(reason)
	case LevelInfo:
		entry.Info(reason)
	default:
		entry.Debug(reason)
	}
}
