package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server:     ServerSection{Name: "irc.example.net", Version: "go-ircd-1.0"},
		Connection: ConnectionSection{Ports: []Port{{BindAddress: "0.0.0.0", Port: 6667, ConnectionType: "Client"}}},
		Classes: []ClassSection{{
			Name: "users", PingFrequency: 30 * time.Second, ConnectionTimeout: 120 * time.Second,
			MaxSendQBytes: 1 << 20, MaxRecvQBytes: 1 << 14,
		}},
		Database: DatabaseSection{NickCacheTTL: time.Minute, NickCacheCapacity: 1000, ChannelCacheTTL: time.Minute, DNSCacheTTL: time.Minute},
		Netsplit: NetsplitSection{ReconnectBaseDelay: time.Second, ReconnectMaxDelay: time.Minute, SplitUserGracePeriod: 90 * time.Second},
		Logging:  LoggingSection{Level: "info"},
	}
}

func TestValidConfigPasses(t *testing.T) {
	assert.NoError(t, Validate(validConfig()))
}

func TestMissingServerNameFails(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Name = ""
	assert.Error(t, Validate(cfg))
}

func TestInvalidPortRangeFails(t *testing.T) {
	cfg := validConfig()
	cfg.Connection.Ports[0].Port = 70000
	assert.Error(t, Validate(cfg))
}

func TestAtLeastOneClassRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Classes = nil
	assert.Error(t, Validate(cfg))
}

func TestInvalidLoggingLevelFails(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	assert.Error(t, Validate(cfg))
}
