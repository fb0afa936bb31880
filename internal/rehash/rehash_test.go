package rehash

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaescob/go-ircd/internal/authz"
	"github.com/eaescob/go-ircd/internal/class"
	"github.com/eaescob/go-ircd/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerSection{Name: "irc.example.net", Version: "1.0"},
		Connection: config.ConnectionSection{Ports: []config.Port{{BindAddress: "0.0.0.0", Port: 6667, ConnectionType: "Client"}}},
		Classes: []config.ClassSection{{
			Name: "users", PingFrequency: 30 * time.Second, ConnectionTimeout: 120 * time.Second,
			MaxSendQBytes: 1 << 20, MaxRecvQBytes: 1 << 14,
		}},
		Database: config.DatabaseSection{NickCacheTTL: time.Minute, NickCacheCapacity: 100, ChannelCacheTTL: time.Minute, DNSCacheTTL: time.Minute},
		Netsplit: config.NetsplitSection{ReconnectBaseDelay: time.Second, ReconnectMaxDelay: time.Minute, SplitUserGracePeriod: 90 * time.Second},
		Logging:  config.LoggingSection{Level: "info"},
	}
}

func TestReloadMainConfigSwapsTrackerAndAuthz(t *testing.T) {
	tr := class.NewTracker(nil, nil, "")
	m := authz.New(nil, nil)
	var events []string
	svc := New(Targets{Tracker: tr, Authz: m}, func(kind, actor, target, ip, method, reason string, meta map[string]string) {
		events = append(events, kind)
	})

	cfg := validConfig()
	cfg.Network.Operators = []config.OperatorConfig{{Name: "admin", PasswordHash: "x", HostMask: "*", Flags: []string{"GlobalOper"}}}

	require.NoError(t, svc.ReloadMainConfig(cfg, "admin", "1.2.3.4"))
	assert.Contains(t, events, "Rehash")

	_, err := m.Authenticate("admin", "wrong", "1.2.3.4")
	assert.ErrorIs(t, err, authz.ErrPasswordMismatch)
}

func TestReloadMainConfigRejectsInvalidConfig(t *testing.T) {
	svc := New(Targets{}, nil)
	cfg := validConfig()
	cfg.Server.Name = ""
	assert.Error(t, svc.ReloadMainConfig(cfg, "admin", "1.2.3.4"))
}
