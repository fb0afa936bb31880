package server

import (
	"strings"

	"github.com/eaescob/go-ircd/internal/authz"
	"github.com/eaescob/go-ircd/internal/class"
	"github.com/eaescob/go-ircd/internal/config"
	"github.com/eaescob/go-ircd/internal/store"
)

// classesFromConfig, allowBlocksFromConfig, operatorsFromConfig, and
// flagsFromNames mirror internal/rehash's own (unexported) config
// converters: both packages turn the same config sections into live
// component state, rehash on reload and this package on first construction.

func classesFromConfig(sections []config.ClassSection) map[string]*class.Class {
	out := make(map[string]*class.Class, len(sections))
	for _, c := range sections {
		out[c.Name] = &class.Class{
			Name: c.Name, MaxClients: c.MaxClients, PingFrequency: c.PingFrequency,
			ConnectionTimeout: c.ConnectionTimeout, MaxSendQBytes: c.MaxSendQBytes,
			MaxRecvQBytes: c.MaxRecvQBytes, MaxConnectionsPerIP: c.MaxConnectionsPerIP,
			MaxConnectionsPerHost: c.MaxConnectionsPerHost, DisableThrottling: c.DisableThrottling,
		}
	}
	return out
}

func allowBlocksFromConfig(sections []config.AllowBlockSection) []*class.AllowBlock {
	out := make([]*class.AllowBlock, 0, len(sections))
	for _, b := range sections {
		out = append(out, &class.AllowBlock{
			HostPatterns: b.HostPatterns, CIDRs: b.CIDRs, Password: b.Password,
			ClassName: b.ClassName, MaxConnections: b.MaxConnections,
		})
	}
	return out
}

func operatorsFromConfig(ops []config.OperatorConfig) []*authz.OperatorEntry {
	out := make([]*authz.OperatorEntry, 0, len(ops))
	for _, o := range ops {
		out = append(out, &authz.OperatorEntry{
			Name: o.Name, PasswordHash: o.PasswordHash, HostMask: o.HostMask,
			Flags: flagsFromNames(o.Flags),
		})
	}
	return out
}

func flagsFromNames(names []string) (flags store.OperFlags) {
	for _, n := range names {
		switch strings.ToLower(n) {
		case "globaloper":
			flags |= store.FlagGlobalOper
		case "localoper":
			flags |= store.FlagLocalOper
		case "remoteconnect":
			flags |= store.FlagRemoteConnect
		case "localconnect":
			flags |= store.FlagLocalConnect
		case "administrator":
			flags |= store.FlagAdministrator
		case "spy":
			flags |= store.FlagSpy
		case "squit":
			flags |= store.FlagSquit
		}
	}
	return flags
}
