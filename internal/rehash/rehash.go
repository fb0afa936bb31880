// Package rehash implements live configuration reload: atomic replacement
// of classes, allow-blocks and operator entries, plus TLS material and
// MOTD reload, each audited (spec §4.13). Link entries and module settings
// are not replaced. The package does no operator-flag check of its own;
// that is left to the caller.
package rehash

import (
	"crypto/tls"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/eaescob/go-ircd/internal/authz"
	"github.com/eaescob/go-ircd/internal/class"
	"github.com/eaescob/go-ircd/internal/config"
	"github.com/eaescob/go-ircd/internal/store"
)

// Targets groups the live subsystems a rehash swaps atomically. Each
// field is optional so a caller can rehash a subset (e.g. reload_ssl
// alone).
type Targets struct {
	Tracker  *class.Tracker
	Authz    *authz.Model
	TLSStore *TLSStore
	MOTD     *MOTDStore
}

// TLSStore holds the currently active certificate, swapped atomically so
// new connections pick it up while existing ones keep their handshake.
type TLSStore struct {
	cert *tls.Certificate
}

func NewTLSStore() *TLSStore { return &TLSStore{} }

func (s *TLSStore) Current() *tls.Certificate { return s.cert }

// MOTDStore holds the current message-of-the-day lines.
type MOTDStore struct {
	lines []string
}

func NewMOTDStore() *MOTDStore { return &MOTDStore{} }

func (s *MOTDStore) Lines() []string { return s.lines }

// AuditFunc mirrors authz.AuditFunc's shape so rehash can emit its own
// audit events without importing the audit package directly.
type AuditFunc func(kind, actor, target, ip, method, reason string, meta map[string]string)

// Service drives the rehash operations over a set of live Targets.
type Service struct {
	targets Targets
	emit    AuditFunc
}

func New(targets Targets, emit AuditFunc) *Service {
	return &Service{targets: targets, emit: emit}
}

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

// ReloadMainConfig atomically swaps classes, allow-blocks, and operator
// entries after re-validating cfg. Live connections keep their currently
// assigned class; only subsequent acceptance uses the new limits.
func (s *Service) ReloadMainConfig(cfg *config.Config, actor, ip string) error {
	if err := config.Validate(cfg); err != nil {
		s.audit("Rehash", actor, "", ip, "REHASH", "validation failed: "+err.Error(), nil)
		return err
	}

	var errs *multierror.Error
	if s.targets.Tracker != nil {
		s.targets.Tracker.Replace(classesFromConfig(cfg.Classes), allowBlocksFromConfig(cfg.Security.AllowBlocks), cfg.Security.DefaultClass)
	}
	if s.targets.Authz != nil {
		s.targets.Authz.Replace(operatorsFromConfig(cfg.Network.Operators))
	}

	s.audit("Rehash", actor, "", ip, "REHASH", "main config reloaded", nil)
	return errs.ErrorOrNil()
}

// ReloadSSL reloads the certificate/key pair from disk.
func (s *Service) ReloadSSL(certPath, keyPath, actor, ip string) error {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		s.audit("Rehash", actor, "", ip, "REHASH", "tls reload failed: "+err.Error(), nil)
		return err
	}
	if s.targets.TLSStore != nil {
		s.targets.TLSStore.cert = &cert
	}
	s.audit("Rehash", actor, "", ip, "REHASH", "tls material reloaded", nil)
	return nil
}

// ReloadMOTD re-reads the MOTD file, one message per line.
func (s *Service) ReloadMOTD(path, actor, ip string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		s.audit("Rehash", actor, "", ip, "REHASH", "motd reload failed: "+err.Error(), nil)
		return err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if s.targets.MOTD != nil {
		s.targets.MOTD.lines = lines
	}
	s.audit("Rehash", actor, "", ip, "REHASH", "motd reloaded", nil)
	return nil
}

// ReloadModules re-validates cfg and emits an audit event. It stores
// nothing: the module settings in cfg are not applied anywhere.
func (s *Service) ReloadModules(cfg *config.Config, actor, ip string) error {
	if err := config.Validate(cfg); err != nil {
		s.audit("Rehash", actor, "", ip, "REHASH", "module config validation failed: "+err.Error(), nil)
		return err
	}
	s.audit("Rehash", actor, "", ip, "REHASH", "module settings reloaded", nil)
	return nil
}

func (s *Service) audit(kind, actor, target, ip, method, reason string, meta map[string]string) {
	if s.emit != nil {
		s.emit(kind, actor, target, ip, method, reason, meta)
	}
}
