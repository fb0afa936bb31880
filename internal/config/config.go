// Package config defines the strongly-typed configuration structure the
// core consumes (spec §6). The core does not parse TOML/YAML/env itself —
// that is the CLI's job — but it validates the struct on load and rehash.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type ServerSection struct {
	Name        string `validate:"required,fqdn|hostname"`
	Description string
	Version     string `validate:"required"`
	AdminName   string
	AdminEmail  string `validate:"omitempty,email"`
	MOTDPath    string
}

type Port struct {
	BindAddress    string `validate:"required"`
	Port           int    `validate:"required,min=1,max=65535"`
	TLS            bool
	CertPath       string
	KeyPath        string
	ConnectionType string `validate:"required,oneof=Client Server Both"`
}

type ConnectionSection struct {
	BindAddress string
	Ports       []Port `validate:"required,min=1,dive"`
}

type ClassSection struct {
	Name                  string        `validate:"required"`
	MaxClients            int           `validate:"gte=0"`
	PingFrequency         time.Duration `validate:"required"`
	ConnectionTimeout     time.Duration `validate:"required"`
	MaxSendQBytes         int           `validate:"required,gt=0"`
	MaxRecvQBytes         int           `validate:"required,gt=0"`
	MaxConnectionsPerIP   int           `validate:"gte=0"`
	MaxConnectionsPerHost int           `validate:"gte=0"`
	DisableThrottling     bool
}

type AllowBlockSection struct {
	HostPatterns   []string
	CIDRs          []string
	Password       string
	ClassName      string `validate:"required"`
	MaxConnections int
}

type SecuritySection struct {
	IdentLookup  bool
	DNSLookup    bool
	AllowBlocks  []AllowBlockSection `validate:"dive"`
	DefaultClass string
}

type OperatorConfig struct {
	Name         string `validate:"required"`
	PasswordHash string `validate:"required"`
	HostMask     string `validate:"required"`
	Flags        []string `validate:"required,dive,oneof=GlobalOper LocalOper RemoteConnect LocalConnect Administrator Spy Squit"`
}

type LinkEntry struct {
	ServerName string `validate:"required"`
	Host       string `validate:"required"`
	Port       int    `validate:"required,min=1,max=65535"`
	Password   string `validate:"required"`
	Outgoing   bool
	ULined     bool
}

type NetworkSection struct {
	Operators []OperatorConfig `validate:"dive"`
	Links     []LinkEntry      `validate:"dive"`
}

type ModuleSettings struct {
	ThrottleMaxConnectionsPerIP int           `validate:"gte=0"`
	ThrottleTimeWindow          time.Duration
	ThrottleInitial             time.Duration
	ThrottleStageFactor         float64
	ThrottleMaxStages           int
}

type ModulesSection struct {
	Enabled  []string
	Settings ModuleSettings
}

type TLSSection struct {
	DefaultCertPath string
	DefaultKeyPath  string
	RequireCAForExternal bool
}

type DatabaseSection struct {
	NickCacheTTL      time.Duration `validate:"required"`
	NickCacheCapacity int           `validate:"required,gt=0"`
	ChannelCacheTTL   time.Duration `validate:"required"`
	DNSCacheTTL       time.Duration `validate:"required"`
	WhowasDepth       int           `validate:"gte=0"`
	WhowasRetention   time.Duration
}

type NetsplitSection struct {
	ReconnectBaseDelay     time.Duration `validate:"required"`
	ReconnectMaxDelay      time.Duration `validate:"required"`
	SplitUserGracePeriod   time.Duration `validate:"required"`
	BurstOptimizationWindow time.Duration
}

type LoggingSection struct {
	Level       string `validate:"required,oneof=debug info warning error"`
	AuditEnabled bool
	AuditMinLevel string `validate:"omitempty,oneof=debug info warning"`
}

// Config is the top-level structure consumed by the core (spec §6).
type Config struct {
	Server     ServerSection     `validate:"required"`
	Connection ConnectionSection `validate:"required"`
	Classes    []ClassSection    `validate:"required,min=1,dive"`
	Security   SecuritySection
	Network    NetworkSection
	Modules    ModulesSection
	TLS        TLSSection
	Database   DatabaseSection `validate:"required"`
	Netsplit   NetsplitSection `validate:"required"`
	Logging    LoggingSection  `validate:"required"`
}

var validate = validator.New()

// Validate checks every struct tag constraint, returning the first
// validator error set encountered.
func Validate(cfg *Config) error {
	return validate.Struct(cfg)
}
