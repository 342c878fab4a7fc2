package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/escalation"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/metrics"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/pool"
	"github.com/sasyevadam01/sl-enterprise-sub002/infra/mqtt"
)

// Config is the full service configuration.
type Config struct {
	Store      StoreConfig       `json:"store"`
	Escalation escalation.Config `json:"escalation"`
	Points     pool.Points       `json:"points"`
	Metrics    metrics.Config    `json:"metrics"`
	MQTT       mqtt.Config       `json:"mqtt"`
	API        APIConfig         `json:"api"`
	Sentry     SentryConfig      `json:"sentry"`
}

// StoreConfig selects the request and ledger persistence backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	// Path is the requests database location for the sqlite backend.
	Path string `json:"path"`
	// LedgerPath is the performance events database location.
	LedgerPath string `json:"ledger_path"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "sqlite"
	}
	if c.Path == "" {
		c.Path = "dispatch.db"
	}
	if c.LedgerPath == "" {
		c.LedgerPath = "ledger.db"
	}
}

// Validate checks mandatory fields.
func (c StoreConfig) Validate() error {
	if c.Backend != "memory" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown store backend %s", c.Backend)
	}
	return nil
}

// APIConfig defines the HTTP surface.
type APIConfig struct {
	Addr string `json:"addr"`
	// Token gates the API with a bearer token when non-empty. Identity
	// and role resolution stay upstream; this only fences the surface.
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// Load reads the configuration file, applies K_-prefixed environment
// overrides, then defaults and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Store.SetDefaults()
	cfg.Escalation.SetDefaults()
	cfg.Points.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.API.SetDefaults()
	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
