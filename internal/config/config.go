package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/betrace-hq/betrace-sub002/internal/core"
	"github.com/betrace-hq/betrace-sub002/internal/validation"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Tenants    []TenantConfig   `yaml:"tenants"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Engine     EngineConfig     `yaml:"engine"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Keys       KeysConfig       `yaml:"keys"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`

	// AdminSigningKey signs and verifies admin JWTs for the
	// privileged ledger endpoints.
	AdminSigningKey string `yaml:"admin_signing_key"`
}

// TenantConfig holds a tenant and its rule set.
type TenantConfig struct {
	ID    string      `yaml:"id"`
	Rules []core.Rule `yaml:"rules"`
}

// AggregatorConfig controls trace assembly.
type AggregatorConfig struct {
	// IdleWindow is how long a trace may go without new spans before it
	// is considered complete.
	IdleWindow time.Duration `yaml:"idle_window"`
	Shards     int           `yaml:"shards"`
}

// EngineConfig bounds rule evaluation.
type EngineConfig struct {
	StepBudget  int           `yaml:"step_budget"`
	EvalTimeout time.Duration `yaml:"eval_timeout"`
}

type LedgerConfig struct {
	// BufferCapacity bounds the degrade buffer used while the ledger
	// is unavailable.
	BufferCapacity int `yaml:"buffer_capacity"`

	// JournalPath, when set, appends every committed record to a
	// JSONL file for offline reconstruction.
	JournalPath string `yaml:"journal_path"`
}

// KeysConfig configures the signing key provider and cache.
type KeysConfig struct {
	// Provider selects the key provider, e.g. "local".
	Provider   string        `yaml:"provider"`
	PrivateTTL time.Duration `yaml:"private_ttl"`
	PublicTTL  time.Duration `yaml:"public_ttl"`

	// Config carries the remaining provider-specific fields.
	Config map[string]any `yaml:",inline"`
}

type PipelineConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// Load reads, parses, and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	seenTenants := make(map[string]struct{})
	for idx := range c.Tenants {
		t := &c.Tenants[idx]
		if t.ID == "" {
			return fmt.Errorf("tenant at index %d has empty id", idx)
		}
		if _, exists := seenTenants[t.ID]; exists {
			return fmt.Errorf("tenant id %q is not unique", t.ID)
		}
		seenTenants[t.ID] = struct{}{}

		validRules, err := validation.ValidateRules(t.ID, t.Rules)
		if err != nil {
			return fmt.Errorf("validating rules for tenant %q: %w", t.ID, err)
		}
		t.Rules = validRules
	}

	if c.Aggregator.IdleWindow < 0 {
		return fmt.Errorf("aggregator idle_window must not be negative")
	}
	if c.Engine.StepBudget < 0 {
		return fmt.Errorf("engine step_budget must not be negative")
	}
	if c.Ledger.BufferCapacity < 0 {
		return fmt.Errorf("ledger buffer_capacity must not be negative")
	}
	if c.Keys.Provider == "" {
		c.Keys.Provider = "local"
	}

	return nil
}
