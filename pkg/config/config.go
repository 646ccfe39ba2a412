package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when the config file omits a field
const (
	DefaultEnabledTagKey      = "InstanceReplacement"
	DefaultSavedMaxSizeTagKey = "roller:saved-max-size"
	DefaultTickInterval       = 1 * time.Minute
	DefaultPassBudget         = 50 * time.Second
	DefaultMaxConcurrent      = 8
	DefaultListenAddr         = ":9321"
	DefaultJournalRetention   = 500
)

// Config holds the controller's deployment-level configuration.
// Per-group behavior (opt-in, saved max size) lives on group tags, not here.
type Config struct {
	// Region is the provider region. Empty means the SDK default chain.
	Region string `yaml:"region"`

	// EnabledTagKey is the opt-in marker tag key on groups
	EnabledTagKey string `yaml:"enabled_tag_key"`

	// SavedMaxSizeTagKey is the controller-owned tag recording a group's
	// original max size while temporary headroom is in effect
	SavedMaxSizeTagKey string `yaml:"saved_max_size_tag_key"`

	// TickInterval is the cadence of full-scan passes
	TickInterval time.Duration `yaml:"tick_interval"`

	// PassBudget bounds the wall-clock time of one pass. Groups left
	// unprocessed when the budget runs out wait for the next trigger.
	PassBudget time.Duration `yaml:"pass_budget"`

	// MaxConcurrent bounds how many groups reconcile in parallel
	MaxConcurrent int `yaml:"max_concurrent"`

	// ListenAddr is the HTTP address for health, metrics, and the
	// notification webhook
	ListenAddr string `yaml:"listen_addr"`

	// JournalPath is the bbolt file for pass history. Empty disables
	// the journal.
	JournalPath string `yaml:"journal_path"`

	// JournalRetention is how many pass records to keep
	JournalRetention int `yaml:"journal_retention"`

	// FallbackScanAll makes a malformed notification degrade to a full
	// scan instead of processing zero groups
	FallbackScanAll bool `yaml:"fallback_scan_all"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level"`

	// LogJSON selects JSON output over console output
	LogJSON bool `yaml:"log_json"`
}

// Default returns a Config with all defaults applied
func Default() *Config {
	return &Config{
		EnabledTagKey:      DefaultEnabledTagKey,
		SavedMaxSizeTagKey: DefaultSavedMaxSizeTagKey,
		TickInterval:       DefaultTickInterval,
		PassBudget:         DefaultPassBudget,
		MaxConcurrent:      DefaultMaxConcurrent,
		ListenAddr:         DefaultListenAddr,
		JournalRetention:   DefaultJournalRetention,
		LogLevel:           "info",
		LogJSON:            true,
	}
}

// Load reads a YAML config file and applies defaults for omitted fields
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the controller cannot
// safely run with
func (c *Config) Validate() error {
	if c.EnabledTagKey == "" {
		return fmt.Errorf("enabled_tag_key must not be empty")
	}
	if c.SavedMaxSizeTagKey == "" {
		return fmt.Errorf("saved_max_size_tag_key must not be empty")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", c.TickInterval)
	}
	if c.PassBudget <= 0 {
		return fmt.Errorf("pass_budget must be positive, got %v", c.PassBudget)
	}
	if c.PassBudget >= c.TickInterval {
		return fmt.Errorf("pass_budget (%v) must be shorter than tick_interval (%v)", c.PassBudget, c.TickInterval)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", c.MaxConcurrent)
	}
	if c.JournalRetention < 0 {
		return fmt.Errorf("journal_retention must not be negative, got %d", c.JournalRetention)
	}
	return nil
}
