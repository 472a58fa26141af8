package moderation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	StorageBadger = "badger"
	StorageJSON   = "json"
	StorageSQLite = "sqlite"

	TokenEnv = "MODBOT_TOKEN"
)

type Config struct {
	Token  string `json:"token"`
	Shards int    `json:"shards"`

	DataDir string `json:"data_dir"`
	Storage string `json:"storage"`
	Locale  string `json:"locale"`

	DefaultFeatures    map[Feature]bool `json:"default_features"`
	EscalationScope    EscalationScope  `json:"escalation_scope"`
	SpamWindowCapacity int              `json:"spam_window_capacity"`

	// MetricsAddr is where prometheus metrics are served. Empty disables it.
	MetricsAddr string `json:"metrics_addr"`
	Debug       bool   `json:"debug"`
}

func DefaultConfig() *Config {
	features := make(map[Feature]bool, len(AllFeatures))
	for _, f := range AllFeatures {
		features[f] = false
	}
	return &Config{
		Shards:             1,
		DataDir:            "./data",
		Storage:            StorageBadger,
		Locale:             "en-US",
		DefaultFeatures:    features,
		EscalationScope:    ScopeMember,
		SpamWindowCapacity: defaultSpamCapacity,
	}
}

// LoadConfig reads a JSON config on top of the defaults. The token may also
// come from the environment, which wins over the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	d, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(d, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if tok := os.Getenv(TokenEnv); tok != "" {
		cfg.Token = tok
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage {
	case StorageBadger, StorageJSON, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", c.Locale, err)
	}
	for f := range c.DefaultFeatures {
		if !f.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownFeature, f)
		}
	}
	scope, err := ParseEscalationScope(string(c.EscalationScope))
	if err != nil {
		return err
	}
	c.EscalationScope = scope
	if c.Shards < 1 {
		c.Shards = 1
	}
	return nil
}

// Printer returns a printer for the configured locale, falling back to
// English.
func (c *Config) Printer() *message.Printer {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}
