// Package config holds runtime settings for the authorization engine and the
// host CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config holds the tunables of the engine.
//
// Fields:
//   - PromptTimeout: how long a shown authorization prompt waits for the user.
//   - QueueCapacity: hard bound on queued authorization prompts.
//   - BufferCapacity: hard bound on requests buffered while the vault is locked.
//   - MaxAutoSnapshots: automatic backups kept before oldest-first eviction.
//   - DatabasePath: SQLite file backing the persisted partitions in CLI mode.
type Config struct {
	PromptTimeout    time.Duration
	QueueCapacity    int
	BufferCapacity   int
	MaxAutoSnapshots int
	DatabasePath     string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.PromptTimeout = 30 * time.Second
	c.QueueCapacity = 32
	c.BufferCapacity = 64
	c.MaxAutoSnapshots = 10
	c.DatabasePath = "vault.db"
}

// jsonConfig is a DTO used exclusively for JSON unmarshalling. Durations are
// given in seconds.
type jsonConfig struct {
	PromptTimeoutSeconds *int    `json:"prompt_timeout_seconds"`
	QueueCapacity        *int    `json:"queue_capacity"`
	BufferCapacity       *int    `json:"buffer_capacity"`
	MaxAutoSnapshots     *int    `json:"max_auto_snapshots"`
	DatabasePath         *string `json:"database_path"`
}

// LoadConfig constructs a Config with defaults, then overlays values from
// the JSON file at path if path is non-empty. Absent fields keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if jc.PromptTimeoutSeconds != nil {
		cfg.PromptTimeout = time.Duration(*jc.PromptTimeoutSeconds) * time.Second
	}
	if jc.QueueCapacity != nil {
		cfg.QueueCapacity = *jc.QueueCapacity
	}
	if jc.BufferCapacity != nil {
		cfg.BufferCapacity = *jc.BufferCapacity
	}
	if jc.MaxAutoSnapshots != nil {
		cfg.MaxAutoSnapshots = *jc.MaxAutoSnapshots
	}
	if jc.DatabasePath != nil {
		cfg.DatabasePath = *jc.DatabasePath
	}
	return cfg, nil
}
