package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when mosaic.yml omits a setting. The canvas
// dimensions and cooldown match the behaviour viewers and placers expect
// from the public board.
const (
	DefaultCanvasID        = "main-canvas"
	DefaultCanvasWidth     = 1000
	DefaultCanvasHeight    = 1000
	DefaultCooldownSeconds = 300
)

// Config represents the top-level mosaic.yml configuration.
type Config struct {
	Version  string                  `yaml:"version"`
	Cooldown *CooldownConfig         `yaml:"cooldown,omitempty"`
	Identity *IdentityConfig         `yaml:"identity,omitempty"`
	Canvases map[string]CanvasConfig `yaml:"canvases,omitempty"`
	Snapshot *SnapshotConfig         `yaml:"snapshot,omitempty"`
	Consumer *ConsumerConfig         `yaml:"consumer,omitempty"`
}

// CooldownConfig controls the per-actor placement rate limit.
type CooldownConfig struct {
	Seconds *int `yaml:"seconds,omitempty"` // Minimum wait between placements (default 300)
}

// IdentityConfig points at the external identity service used to resolve
// bearer credentials into actor identities.
type IdentityConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"` // Default 10
}

// CanvasConfig declares a canvas and its immutable dimensions.
type CanvasConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// SnapshotConfig controls the snapshot renderer schedule.
type SnapshotConfig struct {
	IntervalSeconds int   `yaml:"interval_seconds,omitempty"` // Periodic regeneration (default 60)
	DebounceSeconds int   `yaml:"debounce_seconds,omitempty"` // Trigger coalescing window (default 2)
	History         *bool `yaml:"history,omitempty"`          // Keep timestamped historical objects (default true)
}

// ConsumerConfig controls the queue consumer.
type ConsumerConfig struct {
	StaleClaimSeconds int `yaml:"stale_claim_seconds,omitempty"` // Pending-entry reclaim age (default 60)
	BatchSize         int `yaml:"batch_size,omitempty"`          // Messages per read (default 16)
}

// Validate performs strict validation on the configuration and applies
// defaults for omitted sections.
func (c *Config) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Apply default cooldown if missing
	if c.Cooldown == nil {
		c.Cooldown = &CooldownConfig{}
	}
	if c.Cooldown.Seconds == nil {
		defaultSeconds := DefaultCooldownSeconds
		c.Cooldown.Seconds = &defaultSeconds
	}
	if *c.Cooldown.Seconds < 0 {
		return fmt.Errorf("cooldown.seconds must be >= 0, got %d", *c.Cooldown.Seconds)
	}

	// Apply default canvas if none declared
	if len(c.Canvases) == 0 {
		c.Canvases = map[string]CanvasConfig{
			DefaultCanvasID: {Width: DefaultCanvasWidth, Height: DefaultCanvasHeight},
		}
	}
	for id, canvas := range c.Canvases {
		if id == "" {
			return fmt.Errorf("canvas ID cannot be empty")
		}
		if canvas.Width < 1 || canvas.Height < 1 {
			return fmt.Errorf("canvas '%s': dimensions must be positive, got %dx%d", id, canvas.Width, canvas.Height)
		}
	}

	// Identity section is optional (queue-only deployments pre-resolve
	// actors), but when present it must be usable.
	if c.Identity != nil {
		if c.Identity.BaseURL == "" {
			return fmt.Errorf("identity.base_url is required when the identity section is present")
		}
		if c.Identity.TimeoutSeconds == 0 {
			c.Identity.TimeoutSeconds = 10
		}
		if c.Identity.TimeoutSeconds < 1 {
			return fmt.Errorf("identity.timeout_seconds must be >= 1, got %d", c.Identity.TimeoutSeconds)
		}
	}

	// Snapshot defaults
	if c.Snapshot == nil {
		c.Snapshot = &SnapshotConfig{}
	}
	if c.Snapshot.IntervalSeconds == 0 {
		c.Snapshot.IntervalSeconds = 60
	}
	if c.Snapshot.IntervalSeconds < 1 {
		return fmt.Errorf("snapshot.interval_seconds must be >= 1, got %d", c.Snapshot.IntervalSeconds)
	}
	if c.Snapshot.DebounceSeconds < 0 {
		return fmt.Errorf("snapshot.debounce_seconds must be >= 0, got %d", c.Snapshot.DebounceSeconds)
	}
	if c.Snapshot.DebounceSeconds == 0 {
		c.Snapshot.DebounceSeconds = 2
	}
	if c.Snapshot.History == nil {
		history := true
		c.Snapshot.History = &history
	}

	// Consumer defaults
	if c.Consumer == nil {
		c.Consumer = &ConsumerConfig{}
	}
	if c.Consumer.StaleClaimSeconds == 0 {
		c.Consumer.StaleClaimSeconds = 60
	}
	if c.Consumer.StaleClaimSeconds < 1 {
		return fmt.Errorf("consumer.stale_claim_seconds must be >= 1, got %d", c.Consumer.StaleClaimSeconds)
	}
	if c.Consumer.BatchSize == 0 {
		c.Consumer.BatchSize = 16
	}
	if c.Consumer.BatchSize < 1 {
		return fmt.Errorf("consumer.batch_size must be >= 1, got %d", c.Consumer.BatchSize)
	}

	return nil
}

// CooldownWindow returns the configured cooldown as a duration.
func (c *Config) CooldownWindow() time.Duration {
	return time.Duration(*c.Cooldown.Seconds) * time.Second
}

// SnapshotInterval returns the periodic snapshot regeneration interval.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Snapshot.IntervalSeconds) * time.Second
}

// SnapshotDebounce returns the window over which render triggers for the
// same canvas are coalesced into one regeneration.
func (c *Config) SnapshotDebounce() time.Duration {
	return time.Duration(c.Snapshot.DebounceSeconds) * time.Second
}

// StaleClaimWindow returns how long a queue message may sit pending before
// another consumer claims it.
func (c *Config) StaleClaimWindow() time.Duration {
	return time.Duration(c.Consumer.StaleClaimSeconds) * time.Second
}

// CanvasDimensions returns the configured dimensions for a canvas, falling
// back to the defaults for canvases not declared in mosaic.yml.
func (c *Config) CanvasDimensions(canvasID string) (width, height int) {
	if canvas, ok := c.Canvases[canvasID]; ok {
		return canvas.Width, canvas.Height
	}
	return DefaultCanvasWidth, DefaultCanvasHeight
}

// Load reads and validates mosaic.yml from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with every section defaulted, used when
// no mosaic.yml is present.
func Default() *Config {
	config := &Config{Version: "1.0"}
	if err := config.Validate(); err != nil {
		// An empty versioned config cannot fail validation.
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return config
}
