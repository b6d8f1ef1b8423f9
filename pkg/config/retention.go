package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// RetentionConfig holds the data-retention settings from engine.yaml. They
// are parsed, merged over DefaultRetentionConfig and exposed as
// Config.Retention; no code outside this package reads them, and no
// retention cleanup runs.
type RetentionConfig struct {
	// SessionRetentionDays is the retention window, in days.
	SessionRetentionDays int `yaml:"session_retention_days"`

	// EventTTL is the maximum event age.
	EventTTL time.Duration `yaml:"event_ttl"`

	// CleanupInterval is the cleanup cadence.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// UnmarshalYAML decodes EventTTL and CleanupInterval as human-friendly
// duration strings, matching QueueConfig's UnmarshalYAML.
func (c *RetentionConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		SessionRetentionDays int    `yaml:"session_retention_days"`
		EventTTL             string `yaml:"event_ttl"`
		CleanupInterval      string `yaml:"cleanup_interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.SessionRetentionDays = raw.SessionRetentionDays
	if raw.EventTTL != "" {
		d, err := parseFlexibleDuration(raw.EventTTL)
		if err != nil {
			return err
		}
		c.EventTTL = d
	}
	if raw.CleanupInterval != "" {
		d, err := parseFlexibleDuration(raw.CleanupInterval)
		if err != nil {
			return err
		}
		c.CleanupInterval = d
	}
	return nil
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		SessionRetentionDays: 365,
		EventTTL:             1 * time.Hour,
		CleanupInterval:      12 * time.Hour,
	}
}
