package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// QueueConfig is the YAML-configurable twin of dispatcher.Config: it
// controls how the polling dispatcher's worker pool claims, processes,
// and releases work items.
type QueueConfig struct {
	// WorkerCount is the number of concurrent claim/process goroutines
	// per replica.
	WorkerCount int `yaml:"worker_count"`

	// ClaimBatchSize bounds how many rows a single claim call may take
	// per selector per poll cycle.
	ClaimBatchSize int `yaml:"claim_batch_size"`

	// PollInterval is the base sleep between poll cycles when nothing
	// was claimed.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter randomizes PollInterval by +/- this amount so
	// replicas don't all poll in lockstep.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// ItemTimeout bounds a single handler invocation.
	ItemTimeout time.Duration `yaml:"item_timeout"`

	// MaxRetries is the retry ceiling before a failed item collapses
	// into terminal state.
	MaxRetries int `yaml:"max_retries"`

	// StaleClaimAge is the lease age the stale-claim sweep releases.
	StaleClaimAge time.Duration `yaml:"stale_claim_age"`

	// CleanupInterval is the cadence of the stale-claim sweep loop.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// UnmarshalYAML decodes duration fields as human-friendly strings
// ("5s", "3d", "1w") rather than requiring nanosecond integers, the way
// the rest of engine.yaml's duration fields are written.
func (c *QueueConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		WorkerCount        int    `yaml:"worker_count"`
		ClaimBatchSize     int    `yaml:"claim_batch_size"`
		PollInterval       string `yaml:"poll_interval"`
		PollIntervalJitter string `yaml:"poll_interval_jitter"`
		ItemTimeout        string `yaml:"item_timeout"`
		MaxRetries         int    `yaml:"max_retries"`
		StaleClaimAge      string `yaml:"stale_claim_age"`
		CleanupInterval    string `yaml:"cleanup_interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	durations := []struct {
		raw string
		out *time.Duration
	}{
		{raw.PollInterval, &c.PollInterval},
		{raw.PollIntervalJitter, &c.PollIntervalJitter},
		{raw.ItemTimeout, &c.ItemTimeout},
		{raw.StaleClaimAge, &c.StaleClaimAge},
		{raw.CleanupInterval, &c.CleanupInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := parseFlexibleDuration(d.raw)
		if err != nil {
			return err
		}
		*d.out = parsed
	}

	c.WorkerCount = raw.WorkerCount
	c.ClaimBatchSize = raw.ClaimBatchSize
	c.MaxRetries = raw.MaxRetries
	return nil
}

// DefaultQueueConfig returns the built-in queue defaults, mirroring
// dispatcher.DefaultConfig.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:        4,
		ClaimBatchSize:     5,
		PollInterval:       5 * time.Second,
		PollIntervalJitter: time.Second,
		ItemTimeout:        5 * time.Minute,
		MaxRetries:         3,
		StaleClaimAge:      30 * time.Minute,
		CleanupInterval:    5 * time.Minute,
	}
}
