package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Push      PushConfig      `yaml:"push"`
	Backoff   BackoffConfig   `yaml:"backoff"`
	Watch     WatchConfig     `yaml:"watch"`
	Directory DirectoryConfig `yaml:"directory"`
}

// PushConfig describes the push transport. An empty URL disables push mode.
type PushConfig struct {
	URL          string            `yaml:"url"`
	Headers      map[string]string `yaml:"headers"`
	Origin       string            `yaml:"origin"`
	PingInterval time.Duration     `yaml:"ping_interval"`
	PingTimeout  time.Duration     `yaml:"ping_timeout"`
}

// BackoffConfig controls reconnect pacing for the push transport.
type BackoffConfig struct {
	Initial     time.Duration `yaml:"initial"`
	Max         time.Duration `yaml:"max"`
	JitterRatio float64       `yaml:"jitter_ratio"`
}

type WatchConfig struct {
	// ListFlushInterval is the minimum spacing between list snapshots.
	ListFlushInterval time.Duration `yaml:"list_flush_interval"`
	// NotifyRatePerMin caps interactive online notifications per minute.
	NotifyRatePerMin int `yaml:"notify_rate_per_min"`
	// ResyncInterval schedules pull reconciliation while connected.
	ResyncInterval time.Duration `yaml:"resync_interval"`
	// PollInterval drives the polling fallback loop.
	PollInterval time.Duration `yaml:"poll_interval"`
	// FilterIDs restricts tracking to these ids. Empty tracks everyone.
	FilterIDs []string `yaml:"filter_ids"`
	// FilterGroup, when set, resolves the group's membership at session
	// start and merges it into the filter.
	FilterGroup string `yaml:"filter_group"`
}

type DirectoryConfig struct {
	BaseURL   string        `yaml:"base_url"`
	AuthToken string        `yaml:"auth_token"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when a field (or the whole file)
// is absent.
func Default() *Config {
	return &Config{
		Push: PushConfig{
			PingInterval: 20 * time.Second,
			PingTimeout:  10 * time.Second,
		},
		Backoff: BackoffConfig{
			Initial:     3 * time.Second,
			Max:         300 * time.Second,
			JitterRatio: 0.2,
		},
		Watch: WatchConfig{
			ListFlushInterval: 5 * time.Second,
			NotifyRatePerMin:  20,
			ResyncInterval:    300 * time.Second,
			PollInterval:      60 * time.Second,
		},
		Directory: DirectoryConfig{
			UserAgent: "friendwatch/1.0",
			Timeout:   15 * time.Second,
		},
	}
}

// Load reads a yaml config file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// normalize clamps values that would otherwise misbehave at runtime.
func (c *Config) normalize() {
	if c.Watch.PollInterval < 5*time.Second {
		c.Watch.PollInterval = 5 * time.Second
	}
	if c.Backoff.Initial <= 0 {
		c.Backoff.Initial = 3 * time.Second
	}
	if c.Backoff.Max < c.Backoff.Initial {
		c.Backoff.Max = c.Backoff.Initial
	}
	if c.Backoff.JitterRatio < 0 {
		c.Backoff.JitterRatio = 0
	}
	if c.Backoff.JitterRatio >= 1 {
		c.Backoff.JitterRatio = 0.99
	}
	if c.Watch.ListFlushInterval <= 0 {
		c.Watch.ListFlushInterval = 5 * time.Second
	}
	if c.Watch.ResyncInterval <= 0 {
		c.Watch.ResyncInterval = 300 * time.Second
	}
	if c.Push.PingInterval <= 0 {
		c.Push.PingInterval = 20 * time.Second
	}
	if c.Push.PingTimeout <= 0 {
		c.Push.PingTimeout = 10 * time.Second
	}
}
