// Package config handles YAML configuration loading, environment variable
// expansion, defaults and validation for edgecycle.
package config

import (
	"time"

	"github.com/flemzord/edgecycle/internal/cron"
	"github.com/flemzord/edgecycle/internal/datasource"
	"github.com/flemzord/edgecycle/internal/gateway"
	"github.com/flemzord/edgecycle/internal/heartbeat"
	"github.com/flemzord/edgecycle/internal/telemetry"
	"github.com/flemzord/edgecycle/modules/node/layeredge"
)

// CurrentVersion is the only supported config format version.
const CurrentVersion = "1"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// ReferralCode registers wallets the node service does not know yet.
	ReferralCode string `yaml:"referral_code"`

	// UseProxy answers the "use proxy?" question up front. When nil the
	// operator is asked interactively at startup.
	UseProxy *bool `yaml:"use_proxy,omitempty"`

	// DataDir holds the run history database. Defaults to the XDG data dir.
	DataDir string `yaml:"data_dir"`

	Log       LogConfig        `yaml:"log"`
	Files     datasource.Files `yaml:"files"`
	Schedule  ScheduleConfig   `yaml:"schedule"`
	Node      layeredge.Config `yaml:"node"`
	Store     StoreConfig      `yaml:"store"`
	Gateway   gateway.Config   `yaml:"gateway"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Heartbeat heartbeat.Config `yaml:"heartbeat"`
}

// LogConfig controls log output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// ScheduleConfig controls the cycle cadence and housekeeping jobs.
// Durations use Go syntax ("20h", "90s").
type ScheduleConfig struct {
	Interval         string `yaml:"interval"`
	AccountTimeout   string `yaml:"account_timeout"`
	StateFlush       string `yaml:"state_flush"`
	HistoryPrune     string `yaml:"history_prune"`
	HistoryRetention string `yaml:"history_retention"`
}

// StoreConfig controls the run history database.
type StoreConfig struct {
	// Path overrides {data_dir}/history.db.
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// Default values.
const (
	DefaultInterval         = "20h"
	DefaultHistoryRetention = "720h"
	DefaultLogLevel         = "info"
)

// Default returns a configuration with every default applied. It is what
// edgecycle runs with when no config file exists.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Version == "" {
		c.Version = CurrentVersion
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	c.Files.Defaults()
	if c.Schedule.Interval == "" {
		c.Schedule.Interval = DefaultInterval
	}
	if c.Schedule.StateFlush == "" {
		c.Schedule.StateFlush = cron.DefaultStateFlushSchedule
	}
	if c.Schedule.HistoryPrune == "" {
		c.Schedule.HistoryPrune = cron.DefaultHistoryPruneSchedule
	}
	if c.Schedule.HistoryRetention == "" {
		c.Schedule.HistoryRetention = DefaultHistoryRetention
	}
	c.Node.Defaults()
	c.Heartbeat.Defaults()
}

// IntervalDuration returns the parsed cycle interval. Call after Validate.
func (s ScheduleConfig) IntervalDuration() time.Duration {
	return mustDuration(s.Interval)
}

// AccountTimeoutDuration returns the per-account timeout, zero when unset.
func (s ScheduleConfig) AccountTimeoutDuration() time.Duration {
	return mustDuration(s.AccountTimeout)
}

// RetentionDuration returns the history retention.
func (s ScheduleConfig) RetentionDuration() time.Duration {
	return mustDuration(s.HistoryRetention)
}

func mustDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
