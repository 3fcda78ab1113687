package heartbeat

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config configures cycle report delivery.
type Config struct {
	// URL receives a JSON POST after every cycle. Empty disables reports.
	URL string `yaml:"url"`
	// Secret signs the body with HMAC-SHA256 in X-Signature-256.
	Secret string `yaml:"secret"`
	// OnlyFailures skips cycles where every account succeeded.
	OnlyFailures bool   `yaml:"only_failures"`
	QuietHours   string `yaml:"quiet_hours"`
	Timezone     string `yaml:"timezone"`
	Timeout      string `yaml:"timeout"`
	MaxRetries   int    `yaml:"max_retries"`
}

// Enabled reports whether a URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// Defaults fills zero-valued fields.
func (c *Config) Defaults() {
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.Timeout == "" {
		c.Timeout = "10s"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
}

// Validate checks the settings. Call Defaults first.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	var errs []error
	if u, err := url.Parse(c.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("heartbeat: invalid url %q", c.URL))
	}
	if c.QuietHours != "" {
		if _, err := ParseQuietHours(c.QuietHours); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("heartbeat: invalid timezone %q: %w", c.Timezone, err))
	}
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat: invalid timeout %q", c.Timeout))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("heartbeat: max_retries must be >= 0, got %d", c.MaxRetries))
	}
	return errors.Join(errs...)
}
