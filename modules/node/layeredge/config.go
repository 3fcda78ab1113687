package layeredge

import (
	"errors"
	"fmt"
	"time"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Config holds the remote node service settings.
type Config struct {
	BaseURL           string  `yaml:"base_url"`
	Timeout           string  `yaml:"timeout"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries"`
	RetryDelay        string  `yaml:"retry_delay"`
	UserAgent         string  `yaml:"user_agent"`
}

// Defaults fills zero-valued fields.
func (c *Config) Defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://referralapi.layeredge.io/api"
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 2
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == "" {
		c.RetryDelay = "5s"
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
}

// Validate checks the settings. Call Defaults first.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("node: base_url is required"))
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("node: invalid timeout %q: %w", c.Timeout, err))
	}
	if _, err := time.ParseDuration(c.RetryDelay); err != nil {
		errs = append(errs, fmt.Errorf("node: invalid retry_delay %q: %w", c.RetryDelay, err))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("node: requests_per_second must be >= 0, got %v", c.RequestsPerSecond))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("node: max_retries must be >= 0, got %d", c.MaxRetries))
	}
	return errors.Join(errs...)
}

func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func (c *Config) parsedRetryDelay() time.Duration {
	d, err := time.ParseDuration(c.RetryDelay)
	if err != nil {
		return 5 * time.Second
	}
	return d
}
