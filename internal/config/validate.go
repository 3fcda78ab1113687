package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/edgecycle/internal/cron"
)

// Validate checks a Config with defaults applied. All problems are
// reported together.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: %q)", cfg.Version, CurrentVersion))
	}

	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, validateFiles(cfg)...)
	errs = append(errs, validateSchedule(cfg.Schedule)...)

	if err := cfg.Node.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if err := cfg.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if err := cfg.Heartbeat.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if cfg.Gateway.BearerToken != "" && !cfg.Gateway.Enabled() {
		errs = append(errs, errors.New("config: gateway.bearer_token is set but gateway.bind is empty"))
	}

	return errors.Join(errs...)
}

func validateFiles(cfg *Config) []error {
	var errs []error
	fields := []struct{ name, path string }{
		{"files.wallets", cfg.Files.Wallets},
		{"files.proxies", cfg.Files.Proxies},
		{"files.local_state", cfg.Files.LocalState},
		{"files.tasks", cfg.Files.Tasks},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.path) == "" {
			errs = append(errs, fmt.Errorf("config: %s must not be empty", f.name))
		}
	}
	return errs
}

func validateSchedule(s ScheduleConfig) []error {
	var errs []error

	positive := func(name, value string, allowZero bool) {
		if value == "" && allowZero {
			return
		}
		d, err := time.ParseDuration(value)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("config: schedule.%s: invalid duration %q: %w", name, value, err))
		case d < 0 || (d == 0 && !allowZero):
			errs = append(errs, fmt.Errorf("config: schedule.%s must be positive, got %s", name, value))
		}
	}
	positive("interval", s.Interval, false)
	positive("account_timeout", s.AccountTimeout, true)
	positive("history_retention", s.HistoryRetention, false)

	crons := []struct{ name, expr string }{
		{"state_flush", s.StateFlush},
		{"history_prune", s.HistoryPrune},
	}
	for _, c := range crons {
		if err := cron.ParseSchedule(c.expr); err != nil {
			errs = append(errs, fmt.Errorf("config: schedule.%s: invalid cron expression %q: %w", c.name, c.expr, err))
		}
	}
	return errs
}

// ParseLevel maps a config level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log.level: unknown level %q (want debug, info, warn or error)", s)
	}
	return level, nil
}
