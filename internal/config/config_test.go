package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/edgecycle/internal/cron"
	"github.com/flemzord/edgecycle/internal/datasource"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if cfg.UseProxy != nil {
		t.Error("use_proxy should be unset so the operator is asked")
	}
	if cfg.Files.Wallets != datasource.DefaultWalletsFile || cfg.Files.Proxies != datasource.DefaultProxiesFile {
		t.Errorf("files = %+v", cfg.Files)
	}
	if got := cfg.Schedule.IntervalDuration(); got != 20*time.Hour {
		t.Errorf("interval = %v, want 20h", got)
	}
	if got := cfg.Schedule.AccountTimeoutDuration(); got != 0 {
		t.Errorf("account timeout = %v, want disabled", got)
	}
	if got := cfg.Schedule.RetentionDuration(); got != 720*time.Hour {
		t.Errorf("retention = %v, want 720h", got)
	}
	if cfg.Schedule.StateFlush != cron.DefaultStateFlushSchedule {
		t.Errorf("state_flush = %q", cfg.Schedule.StateFlush)
	}
	if cfg.Node.BaseURL == "" {
		t.Error("node defaults not applied")
	}
}

func TestParse(t *testing.T) {
	t.Setenv("EDGECYCLE_TEST_TOKEN", "s3cret")

	raw := `
version: "1"
referral_code: ${EDGECYCLE_TEST_REF:-abc123}
use_proxy: false
log:
  level: debug
files:
  wallets: data/wallets.json
schedule:
  interval: 1h
  account_timeout: 5m
node:
  max_retries: 1
gateway:
  bind: 127.0.0.1:8080
  bearer_token: ${EDGECYCLE_TEST_TOKEN}
  read_timeout: 3s
`
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.ReferralCode != "abc123" {
		t.Errorf("referral_code = %q, want default from expansion", cfg.ReferralCode)
	}
	if cfg.UseProxy == nil || *cfg.UseProxy {
		t.Errorf("use_proxy = %v, want explicit false", cfg.UseProxy)
	}
	if cfg.Files.Wallets != "data/wallets.json" || cfg.Files.Tasks != datasource.DefaultTasksFile {
		t.Errorf("files = %+v", cfg.Files)
	}
	if cfg.Schedule.IntervalDuration() != time.Hour || cfg.Schedule.AccountTimeoutDuration() != 5*time.Minute {
		t.Errorf("schedule = %+v", cfg.Schedule)
	}
	if cfg.Node.MaxRetries != 1 {
		t.Errorf("node.max_retries = %d", cfg.Node.MaxRetries)
	}
	if cfg.Gateway.BearerToken != "s3cret" || cfg.Gateway.ReadTimeout != 3*time.Second {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
	if lvl, _ := ParseLevel(cfg.Log.Level); lvl != slog.LevelDebug {
		t.Errorf("level = %v", lvl)
	}
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(empty): %v", err)
	}
	if cfg.Version != CurrentVersion || cfg.Schedule.Interval != DefaultInterval {
		t.Errorf("empty document should yield defaults, got %+v", cfg)
	}
}

func TestParse_UnknownField(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte("version: \"1\"\nref_code: x\n")); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestParse_UnresolvedVariable(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("referral_code: ${EDGECYCLE_SURELY_UNSET_VAR}\n"))
	if err == nil || !strings.Contains(err.Error(), "EDGECYCLE_SURELY_UNSET_VAR") {
		t.Fatalf("err = %v, want unresolved variable", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantSub string
	}{
		{"bad version", func(c *Config) { c.Version = "2" }, "unsupported version"},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad interval", func(c *Config) { c.Schedule.Interval = "soon" }, "schedule.interval"},
		{"zero interval", func(c *Config) { c.Schedule.Interval = "0s" }, "must be positive"},
		{"negative timeout", func(c *Config) { c.Schedule.AccountTimeout = "-1m" }, "account_timeout"},
		{"bad cron", func(c *Config) { c.Schedule.StateFlush = "every minute" }, "schedule.state_flush"},
		{"blank file", func(c *Config) { c.Files.Proxies = "  " }, "files.proxies"},
		{"bad node timeout", func(c *Config) { c.Node.Timeout = "x" }, "timeout"},
		{"bad otlp", func(c *Config) { c.Telemetry.OTLPEndpoint = "://" }, "otlp_endpoint"},
		{"token without bind", func(c *Config) { c.Gateway.BearerToken = "t" }, "gateway.bind"},
		{"bad heartbeat url", func(c *Config) { c.Heartbeat.URL = "hooks.example.com" }, "heartbeat: invalid url"},
		{"bad quiet hours", func(c *Config) {
			c.Heartbeat.URL = "https://hooks.example.com"
			c.Heartbeat.QuietHours = "night"
		}, "quiet hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Version = ""
	cfg.Schedule.Interval = "x"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "version") || !strings.Contains(msg, "schedule.interval") {
		t.Errorf("joined error missing parts: %v", msg)
	}
}

func TestResolve_XDG(t *testing.T) {
	dir := t.TempDir()
	want := writeFile(t, dir, filepath.Join("edgecycle", FileName), "version: \"1\"\n")
	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestLoadDefault_NoFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault("")
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
	if cfg.Schedule.Interval != DefaultInterval {
		t.Errorf("expected defaults, got %+v", cfg.Schedule)
	}
}

func TestLoadDefault_ExplicitPath(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "custom.yaml", "version: \"1\"\nreferral_code: xyz\n")
	cfg, got, err := LoadDefault(path)
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	if got != path || cfg.ReferralCode != "xyz" {
		t.Errorf("got path %q cfg %+v", got, cfg)
	}

	if _, _, err := LoadDefault(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing explicit file: err = %v, want ErrNotExist", err)
	}
}
