package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kardianos/service"

	"github.com/flemzord/edgecycle/internal/scheduler"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edgecycle.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_Version(t *testing.T) {
	t.Parallel()

	var stdout, stderr strings.Builder
	if code := run([]string{"version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "edgecycle dev") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRun_ConfigCheckRedactsSecrets(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `version: "1"
gateway:
  bind: "127.0.0.1:9090"
  bearer_token: "s3cr3t-token"
`)
	var stdout, stderr strings.Builder
	if code := run([]string{"config", "check", path}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr.String())
	}
	out := stdout.String()
	if strings.Contains(out, "s3cr3t-token") {
		t.Errorf("token leaked: %s", out)
	}
	if !strings.Contains(out, "***REDACTED***") {
		t.Errorf("expected redaction placeholder: %s", out)
	}
	if !strings.Contains(out, "Configuration OK") {
		t.Errorf("missing OK line: %s", out)
	}
}

func TestRun_ConfigCheckInvalid(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "version: \"1\"\nlog:\n  level: loud\n")
	var stdout, stderr strings.Builder
	if code := run([]string{"config", "check", path}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Error:") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRun_StartNoWalletsExitsZero(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, `version: "1"
use_proxy: false
data_dir: "`+filepath.Join(dir, "data")+`"
files:
  wallets: "`+filepath.Join(dir, "wallets.json")+`"
  proxies: "`+filepath.Join(dir, "proxy.txt")+`"
  local_state: "`+filepath.Join(dir, "localStorage.json")+`"
  tasks: "`+filepath.Join(dir, "tasks.json")+`"
`)
	var stdout, stderr strings.Builder
	code := run([]string{"start", "--config", path, "--no-banner"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "No wallets found") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRun_StartRejectsProxyMode(t *testing.T) {
	t.Parallel()

	var stdout, stderr strings.Builder
	if code := run([]string{"start", "--proxy", "maybe"}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestCheckServiceConfig(t *testing.T) {
	t.Parallel()

	unset := writeConfig(t, "version: \"1\"\n")
	if _, err := checkServiceConfig(unset); !errors.Is(err, errServiceNeedsProxyChoice) {
		t.Errorf("error = %v, want errServiceNeedsProxyChoice", err)
	}

	set := writeConfig(t, "version: \"1\"\nuse_proxy: true\n")
	got, err := checkServiceConfig(set)
	if err != nil {
		t.Fatalf("checkServiceConfig: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("path %q is not absolute", got)
	}
}

func TestServiceConfig(t *testing.T) {
	t.Parallel()

	cfg := serviceConfig("/etc/edgecycle.yaml")
	want := []string{"service", "run", "--config", "/etc/edgecycle.yaml"}
	if strings.Join(cfg.Arguments, " ") != strings.Join(want, " ") {
		t.Errorf("Arguments = %v, want %v", cfg.Arguments, want)
	}
	if statusText(service.StatusRunning) != "running" {
		t.Error("unexpected status text")
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"no accounts", scheduler.ErrNoAccounts, 0},
		{"wrapped no accounts", fmt.Errorf("startup: %w", scheduler.ErrNoAccounts), 0},
		{"insufficient proxies", scheduler.ErrInsufficientProxies, 1},
		{"other", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
