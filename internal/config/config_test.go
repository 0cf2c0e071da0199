package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvLogFile, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.APITimeout != defaultAPITimeout {
		t.Fatalf("expected timeout=%s, got %s", defaultAPITimeout, cfg.APITimeout)
	}
	if cfg.DismissAfter != 5*time.Second || cfg.RefreshInterval != 30*time.Second {
		t.Fatalf("unexpected defaults: dismiss=%s refresh=%s", cfg.DismissAfter, cfg.RefreshInterval)
	}
	if got := cfg.FallbackAPIURLs(); len(got) != 1 || got[0] != defaultLocalAPIURL {
		t.Fatalf("expected only localhost fallback, got %v", got)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	t.Setenv(EnvAPIURL, "https://env.example.com/api/v1/")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogFile, "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `api:
  base_urls:
    - https://api.example.com/api/v1
    - " https://env.example.com/api/v1 "
  site_url: app.example.com/dashboard
  timeout: 3s
log:
  level: warn
notifications:
  dismiss_after: 2s
gamification:
  refresh_interval: 1m
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []string{"https://env.example.com/api/v1", "https://api.example.com/api/v1"}
	if len(cfg.APIBaseURLs) != len(want) {
		t.Fatalf("expected base urls %v, got %v", want, cfg.APIBaseURLs)
	}
	for i := range want {
		if cfg.APIBaseURLs[i] != want[i] {
			t.Fatalf("expected base urls %v, got %v", want, cfg.APIBaseURLs)
		}
	}
	if cfg.APITimeout != 3*time.Second {
		t.Fatalf("expected timeout=3s, got %s", cfg.APITimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected env log level, got %q", cfg.LogLevel)
	}
	if cfg.DismissAfter != 2*time.Second || cfg.RefreshInterval != time.Minute {
		t.Fatalf("unexpected durations: dismiss=%s refresh=%s", cfg.DismissAfter, cfg.RefreshInterval)
	}
	fallback := cfg.FallbackAPIURLs()
	if len(fallback) != 2 || fallback[0] != "https://app.example.com/api/v1" {
		t.Fatalf("unexpected fallback urls %v", fallback)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api:\n  timeout: soon\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error for invalid duration")
	}
}
