package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath = "FQ_CONFIG"
	EnvAPIURL     = "FQ_API_URL"
	EnvLogLevel   = "FQ_LOG_LEVEL"
	EnvLogFile    = "FQ_LOG_FILE"
)

const (
	defaultAPITimeout      = 15 * time.Second
	defaultDismissAfter    = 5 * time.Second
	defaultRefreshInterval = 30 * time.Second
	defaultLocalAPIURL     = "http://localhost:8080/api/v1"
)

// Config holds resolved client configuration.
type Config struct {
	Path string

	APIBaseURLs []string
	SiteURL     string
	APITimeout  time.Duration

	StoragePath string

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int

	DismissAfter    time.Duration
	RefreshInterval time.Duration
	LevelsFile      string
	FeaturesFile    string
}

type configFile struct {
	API struct {
		BaseURLs []string `yaml:"base_urls"`
		SiteURL  string   `yaml:"site_url"`
		Timeout  string   `yaml:"timeout"`
	} `yaml:"api"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
	} `yaml:"log"`
	Notifications struct {
		DismissAfter string `yaml:"dismiss_after"`
	} `yaml:"notifications"`
	Gamification struct {
		RefreshInterval string `yaml:"refresh_interval"`
		LevelsFile      string `yaml:"levels_file"`
		FeaturesFile    string `yaml:"features_file"`
	} `yaml:"gamification"`
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if trimmed == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		return filepath.Join(home, ".finquest", "config.yaml")
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the YAML file at path (a missing file is fine), then applies env
// overrides on top of it.
func Load(path string) (Config, error) {
	cfg := Config{
		Path:            path,
		APITimeout:      defaultAPITimeout,
		LogLevel:        "info",
		LogMaxSizeMB:    10,
		LogMaxBackups:   3,
		DismissAfter:    defaultDismissAfter,
		RefreshInterval: defaultRefreshInterval,
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var f configFile
		if errUnmarshal := yaml.Unmarshal(raw, &f); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
		if err := cfg.apply(f); err != nil {
			return Config{}, err
		}
	case !os.IsNotExist(err):
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	if u := strings.TrimSpace(os.Getenv(EnvAPIURL)); u != "" {
		cfg.APIBaseURLs = append([]string{u}, cfg.APIBaseURLs...)
	}
	cfg.LogLevel = envOrDefault(EnvLogLevel, cfg.LogLevel)
	cfg.LogFile = envOrDefault(EnvLogFile, cfg.LogFile)
	cfg.APIBaseURLs = dedupe(cfg.APIBaseURLs)
	return cfg, nil
}

func (c *Config) apply(f configFile) error {
	c.APIBaseURLs = trimNonEmpty(f.API.BaseURLs)
	c.SiteURL = strings.TrimSpace(f.API.SiteURL)
	if err := parseDuration("api.timeout", f.API.Timeout, &c.APITimeout); err != nil {
		return err
	}
	c.StoragePath = strings.TrimSpace(f.Storage.Path)
	if lvl := strings.TrimSpace(f.Log.Level); lvl != "" {
		c.LogLevel = lvl
	}
	c.LogFile = strings.TrimSpace(f.Log.File)
	if f.Log.MaxSizeMB > 0 {
		c.LogMaxSizeMB = f.Log.MaxSizeMB
	}
	if f.Log.MaxBackups > 0 {
		c.LogMaxBackups = f.Log.MaxBackups
	}
	if err := parseDuration("notifications.dismiss_after", f.Notifications.DismissAfter, &c.DismissAfter); err != nil {
		return err
	}
	if err := parseDuration("gamification.refresh_interval", f.Gamification.RefreshInterval, &c.RefreshInterval); err != nil {
		return err
	}
	c.LevelsFile = strings.TrimSpace(f.Gamification.LevelsFile)
	c.FeaturesFile = strings.TrimSpace(f.Gamification.FeaturesFile)
	return nil
}

// FallbackAPIURLs returns the guesses used after every configured candidate
// failed: one derived from the site URL's host, then localhost.
func (c Config) FallbackAPIURLs() []string {
	var out []string
	if guess := hostGuess(c.SiteURL); guess != "" {
		out = append(out, guess)
	}
	return append(out, defaultLocalAPIURL)
}

func hostGuess(site string) string {
	site = strings.TrimSpace(site)
	if site == "" {
		return ""
	}
	if !strings.Contains(site, "://") {
		site = "https://" + site
	}
	scheme, rest, _ := strings.Cut(site, "://")
	host, _, _ := strings.Cut(rest, "/")
	if host == "" {
		return ""
	}
	return scheme + "://" + host + "/api/v1"
}

func parseDuration(field, raw string, dst *time.Duration) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", field, err)
	}
	if d > 0 {
		*dst = d
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimRight(strings.TrimSpace(v), "/")
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimRight(strings.TrimSpace(v), "/")
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
