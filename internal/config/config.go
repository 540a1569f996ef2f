package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FeedConfig describes one remote calendar feed to ensure at startup.
type FeedConfig struct {
	// Name is the human-friendly label for the source.
	Name string `yaml:"name" json:"name"`
	// URL is the feed endpoint.
	URL string `yaml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// StoreConfig selects the persistence backend for registry state.
type StoreConfig struct {
	// Driver is "sqlite" or "file".
	Driver string `yaml:"driver" json:"driver"`
	// Path is the database file (sqlite) or directory (file).
	Path string `yaml:"path" json:"path"`
}

// Config is the top-level daemon configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for local date values and window
	// boundaries (e.g. "Europe/Berlin"). Empty means the host's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is the cron-style schedule for the periodic feed sync.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// FetchTimeoutSeconds bounds a single remote feed fetch.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`

	// WatchImports re-imports file-backed sources when their files change.
	WatchImports bool `yaml:"watch_imports" json:"watch_imports"`

	// Store selects where registry state is persisted.
	Store StoreConfig `yaml:"store" json:"store"`

	// Feeds are remote sources ensured on startup.
	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	// BasicAuth, if non-nil with both fields set, protects every endpoint
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              "127.0.0.1:8085",
		Timezone:            "",
		RefreshCron:         "*/5 * * * *",
		FetchTimeoutSeconds: 5,
		WatchImports:        true,
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "./var/opscal.db",
		},
		Feeds: []FeedConfig{},
	}
}

// Normalize fills missing or invalid values with defaults so partially
// filled configs from older versions still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8085"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/5 * * * *"
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = 5
	}
	switch c.Store.Driver {
	case "sqlite", "file":
	default:
		c.Store.Driver = "sqlite"
	}
	if c.Store.Path == "" {
		c.Store.Path = "./var/opscal.db"
		if c.Store.Driver == "file" {
			c.Store.Path = "./var/opscal-state"
		}
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
}

// Load reads the YAML config at path. A missing file is a first run: the
// default config is written there (0600) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".opscal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
