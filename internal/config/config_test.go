package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RefreshCron != "*/5 * * * *" {
		t.Errorf("default refresh: %q", cfg.RefreshCron)
	}
	if cfg.FetchTimeoutSeconds != 5 {
		t.Errorf("default fetch timeout: %d", cfg.FetchTimeoutSeconds)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config permissions: got %o, want 600", perm)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Listen = "127.0.0.1:9000"
	cfg.Timezone = "Europe/Berlin"
	cfg.Feeds = []FeedConfig{{Name: "Team", URL: "https://example.com/team.ics"}}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Listen != "127.0.0.1:9000" || loaded.Timezone != "Europe/Berlin" {
		t.Errorf("round trip lost fields: %+v", loaded)
	}
	if len(loaded.Feeds) != 1 || loaded.Feeds[0].URL != "https://example.com/team.ics" {
		t.Errorf("feeds lost: %+v", loaded.Feeds)
	}
}

func TestNormalizeFillsInvalidValues(t *testing.T) {
	cfg := &Config{
		Store: StoreConfig{Driver: "postgres"},
	}
	cfg.Normalize()

	if cfg.Listen == "" || cfg.RefreshCron == "" {
		t.Errorf("normalize left empty basics: %+v", cfg)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("unknown driver not coerced: %q", cfg.Store.Driver)
	}
	if cfg.Store.Path == "" {
		t.Errorf("store path left empty")
	}
	if cfg.FetchTimeoutSeconds <= 0 {
		t.Errorf("fetch timeout left zero")
	}
}
