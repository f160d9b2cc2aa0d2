package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/stocksync/internal/core"
)

func TestLoad_FromFile(t *testing.T) {
	content := []byte(`
database:
  driver: sqlite
  dsn: "stocks.db"

cache:
  type: localfs
  path: "/tmp/stocksync/cache"
  ttl:
    intraday: 6h

provider:
  delay: 200ms

sync:
  time_spans: [0, 3, 5]
`)

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected sqlite, got %s", cfg.Database.Driver)
	}
	if cfg.Cache.TTL.Intraday != 6*time.Hour {
		t.Errorf("expected intraday ttl 6h, got %s", cfg.Cache.TTL.Intraday)
	}
	if cfg.Cache.TTL.Reference != 7*24*time.Hour {
		t.Errorf("expected default reference ttl kept, got %s", cfg.Cache.TTL.Reference)
	}
	if cfg.Provider.Delay != 200*time.Millisecond {
		t.Errorf("expected delay 200ms, got %s", cfg.Provider.Delay)
	}
	if len(cfg.Sync.TimeSpans) != 3 || cfg.Sync.TimeSpans[2] != 5 {
		t.Errorf("unexpected time spans %v", cfg.Sync.TimeSpans)
	}
	if cfg.Sync.InitDays != 15 {
		t.Errorf("expected default init_days 15, got %d", cfg.Sync.InitDays)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("STOCKSYNC_TEST_DSN", "postgres://user:pw@localhost/stocks")
	content := []byte(`
database:
  dsn: "${STOCKSYNC_TEST_DSN}"
`)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Database.DSN != "postgres://user:pw@localhost/stocks" {
		t.Errorf("dsn not expanded: %s", cfg.Database.DSN)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("STOCKSYNC_TEST_HEXIN=abc123\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("STOCKSYNC_TEST_HEXIN") })

	if err := LoadEnv(envPath); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if os.Getenv("STOCKSYNC_TEST_HEXIN") != "abc123" {
		t.Error("expected variable from .env")
	}
	if err := LoadEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Sync.InitDays != 15 {
		t.Errorf("expected default init_days 15, got %d", cfg.Sync.InitDays)
	}
	if cfg.Screener.BoardPrefix != "300" {
		t.Errorf("expected default board 300, got %s", cfg.Screener.BoardPrefix)
	}
	if cfg.Schedule.Cron != "0 0 16 * * *" {
		t.Errorf("unexpected default cron %s", cfg.Schedule.Cron)
	}
}

func validConfig() *Config {
	cfg := Defaults()
	cfg.Database.DSN = "file::memory:"
	cfg.Database.Driver = "sqlite"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr *core.Error
	}{
		{"valid config", func(*Config) {}, nil},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }, core.ErrConfigMissing},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, core.ErrConfigInvalid},
		{"unknown cache type", func(c *Config) { c.Cache.Type = "redis" }, core.ErrConfigInvalid},
		{"s3 without bucket", func(c *Config) { c.Cache.Type = "s3" }, core.ErrConfigMissing},
		{"zero ttl", func(c *Config) { c.Cache.TTL.Intraday = 0 }, core.ErrConfigInvalid},
		{"negative delay", func(c *Config) { c.Provider.Delay = -time.Second }, core.ErrConfigInvalid},
		{"zero init days", func(c *Config) { c.Sync.InitDays = 0 }, core.ErrConfigInvalid},
		{"init days beyond lookback", func(c *Config) { c.Sync.InitDays = 40 }, core.ErrConfigInvalid},
		{"window too small", func(c *Config) { c.Screener.Window = 1 }, core.ErrConfigInvalid},
		{"bad time span", func(c *Config) { c.Sync.TimeSpans = []int{0, 7} }, core.ErrConfigInvalid},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "daily" }, core.ErrConfigInvalid},
		{"unknown job", func(c *Config) { c.Schedule.Jobs = []string{"daily", "options"} }, core.ErrConfigInvalid},
		{"breaker without threshold", func(c *Config) {
			c.Provider.Breaker.Enabled = true
			c.Provider.Breaker.MaxFailures = 0
		}, core.ErrConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %s", err, tt.wantErr.Code)
			}
		})
	}
}
