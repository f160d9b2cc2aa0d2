package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/newthinker/stocksync/internal/core"
)

// Job names accepted by the schedule section and the sync command.
const (
	JobBasic     = "basic"
	JobDaily     = "daily"
	JobFundFlow  = "fundflow"
	JobMoneyFlow = "moneyflow"
	JobFinancial = "financial"
	JobScreen    = "screen"
)

// KnownJobs lists jobs in the order a full run executes them.
var KnownJobs = []string{JobBasic, JobDaily, JobFundFlow, JobMoneyFlow, JobFinancial, JobScreen}

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Provider ProviderConfig `mapstructure:"provider"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Screener ScreenerConfig `mapstructure:"screener"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type DatabaseConfig struct {
	Driver        string        `mapstructure:"driver"` // "postgres", "mysql" or "sqlite"
	DSN           string        `mapstructure:"dsn"`
	MaxOpenConns  int           `mapstructure:"max_open_conns"`
	MaxIdleConns  int           `mapstructure:"max_idle_conns"`
	LogLevel      string        `mapstructure:"log_level"` // silent, error, warn, info
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

type CacheConfig struct {
	Type string    `mapstructure:"type"` // "localfs" or "s3"
	Path string    `mapstructure:"path"` // For localfs
	S3   S3Config  `mapstructure:"s3"`   // For S3
	TTL  TTLConfig `mapstructure:"ttl"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// TTLConfig holds the freshness window per cache class.
type TTLConfig struct {
	Reference time.Duration `mapstructure:"reference"`
	Intraday  time.Duration `mapstructure:"intraday"`
}

// ProviderConfig holds upstream HTTP settings shared by all collectors.
type ProviderConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	Delay     time.Duration `mapstructure:"delay"`
	Jitter    time.Duration `mapstructure:"jitter"`
	THS       THSConfig     `mapstructure:"ths"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

// THSConfig holds 10jqka settings. HexinV is the anti-bot cookie value.
type THSConfig struct {
	HexinV   string `mapstructure:"hexin_v"`
	MaxPages int    `mapstructure:"max_pages"`
}

// BreakerConfig configures the optional circuit breaker around collectors.
type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SyncConfig holds the windows each entity job syncs.
type SyncConfig struct {
	InitDays           int   `mapstructure:"init_days"`
	CalendarLookback   int   `mapstructure:"calendar_lookback"`
	FundFlowDays       int   `mapstructure:"fund_flow_days"`
	FundFlowWindowDays int   `mapstructure:"fund_flow_window_days"`
	FinancialYears     int   `mapstructure:"financial_years"`
	TimeSpans          []int `mapstructure:"time_spans"`
}

// ScreenerConfig holds consecutive-rise screener settings.
type ScreenerConfig struct {
	BoardPrefix  string `mapstructure:"board_prefix"`
	LookbackDays int    `mapstructure:"lookback_days"`
	MinRows      int    `mapstructure:"min_rows"`
	Window       int    `mapstructure:"window"`
}

// ScheduleConfig holds the daemon trigger.
type ScheduleConfig struct {
	Cron           string   `mapstructure:"cron"`
	Jobs           []string `mapstructure:"jobs"`
	RunImmediately bool     `mapstructure:"run_immediately"`
}

// LogConfig holds logger output settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// LoadEnv loads a .env file into the process environment when present.
// Variables already set are not overridden.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from file on top of Defaults.
func Load(path string) (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:        "postgres",
			MaxOpenConns:  10,
			MaxIdleConns:  5,
			LogLevel:      "warn",
			SlowThreshold: 500 * time.Millisecond,
		},
		Cache: CacheConfig{
			Type: "localfs",
			Path: "data",
			TTL: TTLConfig{
				Reference: 7 * 24 * time.Hour,
				Intraday:  12 * time.Hour,
			},
		},
		Provider: ProviderConfig{
			Timeout:   10 * time.Second,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			Delay:     500 * time.Millisecond,
			Jitter:    300 * time.Millisecond,
			THS: THSConfig{
				MaxPages: 200,
			},
			Breaker: BreakerConfig{
				MaxFailures: 5,
				Timeout:     60 * time.Second,
			},
		},
		Sync: SyncConfig{
			InitDays:           15,
			CalendarLookback:   30,
			FundFlowDays:       3,
			FundFlowWindowDays: 7,
			FinancialYears:     2,
			TimeSpans:          []int{0},
		},
		Screener: ScreenerConfig{
			BoardPrefix:  "300",
			LookbackDays: 7,
			MinRows:      5,
			Window:       3,
		},
		Schedule: ScheduleConfig{
			Cron: "0 0 16 * * *",
			Jobs: []string{JobBasic, JobDaily, JobFundFlow, JobMoneyFlow, JobFinancial},
		},
		Log: LogConfig{
			Level:      "info",
			File:       "log/stocksync.log",
			MaxSizeMB:  100,
			MaxAgeDays: 30,
			MaxBackups: 10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Database validation
	if c.Database.DSN == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("database.dsn is required"))
	}
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	// Cache validation
	switch c.Cache.Type {
	case "localfs":
		if c.Cache.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("cache.path required when type is localfs"))
		}
	case "s3":
		if c.Cache.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("cache.s3.bucket required when type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown cache type %q", c.Cache.Type))
	}
	if c.Cache.TTL.Reference <= 0 || c.Cache.TTL.Intraday <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("cache ttl must be positive, got reference=%s intraday=%s",
				c.Cache.TTL.Reference, c.Cache.TTL.Intraday))
	}

	// Provider validation
	if c.Provider.Timeout <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("provider.timeout must be positive, got %s", c.Provider.Timeout))
	}
	if c.Provider.Delay < 0 || c.Provider.Jitter < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("provider delay and jitter cannot be negative"))
	}
	if c.Provider.Breaker.Enabled && c.Provider.Breaker.MaxFailures == 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("provider.breaker.max_failures must be positive when enabled"))
	}

	// Sync windows
	windows := map[string]int{
		"sync.init_days":             c.Sync.InitDays,
		"sync.calendar_lookback":     c.Sync.CalendarLookback,
		"sync.fund_flow_days":        c.Sync.FundFlowDays,
		"sync.fund_flow_window_days": c.Sync.FundFlowWindowDays,
		"sync.financial_years":       c.Sync.FinancialYears,
		"screener.lookback_days":     c.Screener.LookbackDays,
		"screener.min_rows":          c.Screener.MinRows,
		"screener.window":            c.Screener.Window,
	}
	for name, n := range windows {
		if n <= 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("%s must be positive, got %d", name, n))
		}
	}
	if c.Sync.InitDays > c.Sync.CalendarLookback {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("sync.init_days (%d) exceeds sync.calendar_lookback (%d)",
				c.Sync.InitDays, c.Sync.CalendarLookback))
	}
	if c.Screener.Window < 2 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("screener.window must be at least 2, got %d", c.Screener.Window))
	}
	for _, span := range c.Sync.TimeSpans {
		if _, err := core.ParseTimeSpan(span); err != nil {
			return err
		}
	}

	// Schedule validation
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(c.Schedule.Cron); err != nil {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("schedule.cron %q: %w", c.Schedule.Cron, err))
	}
	for _, job := range c.Schedule.Jobs {
		if !slices.Contains(KnownJobs, job) {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown schedule job %q", job))
		}
	}

	return nil
}
