// Package config defines the top-level configuration for the pool betting
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POOLBET_* environment variables.
type Config struct {
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Oracle    OracleConfig    `toml:"oracle"`
	Judge     JudgeConfig     `toml:"judge"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Ingest    IngestConfig    `toml:"ingest"`
	Server    ServerConfig    `toml:"server"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the change-signal bus.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the settlement
// audit archive. Archiving is disabled when Bucket is empty.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// OracleConfig holds consensus engine parameters.
type OracleConfig struct {
	// Sources selects which data-source adapters participate, in vote order.
	Sources       []string `toml:"sources"`
	SourceTimeout duration `toml:"source_timeout"`
	// TieBreak selects the majority-vote tie policy: "first_seen" keeps the
	// score observed first; "abstain" returns no verdict on a tie.
	TieBreak string `toml:"tie_break"`
	// RequestsPerSecond bounds requests per source host; 0 disables limiting.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// JudgeConfig holds the outcome-determination API parameters.
type JudgeConfig struct {
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Model   string   `toml:"model"`
	Referer string   `toml:"referer"`
	Timeout duration `toml:"timeout"`
}

// SchedulerConfig holds the lifecycle sweep intervals.
type SchedulerConfig struct {
	LockInterval   duration `toml:"lock_interval"`
	FreezeInterval duration `toml:"freeze_interval"`
	ResultInterval duration `toml:"result_interval"`
	// ResultBatchLimit caps how many candidate events one resulting sweep
	// examines.
	ResultBatchLimit int `toml:"result_batch_limit"`
}

// IngestConfig holds fixture ingestion parameters.
type IngestConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
	Sports   []string `toml:"sports"`
	// MatchDuration estimates projected end once a fixture's start is known.
	MatchDuration duration `toml:"match_duration"`
}

// ServerConfig holds the status API / websocket relay parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// MetricsConfig holds the Prometheus listener parameters.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// NotifyConfig holds operator notification channels.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "30s", "2h").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sane local-development values.
func Defaults() Config {
	return Config{
		Mode:     "full",
		LogLevel: "info",
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "poolbet",
			User:          "poolbet",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Oracle: OracleConfig{
			Sources:           []string{"flashscore", "sofascore", "livescore", "bbcsport"},
			SourceTimeout:     duration{20 * time.Second},
			TieBreak:          "first_seen",
			RequestsPerSecond: 1,
		},
		Judge: JudgeConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "xiaomi/mimo-v2-flash:free",
			Timeout: duration{45 * time.Second},
		},
		Scheduler: SchedulerConfig{
			LockInterval:     duration{10 * time.Second},
			FreezeInterval:   duration{10 * time.Second},
			ResultInterval:   duration{30 * time.Second},
			ResultBatchLimit: 50,
		},
		Ingest: IngestConfig{
			Enabled:       true,
			Interval:      duration{time.Minute},
			Sports:        []string{"football"},
			MatchDuration: duration{2 * time.Hour},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8090,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9109,
		},
	}
}

// Validate checks the configuration for inconsistencies. It is called once
// after Load, before the application starts.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "resolve", "ingest", "serve", "full":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Database == "") {
		return fmt.Errorf("config: postgres requires dsn or host+database")
	}

	switch c.Oracle.TieBreak {
	case "", "first_seen", "abstain":
	default:
		return fmt.Errorf("config: oracle.tie_break must be first_seen or abstain, got %q", c.Oracle.TieBreak)
	}
	if len(c.Oracle.Sources) == 0 {
		return fmt.Errorf("config: oracle requires at least one source")
	}
	if c.Oracle.SourceTimeout.Duration <= 0 {
		return fmt.Errorf("config: oracle.source_timeout must be positive")
	}

	if c.Scheduler.LockInterval.Duration <= 0 || c.Scheduler.FreezeInterval.Duration <= 0 || c.Scheduler.ResultInterval.Duration <= 0 {
		return fmt.Errorf("config: scheduler intervals must be positive")
	}
	if c.Scheduler.ResultBatchLimit <= 0 {
		return fmt.Errorf("config: scheduler.result_batch_limit must be positive")
	}

	if c.Ingest.Enabled && len(c.Ingest.Sports) == 0 {
		return fmt.Errorf("config: ingest requires at least one sport")
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("config: invalid metrics port %d", c.Metrics.Port)
	}

	return nil
}
