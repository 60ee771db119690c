package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POOLBET_* environment variable overrides, and
// returns the final Config. A missing file is not an error: defaults plus
// environment overrides still produce a usable local configuration. The
// returned Config has NOT been validated; callers should invoke
// Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POOLBET_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POOLBET_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POOLBET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POOLBET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POOLBET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POOLBET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POOLBET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POOLBET_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POOLBET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POOLBET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POOLBET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POOLBET_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POOLBET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POOLBET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POOLBET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POOLBET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POOLBET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POOLBET_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "POOLBET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POOLBET_S3_REGION")
	setStr(&cfg.S3.Bucket, "POOLBET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POOLBET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POOLBET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POOLBET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POOLBET_S3_FORCE_PATH_STYLE")

	// ── Oracle ──
	setStringSlice(&cfg.Oracle.Sources, "POOLBET_ORACLE_SOURCES")
	setDuration(&cfg.Oracle.SourceTimeout, "POOLBET_ORACLE_SOURCE_TIMEOUT")
	setStr(&cfg.Oracle.TieBreak, "POOLBET_ORACLE_TIE_BREAK")
	setFloat64(&cfg.Oracle.RequestsPerSecond, "POOLBET_ORACLE_REQUESTS_PER_SECOND")

	// ── Judge ──
	setStr(&cfg.Judge.BaseURL, "POOLBET_JUDGE_BASE_URL")
	setStr(&cfg.Judge.APIKey, "POOLBET_JUDGE_API_KEY")
	setStr(&cfg.Judge.APIKey, "OPENROUTER_API_KEY") // compatibility alias
	setStr(&cfg.Judge.Model, "POOLBET_JUDGE_MODEL")
	setStr(&cfg.Judge.Referer, "POOLBET_JUDGE_REFERER")
	setDuration(&cfg.Judge.Timeout, "POOLBET_JUDGE_TIMEOUT")

	// ── Scheduler ──
	setDuration(&cfg.Scheduler.LockInterval, "POOLBET_SCHEDULER_LOCK_INTERVAL")
	setDuration(&cfg.Scheduler.FreezeInterval, "POOLBET_SCHEDULER_FREEZE_INTERVAL")
	setDuration(&cfg.Scheduler.ResultInterval, "POOLBET_SCHEDULER_RESULT_INTERVAL")
	setInt(&cfg.Scheduler.ResultBatchLimit, "POOLBET_SCHEDULER_RESULT_BATCH_LIMIT")

	// ── Ingest ──
	setBool(&cfg.Ingest.Enabled, "POOLBET_INGEST_ENABLED")
	setDuration(&cfg.Ingest.Interval, "POOLBET_INGEST_INTERVAL")
	setStringSlice(&cfg.Ingest.Sports, "POOLBET_INGEST_SPORTS")
	setDuration(&cfg.Ingest.MatchDuration, "POOLBET_INGEST_MATCH_DURATION")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POOLBET_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POOLBET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POOLBET_SERVER_CORS_ORIGINS")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "POOLBET_METRICS_ENABLED")
	setInt(&cfg.Metrics.Port, "POOLBET_METRICS_PORT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POOLBET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POOLBET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POOLBET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POOLBET_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POOLBET_MODE")
	setStr(&cfg.LogLevel, "POOLBET_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
