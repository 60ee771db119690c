package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/poolhouse/poolbet/internal/blob/s3"
	"github.com/poolhouse/poolbet/internal/cache/redis"
	"github.com/poolhouse/poolbet/internal/config"
	"github.com/poolhouse/poolbet/internal/domain"
	"github.com/poolhouse/poolbet/internal/metrics"
	"github.com/poolhouse/poolbet/internal/notify"
	"github.com/poolhouse/poolbet/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	EventStore  domain.EventStore
	MarketStore domain.MarketStore
	BetStore    domain.BetStore

	// SignalBus carries change notifications to the WebSocket relay. Nil when
	// Redis is disabled.
	SignalBus domain.SignalBus

	// Archiver persists settlement reports to object storage. Nil when no S3
	// bucket is configured or the mode never settles.
	Archiver domain.SettlementArchiver

	// Notifications
	Notifier *notify.Notifier

	// Metrics is nil when the Prometheus listener is disabled.
	Metrics *metrics.Metrics
}

// needsS3 returns true for modes that settle markets and therefore archive
// settlement reports.
func needsS3(mode string) bool {
	switch mode {
	case "resolve", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (every mode reads or writes the event store) ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.EventStore = postgres.NewEventStore(pool)
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.BetStore = postgres.NewBetStore(pool)

	// --- Redis signal bus (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- S3 settlement archive (optional) ---
	if needsS3(cfg.Mode) && cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewSettlementArchiver(s3blob.NewWriter(s3Client), "")
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Metrics ---
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New()
	}

	return deps, cleanup, nil
}
