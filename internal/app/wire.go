package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/mkirwan/betflow/internal/blob/s3"
	"github.com/mkirwan/betflow/internal/cache/redis"
	"github.com/mkirwan/betflow/internal/config"
	"github.com/mkirwan/betflow/internal/domain"
	"github.com/mkirwan/betflow/internal/notify"
	"github.com/mkirwan/betflow/internal/platform/betfair"
	"github.com/mkirwan/betflow/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate.
// Optional dependencies (stores, cache, limiter, archiver) are nil when the
// corresponding backend is disabled in configuration.
type Dependencies struct {
	Exchange *betfair.Client

	EvaluationStore domain.EvaluationStore
	SelectionStore  domain.SelectionStore

	BookCache   domain.BookCache
	RateLimiter domain.RateLimiter

	Archiver *s3blob.Archiver

	Notifier *notify.Notifier
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

	// --- Betfair exchange client ---
	exchange, err := betfair.NewClient(betfair.Config{
		APIEndpoint:       cfg.Betfair.APIEndpoint,
		LoginEndpoint:     cfg.Betfair.LoginEndpoint,
		KeepAliveEndpoint: cfg.Betfair.KeepAliveEndpoint,
		AppKey:            cfg.Betfair.AppKey,
		Username:          cfg.Betfair.Username,
		Password:          cfg.Betfair.Password,
		CertFile:          cfg.Betfair.CertFile,
		KeyFile:           cfg.Betfair.KeyFile,
		Timeout:           cfg.Betfair.Timeout.Duration,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: betfair: %w", err)
	}
	deps.Exchange = exchange

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
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
		deps.EvaluationStore = postgres.NewEvaluationStore(pool)
		deps.SelectionStore = postgres.NewSelectionStore(pool)
	}

	// --- Redis ---
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

		deps.BookCache = redis.NewBookCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
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

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))
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

	return deps, cleanup, nil
}
