// The poller is the scheduled half of reconciliation: it sweeps in-flight
// jobs whose webhooks never arrived and archives finished renders off the
// provider CDN.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rendersync"
	"rendersync/internal/adapter/repo"
	"rendersync/internal/archive"
	"rendersync/internal/billing"
	"rendersync/internal/domain"
	"rendersync/internal/infra"
	"rendersync/internal/provider"
	"rendersync/internal/provider/fal"
	"rendersync/internal/provider/sim"
	"rendersync/internal/reconcile"
	"rendersync/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "poller")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	if err := infra.RunMigrations(rendersync.MigrationsFS, cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	runner := infra.NewSQLRunner(pool, logger)
	jobs := repo.NewJobRepository(runner)
	wallets := repo.NewWalletRepository(runner)
	usage := repo.NewUsageRepository(runner)
	bill := billing.NewService(wallets, usage, logger)
	metrics := infra.NewMetrics()

	adapters := map[domain.Provider]provider.Adapter{
		domain.ProviderSim: sim.New(),
	}
	if cfg.FalAPIKey != "" {
		falClient, err := fal.NewClient(fal.Options{
			APIKey:  cfg.FalAPIKey,
			BaseURL: cfg.FalBaseURL,
			Logger:  &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure fal client")
		}
		adapters[domain.ProviderFal] = falClient
	} else {
		logger.Warn().Msg("FAL_API_KEY not set, fal provider disabled")
	}

	rec := reconcile.New(jobs, bill, adapters, logger, metrics)

	store, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure archive storage")
	}
	archiver := archive.New(jobs, store, nil, logger, metrics)

	logger.Info().
		Dur("poll_interval", cfg.PollInterval).
		Dur("archive_interval", cfg.ArchiveInterval).
		Msg("poller started")

	go runEvery(ctx, cfg.PollInterval, func() {
		checked, updates, err := rec.PollBatch(ctx, cfg.PollBatchSize)
		if err != nil {
			logger.Error().Err(err).Msg("poll batch failed")
			return
		}
		if checked > 0 {
			logger.Info().Int("checked", checked).Int("updates", updates).Msg("poll batch done")
		}
	})
	go runEvery(ctx, cfg.ArchiveInterval, func() {
		archived, err := archiver.RunOnce(ctx, cfg.ArchiveBatchSize)
		if err != nil {
			logger.Error().Err(err).Msg("archive pass failed")
			return
		}
		if archived > 0 {
			logger.Info().Int("archived", archived).Msg("archive pass done")
		}
	})

	<-ctx.Done()
	logger.Info().Msg("poller stopped")
}

func newBlobStore(ctx context.Context, cfg *infra.Config) (storage.BlobStore, error) {
	if cfg.StorageBackend == "s3" {
		return storage.NewS3Store(ctx, storage.S3Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.PublicBaseURL+"/archive")
}

func runEvery(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	fn()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
