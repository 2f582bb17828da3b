package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rendersync"
	"rendersync/internal/adapter/repo"
	"rendersync/internal/billing"
	"rendersync/internal/cache"
	"rendersync/internal/domain"
	"rendersync/internal/http/handlers"
	"rendersync/internal/http/httpapi"
	"rendersync/internal/infra"
	"rendersync/internal/provider"
	"rendersync/internal/provider/fal"
	"rendersync/internal/provider/sim"
	"rendersync/internal/reconcile"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()
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

	app := handlers.NewApp(cfg, logger)
	app.Jobs = jobs
	app.Wallets = wallets
	app.Billing = bill
	app.Reconciler = rec
	app.Adapters = adapters
	app.AdminPerms = cache.New(cfg.AdminCacheTTL, nil, repo.NewAdminLookup(runner))
	app.Metrics = metrics

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app))

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("api listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
