package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/workorder-service/internal/api/http"
	"github.com/spec-kit/workorder-service/internal/api/http/handlers"
	"github.com/spec-kit/workorder-service/internal/auth"
	"github.com/spec-kit/workorder-service/internal/config"
	"github.com/spec-kit/workorder-service/internal/events"
	"github.com/spec-kit/workorder-service/internal/ledger"
	"github.com/spec-kit/workorder-service/internal/observability"
	"github.com/spec-kit/workorder-service/internal/persistence"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/service"
	"github.com/spec-kit/workorder-service/internal/stats"
	"github.com/spec-kit/workorder-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name, cfg.App.Version)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	loc := cfg.Ledger.Location()
	callTimeout := cfg.Ledger.CallTimeout()

	pool := pg.PoolHandle()
	workOrderRepo := repository.NewWorkOrderRepository(pool)
	historyRepo := repository.NewWorkOrderHistoryRepository(pool)
	intervalRepo := repository.NewIntervalRepository(pool)
	catalogRepo := repository.NewOptionCatalogRepository(pool)
	retryQueue := repository.NewRedisRetryQueue(redis.Client, cfg.Ledger.RetryQueueKey)

	tracker := ledger.NewTracker(intervalRepo, logger.Named("ledger"), callTimeout, ledger.WithMetrics(metrics))
	engine := stats.NewEngine(intervalRepo, loc, callTimeout)

	catalogService := service.NewCatalogService(service.CatalogDependencies{
		Repo:    catalogRepo,
		Cache:   repository.NewRedisOptionCache(redis.Client),
		TTL:     cfg.Catalog.CacheTTL(),
		Timeout: callTimeout,
		Logger:  logger,
	})
	transitionService := service.NewTransitionService(service.TransitionDependencies{
		WorkOrderRepo: workOrderRepo,
		HistoryRepo:   historyRepo,
		Catalog:       catalogService,
		Tracker:       tracker,
		Dispatcher:    dispatcher,
		Logger:        logger,
		CallTimeout:   callTimeout,
	})
	alertService := service.NewLedgerAlertService(dispatcher, retryQueue, logger.Named("ledger_alerts"))
	worker.StartLedgerAlertWorker(alertService)

	sweep := worker.NewCoverageSweep(workOrderRepo, tracker, alertService, logger.Named("coverage_sweep"), callTimeout)
	scheduler, err := worker.StartCoverageSweep(ctx, cfg.Ledger.SweepCron, sweep, loc, logger)
	if err != nil {
		logger.Fatal("failed to schedule coverage sweep", zap.Error(err))
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		WorkOrders:     handlers.NewWorkOrdersHandler(transitionService),
		Stats:          handlers.NewStatsHandler(engine, cfg.Ledger.ThresholdHours, cfg.Ledger.EpochIn(loc)),
		Ledger:         handlers.NewLedgerHandler(tracker),
		Catalog:        handlers.NewCatalogHandler(catalogService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
