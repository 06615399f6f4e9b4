package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/auth-service/internal/api/http"
	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/messaging"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/persistence"
	"github.com/spec-kit/auth-service/internal/ratelimit"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/internal/service"
	"github.com/spec-kit/auth-service/internal/worker"
)

const limiterSweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.OpenPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	workers := worker.NewGroup(logger)
	healthDeps := map[string]handlers.Pinger{"postgres": pg}

	var store ratelimit.CounterStore
	switch cfg.RateLimit.Store {
	case "memory":
		mem := ratelimit.NewMemoryStore()
		workers.StartSweeper(ctx, "ratelimit-sweeper", mem, limiterSweepInterval)
		store = mem
	default:
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		healthDeps["redis"] = redis
		store = ratelimit.NewRedisStore(redis.Client, "")
	}

	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		Store: store,
		Policies: []ratelimit.Policy{
			limitPolicy(ratelimit.PolicyLogin, cfg.RateLimit.Login),
			limitPolicy(ratelimit.PolicyGeneral, cfg.RateLimit.General),
		},
		Timeout:  cfg.Auth.StoreTimeout(),
		Logger:   logger.Named("ratelimit"),
		Recorder: metrics,
	})
	if err != nil {
		logger.Fatal("failed to build rate limiter", zap.Error(err))
	}

	var publisher messaging.Publisher
	if len(cfg.Notification.KafkaBrokers) > 0 {
		producer := messaging.NewKafkaProducer(cfg.Notification.KafkaBrokers, cfg.Notification.KafkaTopic, logger)
		defer producer.Close() //nolint:errcheck
		publisher = producer
	}

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, publisher, logger.Named("notifications"), cfg.Notification)
	worker.StartNotificationWorker(ctx, workers, notificationService)

	users := repository.NewUserRepository(pg.PoolHandle())
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, logger.Named("tokens"))

	credentialService := service.NewCredentialService(service.CredentialDependencies{
		Store:        users,
		Hasher:       auth.NewBcryptHasher(cfg.Auth.MaxConcurrentHashes),
		Tokens:       tokens,
		Resets:       auth.NewResetTokenManager(cfg.Auth.ResetHashSecret()),
		Notifier:     notificationService,
		Logger:       logger.Named("credentials"),
		Observer:     metrics,
		StoreTimeout: cfg.Auth.StoreTimeout(),
	})
	profileService := service.NewProfileService(users, logger.Named("profiles"), cfg.Auth.StoreTimeout())

	app := fiber.New(fiber.Config{
		AppName:     cfg.App.Name,
		ProxyHeader: cfg.App.ProxyHeader,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthDeps),
		Auth:           handlers.NewAuthHandler(credentialService),
		Profile:        handlers.NewProfileHandler(profileService, credentialService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Limiter:        limiter,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	workers.Wait()
}

func limitPolicy(name string, p config.LimitPolicy) ratelimit.Policy {
	return ratelimit.Policy{Name: name, Points: p.Points, Window: p.Window(), Block: p.Block()}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
