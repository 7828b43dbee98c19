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

	httptransport "github.com/mahara-dz/mahara-api/internal/api/http"
	"github.com/mahara-dz/mahara-api/internal/api/http/handlers"
	"github.com/mahara-dz/mahara-api/internal/auth"
	"github.com/mahara-dz/mahara-api/internal/config"
	"github.com/mahara-dz/mahara-api/internal/events"
	"github.com/mahara-dz/mahara-api/internal/observability"
	"github.com/mahara-dz/mahara-api/internal/persistence"
	"github.com/mahara-dz/mahara-api/internal/ratelimit"
	"github.com/mahara-dz/mahara-api/internal/repository"
	"github.com/mahara-dz/mahara-api/internal/service"
	"github.com/mahara-dz/mahara-api/internal/worker"
	"github.com/mahara-dz/mahara-api/pkg/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	userRepo, closeStorage := openStorage(ctx, cfg, logger)
	defer closeStorage()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		if redis.Enabled() {
			limiter = ratelimit.NewRedisLimiter(redis.Client, "mahara:ratelimit:", cfg.RateLimit.Limit, cfg.RateLimit.Window())
		} else {
			limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window())
		}
	}

	dispatcher := events.NewInMemoryDispatcher()
	mailer := worker.NewNotificationWorker(256, nil, logger)
	mailer.Start(ctx)
	service.NewNotificationService(dispatcher, mailer, logger, cfg.Notification, cfg.App.BaseURL).RegisterHandlers()

	authService, err := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:   userRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to init auth service", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(authService.TokenManager(), userRepo, logger)
	authMiddleware := auth.NewAuthMiddleware(authenticator)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger),
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:      logger,
		Metrics:     metrics,
		Timeout:     cfg.App.RequestTimeout(),
		CORSOrigins: cfg.CORS.AllowOrigins,
		Limiter:     limiter,
	})

	var cache handlers.Pinger
	if redis.Enabled() {
		cache = redis
	}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, userRepo, cache),
		Auth:           handlers.NewAuthHandler(authService, validator.NewValidator(cfg.Auth.PasswordMinLength)),
		Admin:          handlers.NewAdminHandler(authService, metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	cancel()
	mailer.Wait()
}

// openStorage connects the configured database driver and returns the user
// repository backed by it.
func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.UserRepository, func()) {
	if cfg.Database.Driver == config.DriverSQLite {
		db, err := persistence.NewSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			logger.Fatal("failed to open sqlite", zap.Error(err))
		}
		return repository.NewSQLiteUserRepository(db.DB), db.Close
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	return repository.NewUserRepository(pg.PoolHandle()), pg.Close
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
