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

	"github.com/secureshare/portal/internal/access"
	httptransport "github.com/secureshare/portal/internal/api/http"
	"github.com/secureshare/portal/internal/api/http/handlers"
	"github.com/secureshare/portal/internal/auth"
	"github.com/secureshare/portal/internal/config"
	"github.com/secureshare/portal/internal/events"
	"github.com/secureshare/portal/internal/observability"
	"github.com/secureshare/portal/internal/persistence"
	"github.com/secureshare/portal/internal/repository"
	"github.com/secureshare/portal/internal/service"
	"github.com/secureshare/portal/internal/session"
	"github.com/secureshare/portal/internal/storage"
	"github.com/secureshare/portal/internal/worker"
)

const (
	grantSweepInterval = time.Minute
	webhookQueueSize   = 64
)

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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var (
		accountRepo      repository.AccountRepository
		verificationRepo repository.VerificationRepository
		fileRepo         repository.FileRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		accountRepo = repository.NewAccountRepository(pool)
		verificationRepo = repository.NewVerificationRepository(pool)
		fileRepo = repository.NewFileRepository(pool)
	} else {
		logger.Warn("using in-memory repositories; data is lost on restart")
		accountRepo = repository.NewMemoryAccountRepository()
		verificationRepo = repository.NewMemoryVerificationRepository()
		fileRepo = repository.NewMemoryFileRepository()
	}

	var redis *persistence.Redis
	if cfg.Session.Backend == config.SessionBackendRedis {
		redis, err = persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redis.Close()
	}

	sessionBackend, err := newSessionBackend(cfg, redis)
	if err != nil {
		logger.Fatal("failed to init session backend", zap.Error(err))
	}
	sessions := session.NewStore(sessionBackend, logger)

	blobs, err := newBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to init blob storage", zap.Error(err))
	}

	var grants storage.GrantStore
	if redis != nil {
		grants = storage.NewRedisGrantStore(redis.Client, cfg.Links.Retention())
	} else {
		memGrants := storage.NewMemoryGrantStore(cfg.Links.Retention())
		worker.StartSweeper(ctx, "grants", memGrants, grantSweepInterval, logger)
		grants = memGrants
	}

	dispatcher := events.NewInMemoryDispatcher()
	channels, err := notificationChannels(ctx, cfg.Notification, logger)
	if err != nil {
		logger.Fatal("failed to init notifications", zap.Error(err))
	}
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification, channels)
	worker.StartNotificationWorker(notificationService)

	credentialService := service.NewCredentialService(*cfg, service.CredentialDependencies{
		AccountRepo:      accountRepo,
		VerificationRepo: verificationRepo,
		Sessions:         sessions,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	if err := credentialService.EnsureOpsAccount(ctx, cfg.Auth.BootstrapOpsEmail, cfg.Auth.BootstrapOpsPassword, cfg.Auth.BootstrapOpsName); err != nil {
		logger.Fatal("failed to seed ops account", zap.Error(err))
	}

	fileService := service.NewFileService(service.FileDependencies{
		FileRepo:   fileRepo,
		Blobs:      blobs,
		Dispatcher: dispatcher,
		Logger:     logger,
		MaxBytes:   cfg.Upload.MaxBytes,
	})
	linkService := service.NewLinkService(cfg.Links, service.LinkDependencies{
		Files:      fileService,
		Grants:     grants,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	router := access.NewRouter(logger)
	authMiddleware := auth.NewAuthMiddleware(credentialService.TokenManager(), sessions, logger)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: int(cfg.Upload.MaxRequestBytes),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, healthDependencies(pg, redis, blobs)...)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Auth:           handlers.NewAuthHandler(credentialService, router),
		Files:          handlers.NewFilesHandler(fileService, linkService),
		Download:       handlers.NewDownloadHandler(linkService),
		AuthMiddleware: authMiddleware,
		Router:         router,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func newSessionBackend(cfg *config.Config, redis *persistence.Redis) (session.Backend, error) {
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		return session.NewRedisBackend(redis.Client, cfg.Session.TTL()), nil
	case config.SessionBackendFile:
		backend, err := session.NewFileBackend(cfg.Session.Dir)
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return session.NewMemoryBackend(), nil
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.BlobStore, error) {
	if cfg.Storage.Endpoint == "" {
		logger.Warn("STORAGE_ENDPOINT not provided; keeping file content in memory")
		return storage.NewMemoryBlobStore(), nil
	}
	store, err := storage.NewMinioBlobStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func notificationChannels(ctx context.Context, cfg config.NotificationConfig, logger *zap.Logger) (service.NotificationChannels, error) {
	var channels service.NotificationChannels
	if mailer := service.NewResendMailer(cfg.ResendAPIKey, cfg.EmailFrom); mailer != nil {
		channels.Mailer = mailer
	}
	webhooks, err := service.NewWebhookSender(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookTimeout())
	if err != nil {
		return channels, err
	}
	if webhooks != nil {
		queue := worker.NewWebhookQueue(webhooks, webhookQueueSize, logger)
		queue.Start(ctx)
		channels.Webhooks = queue
	}
	return channels, nil
}

func healthDependencies(pg *persistence.Postgres, redis *persistence.Redis, blobs storage.BlobStore) []handlers.Dependency {
	deps := []handlers.Dependency{{Name: "storage", Pinger: blobs}}
	if pg.PoolHandle() != nil {
		deps = append(deps, handlers.Dependency{Name: "postgres", Pinger: pg})
	}
	if redis != nil {
		deps = append(deps, handlers.Dependency{Name: "redis", Pinger: redis})
	}
	return deps
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
