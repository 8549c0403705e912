package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hellofresh/health-go/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/yakoovad/teamhub/internal/api"
	"github.com/yakoovad/teamhub/internal/asset"
	"github.com/yakoovad/teamhub/internal/auth"
	"github.com/yakoovad/teamhub/internal/cache"
	"github.com/yakoovad/teamhub/internal/chat"
	"github.com/yakoovad/teamhub/internal/config"
	"github.com/yakoovad/teamhub/internal/db"
	"github.com/yakoovad/teamhub/internal/event"
	"github.com/yakoovad/teamhub/internal/repository"
	"github.com/yakoovad/teamhub/internal/service"
	"github.com/yakoovad/teamhub/pkg/logger"
	"go.uber.org/zap"
)

const version = "v0.1.0"

func main() {
	configPath := pflag.String("config", "", "optional YAML config file, overridden by the environment")
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	pflag.Parse()

	// A missing .env is normal outside local development.
	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	logger.Info("starting application", zap.String("version", version), zap.String("storage", cfg.Storage))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, cfg, logger); err != nil {
		logger.Fatal("application stopped with error", zap.Error(err))
	}

	logger.Info("application stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var (
		store  *repository.Store
		tx     db.Transactor
		checks []health.Config
	)

	switch cfg.Storage {
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return errors.Wrap(err, "failed to connect to database")
		}
		defer pool.Close()

		if err = pool.Ping(ctx); err != nil {
			return errors.Wrap(err, "failed to ping database")
		}
		logger.Info("database connection established")

		if cfg.Database.MigrateOnStart {
			if err = db.Migrate(pool, logger); err != nil {
				return errors.Wrap(err, "failed to migrate database")
			}
		}

		store = repository.NewPgxStore(pool)
		tx = db.NewPgxTransactor(pool)
		checks = append(checks, api.PostgresCheck(pool))
	default:
		logger.Warn("using in-memory storage, data is lost on restart")
		store = repository.NewMemoryStore()
		tx = db.NopTransactor{}
	}

	var pages cache.Cache = cache.NewMemory(cfg.TeamPageCacheTTL)
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return errors.Wrap(err, "failed to connect to redis")
		}
		defer client.Close()

		pages = cache.NewRedis(client, cfg.TeamPageCacheTTL)
		checks = append(checks, api.RedisCheck(client))
		logger.Info("redis page cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	bus := event.NewBus(
		event.WithHandlerTimeout(cfg.EventHandlerTimeout),
		event.WithAwaitHandlers(cfg.EventAwaitHandlers),
		event.WithMaxConcurrentHandlers(cfg.EventMaxConcurrentHandlers),
		event.WithLogger(logger),
	)

	identity := service.NewIdentityService(tx, bus).
		WithUserRepo(store.Users).
		WithAccessRepo(store.Accesses).
		WithTokens(auth.NewTokenService(cfg.Auth.TokenSecret, cfg.Auth.AccessTokenTTL)).
		WithHasher(auth.NewBcryptHasher(0)).
		WithRefreshTTL(cfg.Auth.RefreshTokenTTL)

	chats := service.NewChatService(tx).
		WithChatRepo(store.Chats).
		WithUsers(identity)

	teams := service.NewTeamService(tx, bus).
		WithTeamRepo(store.Teams).
		WithIdentity(identity).
		WithChats(chats).
		WithAssets(asset.NewStorer(cfg.UploadDir)).
		WithPageCache(pages)

	projects := service.NewProjectService(bus).
		WithProjectRepo(store.Projects).
		WithTeams(teams)

	teams.WithProjects(projects)

	identity.RegisterHandlers()
	teams.RegisterHandlers()

	healthChecker, err := api.NewHealthChecker(version, checks...)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true

	handler := api.NewHandler(logger).
		WithHealthChecker(healthChecker).
		WithIdentityService(identity).
		WithTeamService(teams).
		WithProjectService(projects).
		WithChatService(chats).
		WithHub(chat.NewHub())
	handler.RegisterRoutes(e)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.HTTPAddr))
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return errors.Wrap(err, "failed to start server")
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down server", zap.Error(err))
	}

	// Chat sockets are hijacked and outlive Shutdown.
	handler.Close()

	// Let in-flight membership and project handlers finish before the store closes.
	bus.Wait()

	return nil
}
