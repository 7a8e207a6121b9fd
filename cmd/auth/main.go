package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/FeruzLatifov/univer-back-sub003/internal/adapter/cache"
	"github.com/FeruzLatifov/univer-back-sub003/internal/bootstrap"
	"github.com/FeruzLatifov/univer-back-sub003/internal/config"
	"github.com/FeruzLatifov/univer-back-sub003/internal/domain"
	httptransport "github.com/FeruzLatifov/univer-back-sub003/internal/http"
	"github.com/FeruzLatifov/univer-back-sub003/internal/http/handler"
	httpmiddleware "github.com/FeruzLatifov/univer-back-sub003/internal/http/middleware"
	"github.com/FeruzLatifov/univer-back-sub003/internal/jwt"
	"github.com/FeruzLatifov/univer-back-sub003/internal/menu"
	apimiddleware "github.com/FeruzLatifov/univer-back-sub003/internal/middleware"
	"github.com/FeruzLatifov/univer-back-sub003/internal/repository"
	"github.com/FeruzLatifov/univer-back-sub003/internal/server"
	"github.com/FeruzLatifov/univer-back-sub003/internal/service"
	"github.com/FeruzLatifov/univer-back-sub003/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newStorage,
			newUserRepository,
			newPermissionRepository,
			newTranslationRepository,
			newKeyRepository,
			newRedisClient,
			newMenuCacheStore,
			newMenuTree,
			newRateLimiter,
			newKeyManager,
			newTokenGenerator,
			service.NewTokenService,
			newMenuService,
			service.NewAuthService,
			handler.NewAuthHandler,
			handler.NewOAuthHandler,
			handler.NewMenuHandler,
			newSessionMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureDefaults, startTokenJanitor, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := repository.Migrate(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newStorage(pool *pgxpool.Pool) repository.Storage {
	return repository.NewPostgresStorage(pool)
}

func newUserRepository(storage repository.Storage) repository.UserRepository {
	return storage.Users()
}

func newPermissionRepository(storage repository.Storage) repository.PermissionRepository {
	return storage.Permissions()
}

func newTranslationRepository(storage repository.Storage) repository.TranslationRepository {
	return storage.Translations()
}

func newKeyRepository(storage repository.Storage) repository.KeyRepository {
	return storage.Keys()
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newMenuCacheStore(client redis.UniversalClient) repository.MenuCacheStore {
	return cacheadapter.NewRedisMenuStore(client)
}

func newMenuTree(cfg config.Config) ([]domain.MenuItem, error) {
	return menu.Load(cfg.MenuConfigPath)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

type snowflakeIDs struct {
	node *snowflake.Node
}

func (s snowflakeIDs) Generate() int64 {
	return s.node.Generate().Int64()
}

func newKeyManager(repo repository.KeyRepository, node *snowflake.Node) *jwt.KeyManager {
	return jwt.NewKeyManager(repo, snowflakeIDs{node: node})
}

func newTokenGenerator(manager *jwt.KeyManager, cfg config.Config) *jwt.Generator {
	return jwt.NewGenerator(manager, cfg.SessionTokenTTL)
}

func newMenuService(
	tree []domain.MenuItem,
	cacheStore repository.MenuCacheStore,
	permissions repository.PermissionRepository,
	translations repository.TranslationRepository,
	cfg config.Config,
	logger *zap.Logger,
) *service.MenuService {
	return service.NewMenuService(tree, cacheStore, permissions, translations, cfg, logger)
}

func newSessionMiddleware(generator *jwt.Generator) *httpmiddleware.Session {
	return &httpmiddleware.Session{JWT: generator}
}

func startTokenJanitor(lc fx.Lifecycle, tokens *service.TokenService, cfg config.Config, logger *zap.Logger) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				defer close(done)
				ticker := time.NewTicker(cfg.CleanupInterval)
				defer ticker.Stop()
				for {
					select {
					case <-runCtx.Done():
						return
					case <-ticker.C:
						removed, err := tokens.CleanupExpiredTokens(runCtx)
						if err != nil {
							logger.Warn("token cleanup failed", zap.Error(err))
							continue
						}
						if removed > 0 {
							logger.Info("expired tokens removed", zap.Int64("count", removed))
						}
					}
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
