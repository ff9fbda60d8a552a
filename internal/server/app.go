// Package server initializes and runs the authkeeper server.
// It loads the signing keys, opens the configured storage backend, runs
// migrations and housekeeping, and serves the token service over gRPC until
// it receives a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/keys"
	"github.com/dmitrijs2005/authkeeper/internal/server/password"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	authService *services.AuthService
	guard       *services.Guard
	closers     []func() error
}

// NewApp builds every dependency of the server from c. It fails when the key
// pair cannot be loaded or the storage backend is unreachable.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(c.LogLevel))
	app := &App{config: c, logger: logger}

	src, err := keys.NewSource(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("key source init error: %w", err)
	}
	provider, err := keys.Load(ctx, src, c.SigningAlgorithm, c.PrivateKeyPath, c.PublicKeyPath)
	if err != nil {
		return nil, err
	}
	codec, err := auth.NewCodec(provider)
	if err != nil {
		return nil, err
	}

	rm, err := app.openRepositories(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	if err := rm.RunMigrations(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app.authService = services.NewAuthService(c, rm, codec, password.Bcrypt{}, logger)
	app.guard = services.NewGuard(codec, rm.Users())

	logger.Info(ctx, "app initialized",
		"store", c.StoreBackend, "algorithm", provider.Algorithm(),
		"access_ttl", c.AccessTokenTTL.String(), "refresh_ttl", c.RefreshTokenTTL.String())

	return app, nil
}

func (app *App) openPostgres(ctx context.Context) (*repomanager.PostgresRepositoryManager, error) {
	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	return repomanager.NewPostgresRepositoryManager(db), nil
}

func (app *App) openRepositories(ctx context.Context) (repomanager.RepositoryManager, error) {
	switch app.config.StoreBackend {
	case config.StoreMemory:
		return repomanager.NewMemoryRepositoryManager(), nil

	case config.StoreRedis:
		pg, err := app.openPostgres(ctx)
		if err != nil {
			return nil, err
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     app.config.RedisAddr,
			Password: app.config.RedisPassword,
			DB:       app.config.RedisDB,
		})
		app.closers = append(app.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		return repomanager.NewRedisRepositoryManager(pg, rdb), nil

	default:
		return app.openPostgres(ctx)
	}
}

// Close releases database and redis connections.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error(context.Background(), "close error", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) purgeExpired(ctx context.Context) {
	if _, err := app.authService.PurgeExpired(ctx); err != nil {
		app.logger.Error(ctx, "purge of expired refresh tokens failed", "error", err)
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.authService, app.guard)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or the process is signalled, then
// releases resources.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)
	app.purgeExpired(ctx)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(ctx, "App stopped")
}
