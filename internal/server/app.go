// Package server wires configuration, storage, signing keys and the token
// services together and runs the gRPC and HTTP endpoints.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/authkeeper/internal/server/keys"
	"github.com/dmitrijs2005/authkeeper/internal/server/password"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/go-redis/redis/v8"

	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"
)

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config    *config.Config
	logger    logging.Logger
	closers   []io.Closer
	repos     repomanager.RepositoryManager
	ring      *keys.Ring
	source    *keys.Source
	refresh   *services.RefreshTokenStore
	blocklist *services.Blocklist
	auth      *services.AuthService
}

// NewApp builds every component from c. Storage is migrated and the signing
// key loaded before it returns.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogFormat, c.LogLevel)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	app := &App{config: c, logger: logger}

	if err := app.initStorage(ctx); err != nil {
		app.Close()
		return nil, err
	}

	app.source = keys.NewSource(c.KeySource(), logger)
	key, err := app.source.Load(ctx)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("signing key: %w", err)
	}
	if app.ring, err = keys.NewRing(key, c.KeyRetention); err != nil {
		app.Close()
		return nil, fmt.Errorf("key ring: %w", err)
	}

	hasher, err := password.NewBcryptHasher(c.BcryptCost)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	opts := []services.Option{services.WithLogger(logger)}
	app.refresh = services.NewRefreshTokenStore(app.repos, c.RefreshTokenTTL, c.RefreshRetention, opts...)
	app.blocklist = services.NewBlocklist(app.repos, opts...)
	app.auth = services.NewAuthService(services.AuthDeps{
		Repos:     app.repos,
		Hasher:    hasher,
		Codec:     auth.NewCodec(app.ring, c.AccessTokenTTL, auth.WithIssuer(c.Issuer)),
		Refresh:   app.refresh,
		Blocklist: app.blocklist,
		Keys:      app.source,
		Ring:      app.ring,
	}, opts...)

	logger.Info(ctx, "signing key ready", "kid", app.ring.ActiveKID())
	return app, nil
}

func (app *App) initStorage(ctx context.Context) error {
	c := app.config

	if c.DatabaseDSN == "" {
		if c.RedisAddr != "" {
			app.logger.Warn(ctx, "redis blocklist needs a database, ignoring redis address")
		}
		app.logger.Warn(ctx, "no database configured, using in-memory storage")
		app.repos = repomanager.NewMemoryRepositoryManager()
		return nil
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db)

	var opts []repomanager.Option
	if c.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB})
		app.closers = append(app.closers, client)
		opts = append(opts, repomanager.WithRedisBlocklist(client))
	}

	repos, err := repomanager.NewPostgresRepositoryManager(db, opts...)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	app.repos = repos
	return nil
}

// Close releases database and Redis connections.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Error(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run serves until ctx is cancelled, a signal arrives or a server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(ctx, cancelFunc)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancelFunc()
	}

	grpcServer := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.auth)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := grpcServer.Run(ctx); err != nil {
			app.logger.Error(ctx, "gRPC server failed", "error", err)
			fail(fmt.Errorf("grpc: %w", err))
		}
	}()

	if app.config.EndpointAddrHTTP != "" {
		httpServer := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.repos, app.ring)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := httpServer.Run(ctx); err != nil {
				app.logger.Error(ctx, "HTTP server failed", "error", err)
				fail(fmt.Errorf("http: %w", err))
			}
		}()
	}

	sweeper := services.NewSweeper(app.config.SweepInterval, app.logger)
	sweeper.Add("refresh_tokens", app.refresh.Sweep)
	sweeper.Add("blocklist", app.blocklist.Sweep)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	if app.config.WatchKeyFile {
		watcher := keys.NewWatcher(app.config.SigningKeyPath, app.ring, app.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				app.logger.Error(ctx, "key watcher stopped", "error", err)
			}
		}()
	}

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return firstErr
}
