// Package server wires the sync server together: configuration, logging,
// the snapshot store backend, the gRPC endpoint and the websocket
// notification endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/server/blobstore"
	"github.com/dmitrijs2005/vaultsync/internal/server/config"
	"github.com/dmitrijs2005/vaultsync/internal/server/notify"
	"github.com/dmitrijs2005/vaultsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultsync/internal/server/services"
	"github.com/dmitrijs2005/vaultsync/internal/server/syncstore"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/vaultsync/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	backend     syncstore.Backend
	hub         *notify.Hub
	authService *services.AuthService
	syncService *services.SyncService
	closers     []io.Closer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	app := &App{config: c}

	var out io.Writer = os.Stdout
	if c.LogFile != "" {
		f := logging.RotatingFile(c.LogFile)
		app.closers = append(app.closers, f)
		out = f
	}
	logger, err := logging.New(c.LogBackend, c.LogLevel, out)
	if err != nil {
		app.close()
		return nil, err
	}
	app.logger = logger

	backend, err := app.openBackend(ctx)
	if err != nil {
		app.close()
		return nil, err
	}
	app.backend = backend

	app.hub = notify.NewHub(notify.Timings{
		WriteWait:  c.WSWriteWait,
		PongWait:   c.WSPongWait,
		PingPeriod: c.WSPingPeriod,
	}, logger)
	app.authService = services.NewAuthService(backend, logger, c)
	app.syncService = services.NewSyncService(backend, app.hub, logger, c)

	return app, nil
}

func (app *App) openBackend(ctx context.Context) (syncstore.Backend, error) {
	if app.config.Storage == config.StorageMemory {
		app.logger.Warn(ctx, "using in-memory storage, vault history is lost on restart")
		return syncstore.NewMemoryStore(), nil
	}

	db, err := repomanager.OpenPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return app.postgresBackend(ctx, db, rm)
}

func (app *App) postgresBackend(ctx context.Context, db *sql.DB, rm repomanager.RepositoryManager) (syncstore.Backend, error) {
	if app.config.BlobStorage != config.BlobS3 {
		return syncstore.NewPostgresStore(db, rm, nil, app.logger), nil
	}

	blobs, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
		User:         app.config.S3RootUser,
		Password:     app.config.S3RootPassword,
		Bucket:       app.config.S3Bucket,
		Region:       app.config.S3Region,
		BaseEndpoint: app.config.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 init error: %w", err)
	}
	return syncstore.NewPostgresStore(db, rm, blobs, app.logger), nil
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i].Close()
	}
	app.closers = nil
}

// Run serves both endpoints until ctx is cancelled, a termination signal
// arrives or one of the servers fails.
func (app *App) Run(ctx context.Context) error {
	defer app.close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.Storage, "blob_storage", app.config.BlobStorage)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.authService, app.syncService, app.config.SecretKey).Run(ctx)
	})
	g.Go(func() error {
		return notify.NewHTTPServer(app.config.EndpointAddrHTTP, app.hub, app.config.SecretKey).Run(ctx)
	})

	err := g.Wait()
	if err != nil {
		app.logger.Error(context.Background(), "server stopped", "error", err)
	}
	app.logger.Info(context.Background(), "Stopped")
	return err
}
