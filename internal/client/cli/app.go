package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/vaultsync/internal/client/client"
	"github.com/dmitrijs2005/vaultsync/internal/client/config"
	"github.com/dmitrijs2005/vaultsync/internal/client/daemon"
	"github.com/dmitrijs2005/vaultsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/vaultsync/internal/client/services"
	"github.com/dmitrijs2005/vaultsync/internal/client/syncer"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"google.golang.org/grpc"
)

// App holds the wired client components for one command invocation.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Logger logging.Logger
	Remote *client.GRPCClient
	Vaults *services.VaultService
	Syncer *syncer.Orchestrator

	closers []io.Closer
}

// AppFactory builds an App from a loaded config. Tests swap it to dial an
// in-process server.
type AppFactory func(ctx context.Context, cfg *config.Config) (*App, error)

// vaultTokens breaks the construction cycle between the transport, which
// needs tokens, and the vault service, which needs the transport.
type vaultTokens struct {
	svc *services.VaultService
}

func (t *vaultTokens) Token(ctx context.Context, vaultID string) (string, error) {
	if t.svc == nil {
		return "", fmt.Errorf("token for %s: %w", vaultID, common.ErrorNotFound)
	}
	return t.svc.Token(ctx, vaultID)
}

// NewApp opens the local database and connects the transport. Extra dial
// options are passed to the gRPC client.
func NewApp(ctx context.Context, cfg *config.Config, dialOpts ...grpc.DialOption) (*App, error) {
	a := &App{Config: cfg}

	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f := logging.RotatingFile(cfg.LogFile)
		a.closers = append(a.closers, f)
		logOut = f
	}
	logger, err := logging.New(cfg.LogBackend, cfg.LogLevel, logOut)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Logger = logger

	db, err := services.OpenDB(ctx, cfg.DatabasePath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open %s: %w", cfg.DatabasePath, err)
	}
	a.DB = db
	a.closers = append(a.closers, db)

	deviceID, err := services.EnsureDeviceID(ctx, metadata.NewSQLiteRepository(db), cfg.DeviceID)
	if err != nil {
		a.Close()
		return nil, err
	}

	tokens := &vaultTokens{}
	remote, err := client.NewGRPCClient(cfg.ServerEndpointAddr, tokens, dialOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Remote = remote
	a.closers = append(a.closers, remote)

	a.Vaults = services.NewVaultService(db, remote, deviceID, logger)
	tokens.svc = a.Vaults
	remote.SetReauth(a.Vaults.Reauth)

	a.Syncer = syncer.New(remote, a.Vaults, a.Vaults.Clock(), logger, syncer.Options{
		MaxAttempts:        cfg.MaxSyncAttempts,
		PushTimeout:        cfg.PushTimeout,
		TombstoneRetention: cfg.TombstoneRetention,
	})

	logger.Debug(ctx, "client ready", "device_id", deviceID, "server", cfg.ServerEndpointAddr, "db", cfg.DatabasePath)
	return a, nil
}

// Daemon builds the watch-mode runner over the app's components.
func (a *App) Daemon() *daemon.Daemon {
	return daemon.New(a.Syncer, a.Vaults, a.Vaults, a.Logger, daemon.Options{
		NotifyAddr: a.Config.NotifyEndpointAddr,
		DBPath:     a.Config.DatabasePath,
		Interval:   a.Config.SyncInterval,
		Debounce:   a.Config.WatchDebounce,
		Reauth:     a.Vaults.Reauth,
	})
}

// Close releases what NewApp opened, last opened first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
