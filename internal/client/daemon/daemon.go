// Package daemon keeps local vaults in sync in the background.
//
// A cycle is triggered:
//  1. at start and then every Interval;
//  2. when the server announces a new version over the notification
//     websocket (one connection per vault, reconnecting with backoff);
//  3. when the local database file changes and the vault has unpushed
//     edits, after a Debounce quiet period.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/client/client"
	"github.com/dmitrijs2005/vaultsync/internal/client/services"
	"github.com/dmitrijs2005/vaultsync/internal/client/syncer"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

type Syncer interface {
	Sync(ctx context.Context, vaultID string, opts ...syncer.SyncOption) (*syncer.Report, error)
}

type Local interface {
	Vaults(ctx context.Context) ([]string, error)
	Load(ctx context.Context, vaultID string) (*services.LocalState, error)
}

type Options struct {
	// NotifyAddr is host:port (or a ws:// URL) of the notification
	// endpoint. Empty disables notifications.
	NotifyAddr string
	// DBPath is the local database file to watch. Empty disables watching.
	DBPath   string
	Interval time.Duration
	Debounce time.Duration
	// Reauth, if set, is called when the notification endpoint rejects
	// the stored token.
	Reauth       client.ReauthFunc
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

type trigger struct {
	vaultID   string
	reason    string
	onlyDirty bool
}

type Daemon struct {
	syncer Syncer
	local  Local
	tokens client.TokenSource
	logger logging.Logger
	opts   Options
	dialer *websocket.Dialer

	triggers chan trigger
}

func New(s Syncer, l Local, tokens client.TokenSource, logger logging.Logger, opts Options) *Daemon {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = time.Second
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = 30 * time.Second
	}
	return &Daemon{
		syncer:   s,
		local:    l,
		tokens:   tokens,
		logger:   logger.With("module", "daemon"),
		opts:     opts,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		triggers: make(chan trigger, 16),
	}
}

// Run blocks until ctx is done. Sync failures are logged and do not stop
// the daemon; a broken file watcher does.
func (d *Daemon) Run(ctx context.Context) error {
	vaults, err := d.local.Vaults(ctx)
	if err != nil {
		return err
	}
	if len(vaults) == 0 {
		return fmt.Errorf("no local vaults to watch")
	}

	d.logger.Info(ctx, "daemon started", "vaults", len(vaults), "interval", d.opts.Interval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.loop(ctx, vaults) })
	g.Go(func() error { return d.tick(ctx) })
	if d.opts.DBPath != "" {
		g.Go(func() error { return d.watch(ctx) })
	}
	if d.opts.NotifyAddr != "" {
		for _, id := range vaults {
			g.Go(func() error { return d.listen(ctx, id) })
		}
	}

	err = g.Wait()
	d.logger.Info(context.Background(), "daemon stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// fire queues a trigger. A full queue already holds a pending cycle, so
// the trigger is dropped.
func (d *Daemon) fire(t trigger) {
	select {
	case d.triggers <- t:
	default:
	}
}

func (d *Daemon) tick(ctx context.Context) error {
	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.fire(trigger{reason: "interval"})
		}
	}
}

func (d *Daemon) loop(ctx context.Context, vaults []string) error {
	d.syncAll(ctx, vaults, trigger{reason: "start"})

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-d.triggers:
			if t.vaultID != "" {
				d.syncOne(ctx, t.vaultID, t)
				continue
			}
			d.syncAll(ctx, vaults, t)
		}
	}
}

func (d *Daemon) syncAll(ctx context.Context, vaults []string, t trigger) {
	for _, id := range vaults {
		if ctx.Err() != nil {
			return
		}
		d.syncOne(ctx, id, t)
	}
}

func (d *Daemon) syncOne(ctx context.Context, vaultID string, t trigger) {
	if t.onlyDirty {
		st, err := d.local.Load(ctx, vaultID)
		if err != nil {
			d.logger.Warn(ctx, "cannot inspect vault", "vault_id", vaultID, "error", err)
			return
		}
		if !st.Dirty() {
			return
		}
	}

	rep, err := d.syncer.Sync(ctx, vaultID)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Warn(ctx, "sync failed", "vault_id", vaultID, "reason", t.reason, "error", err)
		}
		return
	}
	d.logger.Debug(ctx, "synced", "vault_id", vaultID, "reason", t.reason,
		"state", rep.State.String(), "version", rep.Version, "pushed", rep.Pushed)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
