package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/client/client"
	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/client/services"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type Phase int

const (
	Idle Phase = iota
	Pulling
	UpToDate
	Merging
	Pushing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Pulling:
		return "pulling"
	case UpToDate:
		return "up-to-date"
	case Merging:
		return "merging"
	case Pushing:
		return "pushing"
	default:
		return "unknown"
	}
}

// Transport is the server side of a cycle.
type Transport interface {
	Pull(ctx context.Context, vaultID string, since int64) (client.PullResult, error)
	Push(ctx context.Context, vaultID string, expectedBase int64, blob []byte) (client.PushResult, error)
}

// Local is the device side of a cycle.
type Local interface {
	Load(ctx context.Context, vaultID string) (*services.LocalState, error)
	Codec(vaultID string) (*vault.Codec, error)
	Commit(ctx context.Context, vaultID string, loaded uint64, synced *vault.RecordStore, cursor models.SyncCursor) error
}

type Options struct {
	MaxAttempts int
	PushTimeout time.Duration
	// TombstoneRetention bounds how long deletions travel in snapshots.
	// Zero keeps them forever.
	TombstoneRetention time.Duration
}

// Report describes a finished cycle.
type Report struct {
	VaultID  string
	State    vault.State
	Version  int64
	Attempts int
	Pushed   bool
	Merge    *vault.MergeResult
}

type syncOptions struct {
	strategy vault.Strategy
}

type SyncOption func(*syncOptions)

// WithStrategy selects how a diverged vault is merged. Concurrent Sync
// calls for one vault share a cycle, and with it the first caller's
// strategy.
func WithStrategy(s vault.Strategy) SyncOption {
	return func(o *syncOptions) { o.strategy = s }
}

type Orchestrator struct {
	transport Transport
	local     Local
	clock     vault.Clock
	logger    logging.Logger
	opts      Options
	now       func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	phases  map[string]Phase
	flights map[string]*flight
}

// flight is the context of a shared cycle. It is canceled once every
// caller waiting on the cycle has gone.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func New(t Transport, l Local, clock vault.Clock, logger logging.Logger, opts Options) *Orchestrator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	return &Orchestrator{
		transport: t,
		local:     l,
		clock:     clock,
		logger:    logger.With("module", "syncer"),
		opts:      opts,
		now:       time.Now,
		phases:    make(map[string]Phase),
		flights:   make(map[string]*flight),
	}
}

// Phase reports what the cycle of vaultID is doing right now.
func (o *Orchestrator) Phase(vaultID string) Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phases[vaultID]
}

func (o *Orchestrator) setPhase(vaultID string, p Phase) {
	o.mu.Lock()
	if p == Idle {
		delete(o.phases, vaultID)
	} else {
		o.phases[vaultID] = p
	}
	o.mu.Unlock()
}

// Sync runs one cycle for vaultID. Only one cycle per vault runs at a time;
// callers arriving meanwhile get its result. A caller whose ctx ends
// returns early, and the cycle is canceled once no caller waits for it.
func (o *Orchestrator) Sync(ctx context.Context, vaultID string, opts ...SyncOption) (*Report, error) {
	so := syncOptions{strategy: vault.StrategyMerge}
	for _, opt := range opts {
		opt(&so)
	}

	f := o.join(ctx, vaultID)
	defer o.leave(vaultID, f)

	ch := o.group.DoChan(vaultID, func() (any, error) {
		defer o.land(vaultID, f)
		return o.sync(f.ctx, vaultID, so)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Report), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// join registers a caller on the flight of vaultID, starting one detached
// from ctx's cancellation when none is open.
func (o *Orchestrator) join(ctx context.Context, vaultID string) *flight {
	o.mu.Lock()
	defer o.mu.Unlock()
	f, ok := o.flights[vaultID]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		o.flights[vaultID] = f
	}
	f.waiters++
	return f
}

func (o *Orchestrator) leave(vaultID string, f *flight) {
	o.mu.Lock()
	defer o.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if o.flights[vaultID] == f {
		delete(o.flights, vaultID)
	}
}

// land closes f to new callers when its cycle returns.
func (o *Orchestrator) land(vaultID string, f *flight) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.flights[vaultID] == f {
		delete(o.flights, vaultID)
	}
}

// SyncAll syncs the given vaults in parallel. Reports are in input order;
// a failed vault leaves a nil report and the first error is returned.
func (o *Orchestrator) SyncAll(ctx context.Context, vaultIDs []string, opts ...SyncOption) ([]*Report, error) {
	reports := make([]*Report, len(vaultIDs))

	var g errgroup.Group
	for i, id := range vaultIDs {
		g.Go(func() error {
			r, err := o.Sync(ctx, id, opts...)
			if err != nil {
				return fmt.Errorf("sync %s: %w", id, err)
			}
			reports[i] = r
			return nil
		})
	}
	return reports, g.Wait()
}

func (o *Orchestrator) sync(ctx context.Context, vaultID string, so syncOptions) (*Report, error) {
	defer o.setPhase(vaultID, Idle)

	for attempt := 1; attempt <= o.opts.MaxAttempts; attempt++ {
		rep, err := o.attempt(ctx, vaultID, so, attempt)
		if err != nil {
			return nil, err
		}
		if rep != nil {
			return rep, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: vault %s, %d attempts", common.ErrSyncContention, vaultID, o.opts.MaxAttempts)
}

// attempt returns a nil report when the cycle has to start over.
func (o *Orchestrator) attempt(ctx context.Context, vaultID string, so syncOptions, attempt int) (*Report, error) {
	local, err := o.local.Load(ctx, vaultID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", vaultID, err)
	}
	codec, err := o.local.Codec(vaultID)
	if err != nil {
		return nil, err
	}

	o.setPhase(vaultID, Pulling)
	since := local.Cursor.LastKnownVersion
	pr, err := o.transport.Pull(ctx, vaultID, since)
	if err != nil {
		return nil, fmt.Errorf("pull %s: %w", vaultID, err)
	}
	if pr.Latest < since && pr.Latest > 0 && pr.Snapshot == nil {
		// the server went back in time; fetch what it has now
		if pr, err = o.transport.Pull(ctx, vaultID, 0); err != nil {
			return nil, fmt.Errorf("pull %s: %w", vaultID, err)
		}
	}

	remote, err := o.openRemote(codec, vaultID, pr)
	if err != nil {
		return nil, err
	}

	state := vault.Classify(since, pr.Latest, local.Dirty())
	rep := &Report{VaultID: vaultID, State: state, Attempts: attempt}
	cursor := local.Cursor
	cursor.LastPullAt = o.now()

	o.logger.Debug(ctx, "pulled", "vault_id", vaultID, "since", since, "latest", pr.Latest, "state", state.String())

	var (
		candidate *vault.RecordStore
		base      int64
	)
	switch state {
	case vault.UpToDate:
		o.setPhase(vaultID, UpToDate)
		rep.Version = since
		return rep, o.local.Commit(ctx, vaultID, local.Fingerprint, local.Store, cursor)

	case vault.FastForward:
		o.setPhase(vaultID, UpToDate)
		return o.adopt(ctx, vaultID, local, remote, cursor, rep)

	case vault.LocalAhead:
		candidate = local.Store.Clone()
		base = since

	default:
		o.setPhase(vaultID, Merging)
		if remote == nil {
			return nil, fmt.Errorf("%w: server reported version %d of %s without a snapshot", common.ErrMalformedSnapshot, pr.Latest, vaultID)
		}
		rep.Merge = vault.Merge(local.Store, remote, so.strategy)
		candidate = rep.Merge.Store
		base = pr.Latest
		if pr.Latest > 0 && candidate.Fingerprint() == remote.Fingerprint() {
			return o.adopt(ctx, vaultID, local, remote, cursor, rep)
		}
	}

	if o.opts.TombstoneRetention > 0 {
		cutoff := o.now().Add(-o.opts.TombstoneRetention).UnixMilli()
		if n := candidate.PruneTombstones(cutoff); n > 0 {
			o.logger.Debug(ctx, "tombstones pruned", "vault_id", vaultID, "count", n)
		}
	}

	blob, err := codec.Seal(candidate)
	if err != nil {
		return nil, fmt.Errorf("seal %s: %w", vaultID, err)
	}

	o.setPhase(vaultID, Pushing)
	res, retry, err := o.push(ctx, vaultID, base, blob)
	if err != nil || retry {
		return nil, err
	}
	if res.Conflict {
		o.logger.Info(ctx, "push lost the race, retrying", "vault_id", vaultID, "base", base, "latest", res.Latest, "attempt", attempt)
		return nil, nil
	}

	candidate.Version = res.NewVersion
	cursor.LastKnownVersion = res.NewVersion
	cursor.SyncedFingerprint = candidate.Fingerprint()
	cursor.LastPushAt = o.now()
	if err := o.local.Commit(ctx, vaultID, local.Fingerprint, candidate, cursor); err != nil {
		return nil, err
	}

	rep.Version = res.NewVersion
	rep.Pushed = true
	o.logger.Info(ctx, "vault pushed", "vault_id", vaultID, "version", res.NewVersion, "state", state.String())
	return rep, nil
}

// push bounds a single attempt by PushTimeout. A timeout asks for a retry
// unless the caller's own context is done.
func (o *Orchestrator) push(ctx context.Context, vaultID string, base int64, blob []byte) (client.PushResult, bool, error) {
	pushCtx, cancel := context.WithTimeout(ctx, o.opts.PushTimeout)
	defer cancel()

	res, err := o.transport.Push(pushCtx, vaultID, base, blob)
	if err == nil {
		return res, false, nil
	}
	if ctx.Err() == nil && errors.Is(pushCtx.Err(), context.DeadlineExceeded) {
		o.logger.Warn(ctx, "push timed out, retrying", "vault_id", vaultID, "timeout", o.opts.PushTimeout)
		return res, true, nil
	}
	return res, false, fmt.Errorf("push %s: %w", vaultID, err)
}

func (o *Orchestrator) adopt(ctx context.Context, vaultID string, local *services.LocalState, remote *vault.RecordStore, cursor models.SyncCursor, rep *Report) (*Report, error) {
	if remote == nil {
		return nil, fmt.Errorf("%w: server reported a newer version of %s without a snapshot", common.ErrMalformedSnapshot, vaultID)
	}
	cursor.LastKnownVersion = remote.Version
	cursor.SyncedFingerprint = remote.Fingerprint()
	if err := o.local.Commit(ctx, vaultID, local.Fingerprint, remote, cursor); err != nil {
		return nil, err
	}
	rep.Version = remote.Version
	return rep, nil
}

func (o *Orchestrator) openRemote(codec *vault.Codec, vaultID string, pr client.PullResult) (*vault.RecordStore, error) {
	if pr.Snapshot == nil {
		if pr.Latest == 0 {
			return vault.NewRecordStore(vaultID), nil
		}
		return nil, nil
	}

	remote, err := codec.Open(pr.Snapshot.Blob)
	if err != nil {
		return nil, fmt.Errorf("open %s v%d: %w", vaultID, pr.Snapshot.Version, err)
	}
	if remote.VaultID != vaultID {
		return nil, fmt.Errorf("%w: snapshot of %q served for %q", common.ErrMalformedSnapshot, remote.VaultID, vaultID)
	}
	remote.Version = pr.Snapshot.Version
	o.clock.Observe(remote.MaxTimestamp())
	return remote, nil
}
