package syncer

import (
	"bytes"
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/client/client"
	"github.com/dmitrijs2005/vaultsync/internal/client/migrations"
	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/client/services"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// fakeServer keeps every pushed blob per vault and applies the same
// compare-and-swap rule as the real store.
type fakeServer struct {
	mu       sync.Mutex
	versions map[string][][]byte
	pulls    int
	pushes   int

	pullErr    error
	beforePush func(n int)
	blockPush  func(ctx context.Context, n int) error
}

func newFakeServer() *fakeServer {
	return &fakeServer{versions: make(map[string][][]byte)}
}

func (f *fakeServer) GetSalt(context.Context, string) ([]byte, error) {
	return bytes.Repeat([]byte{3}, 16), nil
}

func (f *fakeServer) RegisterDevice(_ context.Context, vaultID, deviceID string, _, _ []byte) (*client.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &client.Registration{AccessToken: deviceID, CurrentVersion: int64(len(f.versions[vaultID]))}, nil
}

func (f *fakeServer) Pull(_ context.Context, vaultID string, since int64) (client.PullResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls++
	if f.pullErr != nil {
		return client.PullResult{}, f.pullErr
	}

	vs := f.versions[vaultID]
	latest := int64(len(vs))
	if since >= latest {
		return client.PullResult{NotModified: true, Latest: latest}, nil
	}
	return client.PullResult{Latest: latest, Snapshot: &client.RemoteSnapshot{
		Version:   latest,
		CreatedAt: time.Now(),
		Blob:      append([]byte(nil), vs[latest-1]...),
	}}, nil
}

func (f *fakeServer) Push(ctx context.Context, vaultID string, base int64, blob []byte) (client.PushResult, error) {
	f.mu.Lock()
	f.pushes++
	n := f.pushes
	hook, block := f.beforePush, f.blockPush
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if block != nil {
		if err := block(ctx, n); err != nil {
			return client.PushResult{}, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	latest := int64(len(f.versions[vaultID]))
	if base != latest {
		return client.PushResult{Conflict: true, Latest: latest}, nil
	}
	f.versions[vaultID] = append(f.versions[vaultID], append([]byte(nil), blob...))
	return client.PushResult{NewVersion: latest + 1, Latest: latest + 1}, nil
}

func (f *fakeServer) latest(vaultID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.versions[vaultID]))
}

// truncate drops versions after v, like a restore from an old backup.
func (f *fakeServer) truncate(vaultID string, v int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions[vaultID] = f.versions[vaultID][:v]
}

func (f *fakeServer) replaceLatest(vaultID string, blob []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vs := f.versions[vaultID]
	vs[len(vs)-1] = blob
}

type device struct {
	id   string
	svc  *services.VaultService
	orch *Orchestrator
}

var password = []byte("master password")

func newDevice(t *testing.T, srv *fakeServer, id string, vaults ...string) *device {
	t.Helper()
	return newDeviceWithPassword(t, srv, id, password, vaults...)
}

func newDeviceWithPassword(t *testing.T, srv *fakeServer, id string, pw []byte, vaults ...string) *device {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))

	svc := services.NewVaultService(db, srv, id, logging.NewNop())
	if len(vaults) == 0 {
		vaults = []string{"v1"}
	}
	for _, v := range vaults {
		_, err := svc.Init(context.Background(), v, pw)
		require.NoError(t, err)
	}

	orch := New(srv, svc, svc.Clock(), logging.NewNop(), Options{MaxAttempts: 5, PushTimeout: time.Second})
	return &device{id: id, svc: svc, orch: orch}
}

func (d *device) put(t *testing.T, id, title, password string) {
	t.Helper()
	_, err := d.svc.Put(context.Background(), "v1", id, models.Entry{Title: title, Password: password})
	require.NoError(t, err)
	// keep stamps of different devices apart
	time.Sleep(2 * time.Millisecond)
}

func (d *device) remove(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, d.svc.Remove(context.Background(), "v1", id))
	time.Sleep(2 * time.Millisecond)
}

func (d *device) sync(t *testing.T) *Report {
	t.Helper()
	rep, err := d.orch.Sync(context.Background(), "v1")
	require.NoError(t, err)
	return rep
}

func (d *device) entry(t *testing.T, id string) (models.Entry, error) {
	t.Helper()
	return d.svc.Get(context.Background(), "v1", id)
}

func (d *device) state(t *testing.T) *services.LocalState {
	t.Helper()
	st, err := d.svc.Load(context.Background(), "v1")
	require.NoError(t, err)
	return st
}
