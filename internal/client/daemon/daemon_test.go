package daemon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/client/services"
	"github.com/dmitrijs2005/vaultsync/internal/client/syncer"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeSyncer) Sync(_ context.Context, vaultID string, _ ...syncer.SyncOption) (*syncer.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[vaultID]++
	return &syncer.Report{VaultID: vaultID, State: vault.UpToDate}, nil
}

func (f *fakeSyncer) count(vaultID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[vaultID]
}

type fakeLocal struct {
	vaults []string
	dirty  atomic.Bool
}

func (f *fakeLocal) Vaults(context.Context) ([]string, error) {
	return f.vaults, nil
}

func (f *fakeLocal) Load(_ context.Context, vaultID string) (*services.LocalState, error) {
	st := &services.LocalState{Store: vault.NewRecordStore(vaultID), Fingerprint: 1, Cursor: models.SyncCursor{SyncedFingerprint: 1}}
	if f.dirty.Load() {
		st.Cursor.SyncedFingerprint = 2
	}
	return st, nil
}

type staticTokens map[string]string

func (s staticTokens) Token(_ context.Context, vaultID string) (string, error) {
	t, ok := s[vaultID]
	if !ok {
		return "", errors.New("no token")
	}
	return t, nil
}

func start(t *testing.T, d *Daemon) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})
}

func TestRun_NoVaults(t *testing.T) {
	d := New(&fakeSyncer{}, &fakeLocal{}, staticTokens{}, logging.NewNop(), Options{})
	require.Error(t, d.Run(context.Background()))
}

func TestRun_SyncsAtStartAndOnInterval(t *testing.T) {
	s := &fakeSyncer{}
	d := New(s, &fakeLocal{vaults: []string{"v1", "v2"}}, staticTokens{}, logging.NewNop(), Options{Interval: 20 * time.Millisecond})
	start(t, d)

	require.Eventually(t, func() bool { return s.count("v1") >= 3 && s.count("v2") >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestRun_NotificationTriggersSync(t *testing.T) {
	var upgrader websocket.Upgrader
	sent := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-v1" || r.URL.Path != "/v1/vaults/v1/events" {
			http.Error(w, "no", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(event{Type: "something_else", VaultID: "v1"})
		_ = conn.WriteJSON(event{Type: eventVaultUpdated, VaultID: "v1", Version: 7, DeviceID: "dev-b"})
		close(sent)
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)

	s := &fakeSyncer{}
	d := New(s, &fakeLocal{vaults: []string{"v1"}}, staticTokens{"v1": "tok-v1"}, logging.NewNop(),
		Options{NotifyAddr: srv.URL, Interval: time.Hour})
	start(t, d)

	<-sent
	// start, reconnect catch-up and the event itself
	require.Eventually(t, func() bool { return s.count("v1") >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestRun_RejectedTokenIsRenewed(t *testing.T) {
	var upgrader websocket.Upgrader
	var accepted atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		accepted.Add(1)
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)

	tokens := &swapTokens{token: "stale"}
	s := &fakeSyncer{}
	d := New(s, &fakeLocal{vaults: []string{"v1"}}, tokens, logging.NewNop(), Options{
		NotifyAddr: srv.URL,
		Interval:   time.Hour,
		Reauth: func(ctx context.Context, vaultID string) (string, error) {
			tokens.set("fresh")
			return "fresh", nil
		},
	})
	start(t, d)

	require.Eventually(t, func() bool { return accepted.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
}

type swapTokens struct {
	mu    sync.Mutex
	token string
}

func (s *swapTokens) Token(context.Context, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *swapTokens) set(t string) {
	s.mu.Lock()
	s.token = t
	s.mu.Unlock()
}

func TestRun_LocalWritesSyncDirtyVaults(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "vaultsync.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("x"), 0o600))

	s := &fakeSyncer{}
	local := &fakeLocal{vaults: []string{"v1"}}
	d := New(s, local, staticTokens{}, logging.NewNop(), Options{DBPath: dbPath, Interval: time.Hour, Debounce: 20 * time.Millisecond})
	start(t, d)
	require.Eventually(t, func() bool { return s.count("v1") == 1 }, 2*time.Second, 5*time.Millisecond)

	// clean vault: the write is ours, nothing to push
	require.NoError(t, os.WriteFile(dbPath, []byte("y"), 0o600))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, s.count("v1"))

	local.dirty.Store(true)
	require.NoError(t, os.WriteFile(dbPath+"-wal", []byte("z"), 0o600))
	require.Eventually(t, func() bool { return s.count("v1") == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestEventsURL(t *testing.T) {
	tests := map[string]string{
		"127.0.0.1:8080":       "ws://127.0.0.1:8080/v1/vaults/a%2Fb/events",
		"http://host:1/":       "ws://host:1/v1/vaults/a%2Fb/events",
		"https://host":         "wss://host/v1/vaults/a%2Fb/events",
		"ws://already.example": "ws://already.example/v1/vaults/a%2Fb/events",
	}
	for in, want := range tests {
		d := New(&fakeSyncer{}, &fakeLocal{}, staticTokens{}, logging.NewNop(), Options{NotifyAddr: in})
		assert.Equal(t, want, d.eventsURL("a/b"), in)
	}
}
