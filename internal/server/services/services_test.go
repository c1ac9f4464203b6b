package services

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/server/auth"
	"github.com/dmitrijs2005/vaultsync/internal/server/config"
	"github.com/dmitrijs2005/vaultsync/internal/server/syncstore"
	"github.com/dmitrijs2005/vaultsync/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	vaultID  string
	version  int64
	deviceID string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (n *recordingNotifier) Publish(vaultID string, version int64, deviceID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{vaultID, version, deviceID})
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
		ListVersionsMax:             3,
	}
}

var (
	salt     = bytes.Repeat([]byte{1}, 16)
	verifier = bytes.Repeat([]byte{2}, 32)
)

func newServices(t *testing.T) (*AuthService, *SyncService, *recordingNotifier) {
	t.Helper()
	store := syncstore.NewMemoryStore()
	n := &recordingNotifier{}
	cfg := testConfig()
	return NewAuthService(store, logging.NewNop(), cfg), NewSyncService(store, n, logging.NewNop(), cfg), n
}

func register(t *testing.T, a *AuthService, vaultID, deviceID string) *Registration {
	t.Helper()
	r, err := a.RegisterDevice(context.Background(), RegisterRequest{VaultID: vaultID, DeviceID: deviceID, Salt: salt, Verifier: verifier})
	require.NoError(t, err)
	return r
}

func frame(t *testing.T, vaultID, payload string) []byte {
	t.Helper()
	b, err := snapshot.Encode(vaultID, []byte(payload))
	require.NoError(t, err)
	return b
}

func TestAuthService_FirstDeviceCreatesVault(t *testing.T) {
	a, _, _ := newServices(t)

	r := register(t, a, "v1", "dev-a")
	assert.True(t, r.Created)
	assert.Equal(t, int64(0), r.CurrentVersion)

	claims, err := auth.ParseToken(r.AccessToken, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "v1", claims.VaultID)
	assert.Equal(t, "dev-a", claims.DeviceID)

	got, err := a.GetSalt(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, salt, got)
}

func TestAuthService_SecondDeviceMustMatchVerifier(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newServices(t)
	register(t, a, "v1", "dev-a")

	r := register(t, a, "v1", "dev-b")
	assert.False(t, r.Created)

	_, err := a.RegisterDevice(ctx, RegisterRequest{VaultID: "v1", DeviceID: "dev-c", Verifier: bytes.Repeat([]byte{9}, 32)})
	require.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestAuthService_Validation(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newServices(t)

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"missing vault", RegisterRequest{DeviceID: "d", Salt: salt, Verifier: verifier}},
		{"missing device", RegisterRequest{VaultID: "v", Salt: salt, Verifier: verifier}},
		{"short verifier", RegisterRequest{VaultID: "v", DeviceID: "d", Salt: salt, Verifier: []byte("x")}},
		{"short salt", RegisterRequest{VaultID: "v", DeviceID: "d", Salt: []byte("s"), Verifier: verifier}},
		{"create without salt", RegisterRequest{VaultID: "v", DeviceID: "d", Verifier: verifier}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.RegisterDevice(ctx, tt.req)
			require.ErrorIs(t, err, common.ErrorValidation)
		})
	}
}

func TestAuthService_GetSaltUnknownVault(t *testing.T) {
	a, _, _ := newServices(t)
	s1, err := a.GetSalt(context.Background(), "nope")
	require.NoError(t, err)
	assert.Len(t, s1, 16)

	_, err = a.GetSalt(context.Background(), "")
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestSyncService_PushNotifies(t *testing.T) {
	ctx := context.Background()
	a, s, n := newServices(t)
	register(t, a, "v1", "dev-a")

	v, err := s.Push(ctx, PushRequest{VaultID: "v1", DeviceID: "dev-a", ExpectedBase: 0, Blob: frame(t, "v1", "x")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = s.Push(ctx, PushRequest{VaultID: "v1", DeviceID: "dev-a", ExpectedBase: 0, Blob: frame(t, "v1", "y")})
	var ce *common.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(1), ce.Current)

	assert.Equal(t, []event{{"v1", 1, "dev-a"}}, n.events)
}

func TestSyncService_PushValidation(t *testing.T) {
	_, s, n := newServices(t)
	_, err := s.Push(context.Background(), PushRequest{VaultID: "v1", DeviceID: "d", ExpectedBase: -1, Blob: []byte("x")})
	require.ErrorIs(t, err, common.ErrorValidation)
	_, err = s.Push(context.Background(), PushRequest{VaultID: "v1", DeviceID: "d"})
	require.ErrorIs(t, err, common.ErrorValidation)
	assert.Empty(t, n.events)
}

func TestSyncService_PullAndListVersionsClamp(t *testing.T) {
	ctx := context.Background()
	a, s, _ := newServices(t)
	register(t, a, "v1", "dev-a")

	for i := int64(0); i < 5; i++ {
		_, err := s.Push(ctx, PushRequest{VaultID: "v1", DeviceID: "dev-a", ExpectedBase: i, Blob: frame(t, "v1", "p")})
		require.NoError(t, err)
	}

	res, err := s.Pull(ctx, PullRequest{VaultID: "v1", DeviceID: "dev-b", Since: 2})
	require.NoError(t, err)
	require.NotNil(t, res.Snapshot)
	assert.Equal(t, int64(5), res.Snapshot.Version)

	res, err = s.Pull(ctx, PullRequest{VaultID: "v1", DeviceID: "dev-b", Since: 5})
	require.NoError(t, err)
	assert.True(t, res.NotModified)
	assert.Equal(t, int64(5), res.Latest)

	for _, limit := range []int{0, -1, 100} {
		vs, err := s.ListVersions(ctx, "v1", limit)
		require.NoError(t, err)
		assert.Len(t, vs, 3)
		assert.Equal(t, int64(5), vs[0].Version)
	}
	vs, err := s.ListVersions(ctx, "v1", 2)
	require.NoError(t, err)
	assert.Len(t, vs, 2)

	devs, err := s.ListDevices(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, devs, 2)
}
