package grpc

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	pb "github.com/dmitrijs2005/vaultsync/internal/proto"
	"github.com/dmitrijs2005/vaultsync/internal/server/config"
	"github.com/dmitrijs2005/vaultsync/internal/server/services"
	"github.com/dmitrijs2005/vaultsync/internal/server/syncstore"
	"github.com/dmitrijs2005/vaultsync/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const secret = "secret"

var (
	testSalt     = bytes.Repeat([]byte{1}, 16)
	testVerifier = bytes.Repeat([]byte{2}, 32)
)

func startServer(t *testing.T) pb.SyncServiceClient {
	t.Helper()

	cfg := &config.Config{SecretKey: secret, AccessTokenValidityDuration: time.Hour, ListVersionsMax: 10}
	store := syncstore.NewMemoryStore()
	l := logging.NewNop()
	srv := NewGRPCServer("bufnet", l, services.NewAuthService(store, l, cfg), services.NewSyncService(store, nil, l, cfg), secret)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		<-done
	})
	return pb.NewSyncServiceClient(conn)
}

func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, token)
}

func frame(t *testing.T, vaultID, payload string) []byte {
	t.Helper()
	b, err := snapshot.Encode(vaultID, []byte(payload))
	require.NoError(t, err)
	return b
}

func registerDevice(t *testing.T, c pb.SyncServiceClient, deviceID string) string {
	t.Helper()
	resp, err := c.RegisterDevice(context.Background(), &pb.RegisterDeviceRequest{
		VaultID: "v1", DeviceID: deviceID, Salt: testSalt, Verifier: testVerifier,
	})
	require.NoError(t, err)
	return resp.AccessToken
}

func TestServer_PingIsPublic(t *testing.T) {
	c := startServer(t)
	resp, err := c.Ping(context.Background(), &pb.PingRequest{})
	require.NoError(t, err)
	assert.Equal(t, "OK", resp.Status)
}

func TestServer_ProtectedMethodsNeedToken(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	_, err := c.Pull(ctx, &pb.PullRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = c.Pull(withToken(ctx, "garbage"), &pb.PullRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestServer_PushPullRoundTrip(t *testing.T) {
	c := startServer(t)
	ctxA := withToken(context.Background(), registerDevice(t, c, "dev-a"))
	ctxB := withToken(context.Background(), registerDevice(t, c, "dev-b"))

	push, err := c.Push(ctxA, &pb.PushRequest{ExpectedBaseVersion: 0, Blob: frame(t, "v1", "first")})
	require.NoError(t, err)
	assert.False(t, push.Conflict)
	assert.Equal(t, int64(1), push.NewVersion)

	stale, err := c.Push(ctxB, &pb.PushRequest{ExpectedBaseVersion: 0, Blob: frame(t, "v1", "second")})
	require.NoError(t, err)
	assert.True(t, stale.Conflict)
	assert.Equal(t, int64(1), stale.LatestVersion)

	pull, err := c.Pull(ctxB, &pb.PullRequest{SinceVersion: 0})
	require.NoError(t, err)
	require.NotNil(t, pull.Snapshot)
	assert.Equal(t, "dev-a", pull.Snapshot.DeviceID)
	_, payload, err := snapshot.Decode(pull.Snapshot.Blob)
	require.NoError(t, err)
	assert.Equal(t, "first", string(payload))

	pull, err = c.Pull(ctxB, &pb.PullRequest{SinceVersion: 1})
	require.NoError(t, err)
	assert.True(t, pull.NotModified)
	assert.Nil(t, pull.Snapshot)

	versions, err := c.ListVersions(ctxA, &pb.ListVersionsRequest{})
	require.NoError(t, err)
	require.Len(t, versions.Versions, 1)
	assert.Empty(t, versions.Versions[0].Blob)

	devices, err := c.ListDevices(ctxA, &pb.ListDevicesRequest{})
	require.NoError(t, err)
	require.Len(t, devices.Devices, 2)
	assert.NotNil(t, devices.Devices[0].LastPushAt)
}

func TestServer_ErrorMapping(t *testing.T) {
	c := startServer(t)
	ctx := withToken(context.Background(), registerDevice(t, c, "dev-a"))

	_, err := c.Push(ctx, &pb.PushRequest{Blob: []byte("not a frame")})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Push(ctx, &pb.PushRequest{Blob: frame(t, "other-vault", "x")})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.RegisterDevice(context.Background(), &pb.RegisterDeviceRequest{
		VaultID: "v1", DeviceID: "intruder", Verifier: bytes.Repeat([]byte{7}, 32),
	})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.NewNop(), nil, nil, secret)
	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.NewNop(), nil, nil, secret)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}
