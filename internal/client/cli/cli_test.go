package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/client/client"
	"github.com/dmitrijs2005/vaultsync/internal/client/config"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	serverconfig "github.com/dmitrijs2005/vaultsync/internal/server/config"
	gs "github.com/dmitrijs2005/vaultsync/internal/server/grpc"
	"github.com/dmitrijs2005/vaultsync/internal/server/services"
	"github.com/dmitrijs2005/vaultsync/internal/server/syncstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

func startServer(t *testing.T) *bufconn.Listener {
	t.Helper()

	cfg := &serverconfig.Config{SecretKey: "secret", AccessTokenValidityDuration: time.Hour, ListVersionsMax: 10}
	store := syncstore.NewMemoryStore()
	l := logging.NewNop()
	srv := gs.NewGRPCServer("bufnet", l, services.NewAuthService(store, l, cfg), services.NewSyncService(store, nil, l, cfg), cfg.SecretKey)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	t.Cleanup(func() {
		cancel()
		<-done
	})
	return lis
}

// device runs CLI commands against one local database.
type device struct {
	t        *testing.T
	lis      *bufconn.Listener
	db       string
	password string
	stdin    string
}

func newDevice(t *testing.T, lis *bufconn.Listener, password string) *device {
	return &device{t: t, lis: lis, db: filepath.Join(t.TempDir(), "vaultsync.db"), password: password}
}

func (d *device) run(args ...string) (string, error) {
	d.t.Helper()
	return d.runContext(context.Background(), args...)
}

func (d *device) runContext(ctx context.Context, args ...string) (string, error) {
	d.t.Helper()

	opts := &RootOptions{
		NewApp: func(ctx context.Context, cfg *config.Config) (*App, error) {
			return NewApp(ctx, cfg, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return d.lis.DialContext(ctx)
			}))
		},
		Password: func(string, io.Writer) ([]byte, error) {
			return []byte(d.password), nil
		},
	}
	cmd := NewRootCommandWith(opts)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(d.stdin))
	cmd.SetArgs(append([]string{"--server", "passthrough:///bufnet", "--db", d.db, "--log-level", "error"}, args...))

	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func (d *device) must(args ...string) string {
	d.t.Helper()
	out, err := d.run(args...)
	require.NoError(d.t, err, "vaultsync %s", strings.Join(args, " "))
	return out
}

func TestCLI_TwoDevices(t *testing.T) {
	lis := startServer(t)
	a := newDevice(t, lis, "correct horse")
	b := newDevice(t, lis, "correct horse")

	assert.Contains(t, a.must("init", "work"), "Created vault work")

	id := strings.TrimSpace(a.must("put", "--title", "github", "--username", "me", "--password", "s3cret", "--tags", "dev, code"))
	require.NotEmpty(t, id)

	out := a.must("sync")
	assert.Contains(t, out, "work: local-ahead, version 1, pushed")

	out = b.must("init", "work")
	assert.Contains(t, out, "Joined vault work at version 1")
	assert.Contains(t, out, "work: fast-forward, version 1")

	out = b.must("get", id)
	assert.Contains(t, out, "title:    github")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "tags:     dev,code")

	assert.Contains(t, b.must("get", "--reveal", id), "password: s3cret")
	assert.Contains(t, b.must("ls"), "github")

	b.must("put", id, "--notes", "rotated")
	assert.Contains(t, b.must("sync"), "version 2, pushed")

	out = a.must("sync")
	assert.Contains(t, out, "work: fast-forward, version 2")
	out = a.must("get", id)
	assert.Contains(t, out, "title:    github")
	assert.Contains(t, out, "notes:    rotated")

	a.must("rm", id)
	a.must("sync")
	b.must("sync")
	assert.Contains(t, b.must("ls"), "(empty)")

	out = a.must("versions")
	assert.Contains(t, out, "VERSION")
	assert.Equal(t, 4, strings.Count(out, "\n"), out)

	out = a.must("devices")
	assert.Contains(t, out, "(this device)")
	assert.Equal(t, 3, strings.Count(out, "\n"), out)
}

func TestCLI_ConcurrentEditsMerge(t *testing.T) {
	lis := startServer(t)
	a := newDevice(t, lis, "pw")
	b := newDevice(t, lis, "pw")

	a.must("init", "v")
	a.must("sync")
	b.must("init", "v")

	a.must("put", "one", "--title", "from a")
	time.Sleep(2 * time.Millisecond)
	b.must("put", "two", "--title", "from b")

	a.must("sync")
	assert.Contains(t, b.must("sync"), "diverged")
	a.must("sync")

	for _, d := range []*device{a, b} {
		out := d.must("ls")
		assert.Contains(t, out, "from a")
		assert.Contains(t, out, "from b")
	}
}

func TestCLI_WatchPushesPendingEdits(t *testing.T) {
	lis := startServer(t)
	a := newDevice(t, lis, "pw")
	a.must("init", "v")
	a.must("put", "--title", "offline edit")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := a.runContext(ctx, "--notify", "", "--sync-interval", "50ms", "watch")
	require.NoError(t, err)

	out := a.must("versions")
	assert.Equal(t, 2, strings.Count(out, "\n"), out)
}

func TestCLI_SearchAndForget(t *testing.T) {
	lis := startServer(t)
	a := newDevice(t, lis, "pw")
	a.must("init", "v")
	a.must("put", "gh", "--title", "GitHub", "--username", "octo")
	a.must("put", "bank", "--title", "Bank", "--tags", "finance")

	out := a.must("ls", "--search", "OCTO")
	assert.Contains(t, out, "GitHub")
	assert.NotContains(t, out, "Bank")
	assert.Contains(t, a.must("ls", "-s", "fin"), "Bank")
	assert.Contains(t, a.must("ls", "-s", "nope"), `(no entries match "nope")`)

	a.must("sync")

	a.password = "wrong"
	_, err := a.run("forget", "v")
	require.ErrorIs(t, err, client.ErrUnauthorized)

	a.password = "pw"
	assert.Contains(t, a.must("forget", "v"), "Forgot vault v")
	_, err = a.run("ls")
	require.ErrorIs(t, err, errNoVault)

	out = a.must("init", "v")
	assert.Contains(t, out, "Joined vault v at version 1")
	assert.Contains(t, a.must("ls"), "GitHub")
}

func TestCLI_NotesFromStdin(t *testing.T) {
	lis := startServer(t)
	a := newDevice(t, lis, "pw")
	a.must("init", "v")

	a.stdin = "line one\nline two\n\n"
	id := strings.TrimSpace(a.must("put", "--title", "memo", "--notes", "-"))
	a.stdin = ""

	assert.Contains(t, a.must("get", id), "notes:    line one\nline two")
}

func TestCLI_WrongPasswordIsRejected(t *testing.T) {
	lis := startServer(t)
	a := newDevice(t, lis, "right")
	a.must("init", "v")

	c := newDevice(t, lis, "wrong")
	_, err := c.run("init", "v")
	require.ErrorIs(t, err, client.ErrUnauthorized)

	a.password = "wrong"
	_, err = a.run("ls")
	require.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestCLI_Errors(t *testing.T) {
	lis := startServer(t)
	a := newDevice(t, lis, "pw")

	_, err := a.run("ls")
	require.ErrorIs(t, err, errNoVault)

	a.must("init", "one")
	a.must("init", "two")
	_, err = a.run("ls")
	require.ErrorContains(t, err, "pick one with --vault")
	assert.Contains(t, a.must("--vault", "two", "ls"), "(empty)")

	_, err = a.run("--vault", "one", "put")
	require.Error(t, err)

	_, err = a.run("sync", "--strategy", "coin-flip")
	require.ErrorContains(t, err, "unknown merge strategy")

	_, err = a.run("--vault", "one", "get", "missing")
	require.Error(t, err)
}

func TestLoadConfig_FlagsOverrideFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database_path: /tmp/file.db\npush_timeout: 3s\nmax_sync_attempts: 9\n"), 0o600))
	t.Setenv("VAULTSYNC_MAX_SYNC_ATTEMPTS", "4")

	stop := errors.New("stop")
	opts := &RootOptions{
		NewApp: func(context.Context, *config.Config) (*App, error) { return nil, stop },
	}
	cmd := NewRootCommandWith(opts)
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--config", path, "--push-timeout", "7s", "ls"})

	require.ErrorIs(t, cmd.Execute(), stop)
	require.NotNil(t, opts.Config)
	assert.Equal(t, "/tmp/file.db", opts.Config.DatabasePath)
	assert.Equal(t, 7*time.Second, opts.Config.PushTimeout)
	assert.Equal(t, 4, opts.Config.MaxSyncAttempts)
	assert.Equal(t, "127.0.0.1:50051", opts.Config.ServerEndpointAddr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	opts := &RootOptions{
		NewApp: func(context.Context, *config.Config) (*App, error) {
			t.Fatal("app must not be built")
			return nil, nil
		},
	}
	cmd := NewRootCommandWith(opts)
	cmd.SetArgs([]string{"--max-sync-attempts", "0", "ls"})
	require.ErrorContains(t, cmd.Execute(), "max_sync_attempts")
}
