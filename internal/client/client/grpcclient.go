package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	pb "github.com/dmitrijs2005/vaultsync/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// MaxMessageSize matches the server's limit for one snapshot.
const MaxMessageSize = 64 << 20

// TokenSource returns the stored access token of a vault.
type TokenSource interface {
	Token(ctx context.Context, vaultID string) (string, error)
}

// ReauthFunc obtains and stores a fresh token for vaultID.
type ReauthFunc func(ctx context.Context, vaultID string) (string, error)

type vaultKey struct{}

func withVault(ctx context.Context, vaultID string) context.Context {
	return context.WithValue(ctx, vaultKey{}, vaultID)
}

func vaultFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(vaultKey{}).(string)
	return v, ok && v != ""
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.SyncServiceClient
	tokens      TokenSource

	mu     sync.RWMutex
	reauth ReauthFunc
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	vaultID, ok := vaultFrom(ctx)
	if !ok {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	token, err := s.tokens.Token(ctx, vaultID)
	if err != nil {
		return fmt.Errorf("%w: no token for vault %q: %v", ErrUnauthorized, vaultID, err)
	}

	err = invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
	if err == nil || !isTokenExpired(err) {
		return err
	}

	s.mu.RLock()
	reauth := s.reauth
	s.mu.RUnlock()
	if reauth == nil {
		return err
	}

	token, rerr := reauth(ctx, vaultID)
	if rerr != nil {
		return err
	}
	return invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
}

// NewGRPCClient prepares a lazily connecting client for endpointURL. Extra
// dial options are applied after the defaults.
func NewGRPCClient(endpointURL string, tokens TokenSource, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, tokens: tokens}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(MaxMessageSize), grpc.MaxCallSendMsgSize(MaxMessageSize)),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = pb.NewSyncServiceClient(conn)
	return c, nil
}

// SetReauth installs the hook used when a vault token has expired.
func (s *GRPCClient) SetReauth(fn ReauthFunc) {
	s.mu.Lock()
	s.reauth = fn
	s.mu.Unlock()
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) RegisterDevice(ctx context.Context, vaultID, deviceID string, salt, verifier []byte) (*Registration, error) {
	resp, err := s.client.RegisterDevice(ctx, &pb.RegisterDeviceRequest{
		VaultID:  vaultID,
		DeviceID: deviceID,
		Salt:     salt,
		Verifier: verifier,
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return &Registration{AccessToken: resp.AccessToken, Created: resp.Created, CurrentVersion: resp.CurrentVersion}, nil
}

func (s *GRPCClient) GetSalt(ctx context.Context, vaultID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 12*time.Second)
	defer cancel()

	resp, err := s.client.GetSalt(ctx, &pb.GetSaltRequest{VaultID: vaultID})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Salt, nil
}

func (s *GRPCClient) Push(ctx context.Context, vaultID string, expectedBase int64, blob []byte) (PushResult, error) {
	resp, err := s.client.Push(withVault(ctx, vaultID), &pb.PushRequest{ExpectedBaseVersion: expectedBase, Blob: blob})
	if err != nil {
		return PushResult{}, s.mapError(err)
	}
	return PushResult{NewVersion: resp.NewVersion, Conflict: resp.Conflict, Latest: resp.LatestVersion}, nil
}

func (s *GRPCClient) Pull(ctx context.Context, vaultID string, since int64) (PullResult, error) {
	resp, err := s.client.Pull(withVault(ctx, vaultID), &pb.PullRequest{SinceVersion: since})
	if err != nil {
		return PullResult{}, s.mapError(err)
	}

	out := PullResult{NotModified: resp.NotModified, Latest: resp.LatestVersion}
	if resp.Snapshot != nil {
		out.Snapshot = snapshotFromPB(resp.Snapshot)
	}
	return out, nil
}

func (s *GRPCClient) ListVersions(ctx context.Context, vaultID string, limit int) ([]RemoteSnapshot, error) {
	resp, err := s.client.ListVersions(withVault(ctx, vaultID), &pb.ListVersionsRequest{Limit: int32(limit)})
	if err != nil {
		return nil, s.mapError(err)
	}

	out := make([]RemoteSnapshot, 0, len(resp.Versions))
	for _, v := range resp.Versions {
		out = append(out, *snapshotFromPB(v))
	}
	return out, nil
}

func (s *GRPCClient) ListDevices(ctx context.Context, vaultID string) ([]DeviceInfo, error) {
	resp, err := s.client.ListDevices(withVault(ctx, vaultID), &pb.ListDevicesRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}

	out := make([]DeviceInfo, 0, len(resp.Devices))
	for _, d := range resp.Devices {
		info := DeviceInfo{DeviceID: d.DeviceID, FirstSeenAt: d.FirstSeenAt}
		if d.LastPushAt != nil {
			info.LastPushAt = *d.LastPushAt
		}
		if d.LastPullAt != nil {
			info.LastPullAt = *d.LastPullAt
		}
		out = append(out, info)
	}
	return out, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &pb.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func snapshotFromPB(p *pb.Snapshot) *RemoteSnapshot {
	return &RemoteSnapshot{
		Version:   p.Version,
		DeviceID:  p.DeviceID,
		CreatedAt: p.CreatedAt,
		Digest:    p.Digest,
		Size:      p.Size,
		Blob:      p.Blob,
	}
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnauthorized) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", common.ErrorNotFound, st.Message())
	case codes.InvalidArgument:
		if strings.Contains(st.Message(), common.ErrMalformedSnapshot.Error()) {
			return fmt.Errorf("%w: %s", common.ErrMalformedSnapshot, st.Message())
		}
		return fmt.Errorf("%w: %s", common.ErrorValidation, st.Message())
	case codes.Aborted:
		return fmt.Errorf("%w: %s", common.ErrVersionConflict, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
