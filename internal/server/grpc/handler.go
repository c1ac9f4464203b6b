package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	pb "github.com/dmitrijs2005/vaultsync/internal/proto"
	"github.com/dmitrijs2005/vaultsync/internal/server/models"
	"github.com/dmitrijs2005/vaultsync/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps domain errors onto gRPC status codes.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorValidation), errors.Is(err, common.ErrMalformedSnapshot):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "vault not found")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrVersionConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

func (s *GRPCServer) RegisterDevice(ctx context.Context, req *pb.RegisterDeviceRequest) (*pb.RegisterDeviceResponse, error) {
	r, err := s.auth.RegisterDevice(ctx, services.RegisterRequest{
		VaultID:  req.VaultID,
		DeviceID: req.DeviceID,
		Salt:     req.Salt,
		Verifier: req.Verifier,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &pb.RegisterDeviceResponse{AccessToken: r.AccessToken, Created: r.Created, CurrentVersion: r.CurrentVersion}, nil
}

func (s *GRPCServer) GetSalt(ctx context.Context, req *pb.GetSaltRequest) (*pb.GetSaltResponse, error) {
	salt, err := s.auth.GetSalt(ctx, req.VaultID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &pb.GetSaltResponse{Salt: salt}, nil
}

// Push reports a stale base in the response rather than as an error so the
// client can tell it apart from transport failures.
func (s *GRPCServer) Push(ctx context.Context, req *pb.PushRequest) (*pb.PushResponse, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return nil, err
	}

	v, err := s.sync.Push(ctx, services.PushRequest{
		VaultID:      claims.VaultID,
		DeviceID:     claims.DeviceID,
		ExpectedBase: req.ExpectedBaseVersion,
		Blob:         req.Blob,
	})
	if err != nil {
		var ce *common.ConflictError
		if errors.As(err, &ce) {
			return &pb.PushResponse{Conflict: true, LatestVersion: ce.Current}, nil
		}
		return nil, s.toStatus(ctx, err)
	}
	return &pb.PushResponse{NewVersion: v, LatestVersion: v}, nil
}

func (s *GRPCServer) Pull(ctx context.Context, req *pb.PullRequest) (*pb.PullResponse, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.sync.Pull(ctx, services.PullRequest{VaultID: claims.VaultID, DeviceID: claims.DeviceID, Since: req.SinceVersion})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out := &pb.PullResponse{NotModified: res.NotModified, LatestVersion: res.Latest}
	if res.Snapshot != nil {
		out.Snapshot = snapshotToPB(res.Snapshot)
	}
	return out, nil
}

func (s *GRPCServer) ListVersions(ctx context.Context, req *pb.ListVersionsRequest) (*pb.ListVersionsResponse, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return nil, err
	}

	snaps, err := s.sync.ListVersions(ctx, claims.VaultID, int(req.Limit))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out := &pb.ListVersionsResponse{Versions: make([]*pb.Snapshot, 0, len(snaps))}
	for i := range snaps {
		out.Versions = append(out.Versions, snapshotToPB(&snaps[i]))
	}
	return out, nil
}

func (s *GRPCServer) ListDevices(ctx context.Context, req *pb.ListDevicesRequest) (*pb.ListDevicesResponse, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return nil, err
	}

	devs, err := s.sync.ListDevices(ctx, claims.VaultID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out := &pb.ListDevicesResponse{Devices: make([]*pb.Device, 0, len(devs))}
	for _, d := range devs {
		out.Devices = append(out.Devices, &pb.Device{
			DeviceID:    d.DeviceID,
			FirstSeenAt: d.FirstSeenAt,
			LastPushAt:  optionalTime(d.LastPushAt),
			LastPullAt:  optionalTime(d.LastPullAt),
		})
	}
	return out, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *pb.PingRequest) (*pb.PingResponse, error) {
	return &pb.PingResponse{Status: "OK"}, nil
}

func snapshotToPB(m *models.Snapshot) *pb.Snapshot {
	return &pb.Snapshot{
		VaultID:   m.VaultID,
		Version:   m.Version,
		DeviceID:  m.DeviceID,
		CreatedAt: m.CreatedAt,
		Digest:    m.Digest,
		Size:      m.Size,
		Blob:      m.Blob,
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
