// Package grpc exposes the sync and auth services over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/vaultsync/internal/logging"
	pb "github.com/dmitrijs2005/vaultsync/internal/proto"
	"github.com/dmitrijs2005/vaultsync/internal/server/models"
	"github.com/dmitrijs2005/vaultsync/internal/server/services"
	"github.com/dmitrijs2005/vaultsync/internal/server/syncstore"
	"google.golang.org/grpc"
)

// MaxMessageSize bounds a single snapshot transfer.
const MaxMessageSize = 64 << 20

type Authenticator interface {
	GetSalt(ctx context.Context, vaultID string) ([]byte, error)
	RegisterDevice(ctx context.Context, req services.RegisterRequest) (*services.Registration, error)
}

type Syncer interface {
	Push(ctx context.Context, req services.PushRequest) (int64, error)
	Pull(ctx context.Context, req services.PullRequest) (syncstore.PullResult, error)
	ListVersions(ctx context.Context, vaultID string, limit int) ([]models.Snapshot, error)
	ListDevices(ctx context.Context, vaultID string) ([]models.Device, error)
}

type GRPCServer struct {
	pb.UnimplementedSyncServiceServer
	address   string
	auth      Authenticator
	sync      Syncer
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, as Authenticator, ss Syncer, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		auth:      as,
		sync:      ss,
		jwtSecret: []byte(secretKey),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(MaxMessageSize),
	)
	pb.RegisterSyncServiceServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	return srv.Serve(lis)
}
