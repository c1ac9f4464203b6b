package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/server/config"
	"github.com/dmitrijs2005/vaultsync/internal/server/models"
	"github.com/dmitrijs2005/vaultsync/internal/server/syncstore"
	"github.com/go-playground/validator/v10"
)

type PushRequest struct {
	VaultID      string `validate:"required,max=256"`
	DeviceID     string `validate:"required,max=128"`
	ExpectedBase int64  `validate:"gte=0"`
	Blob         []byte `validate:"required"`
}

type PullRequest struct {
	VaultID  string `validate:"required,max=256"`
	DeviceID string `validate:"required,max=128"`
	Since    int64  `validate:"gte=0"`
}

// SyncService exposes push/pull and the listing operations for
// authenticated devices.
type SyncService struct {
	store    syncstore.Store
	notifier Notifier
	logger   logging.Logger
	validate *validator.Validate
	listMax  int
}

// NewSyncService builds the service. A nil notifier disables change
// notifications.
func NewSyncService(store syncstore.Store, n Notifier, l logging.Logger, cfg *config.Config) *SyncService {
	if n == nil {
		n = nopNotifier{}
	}
	return &SyncService{
		store:    store,
		notifier: n,
		logger:   l.With("module", "sync_service"),
		validate: validator.New(),
		listMax:  cfg.ListVersionsMax,
	}
}

// Push stores a new snapshot. A stale base yields *common.ConflictError.
func (s *SyncService) Push(ctx context.Context, req PushRequest) (int64, error) {
	if err := validate(s.validate, req); err != nil {
		return 0, err
	}

	v, err := s.store.Push(ctx, req.VaultID, req.DeviceID, req.ExpectedBase, req.Blob)
	if err != nil {
		var ce *common.ConflictError
		if errors.As(err, &ce) {
			s.logger.Info(ctx, "push rejected, stale base",
				"vault_id", req.VaultID, "device_id", req.DeviceID,
				"expected", ce.Expected, "current", ce.Current)
		}
		return 0, err
	}

	s.logger.Info(ctx, "push accepted", "vault_id", req.VaultID, "device_id", req.DeviceID, "version", v, "size", len(req.Blob))
	s.notifier.Publish(req.VaultID, v, req.DeviceID)
	return v, nil
}

func (s *SyncService) Pull(ctx context.Context, req PullRequest) (syncstore.PullResult, error) {
	if err := validate(s.validate, req); err != nil {
		return syncstore.PullResult{}, err
	}
	return s.store.Pull(ctx, req.VaultID, req.DeviceID, req.Since)
}

// ListVersions returns at most limit snapshots, newest first. Limits outside
// (0, max] are clamped to the configured maximum.
func (s *SyncService) ListVersions(ctx context.Context, vaultID string, limit int) ([]models.Snapshot, error) {
	if limit <= 0 || limit > s.listMax {
		limit = s.listMax
	}
	return s.store.ListVersions(ctx, vaultID, limit)
}

func (s *SyncService) ListDevices(ctx context.Context, vaultID string) ([]models.Device, error) {
	return s.store.ListDevices(ctx, vaultID)
}
