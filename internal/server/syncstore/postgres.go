package syncstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/dbx"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/server/blobstore"
	"github.com/dmitrijs2005/vaultsync/internal/server/models"
	"github.com/dmitrijs2005/vaultsync/internal/server/repositories/repomanager"
)

// PostgresStore keeps vault versions in Postgres. Blobs are stored inline
// unless a BlobStore is configured, in which case only the content key is
// kept in the row.
type PostgresStore struct {
	db     *sql.DB
	rm     repomanager.RepositoryManager
	blobs  blobstore.BlobStore
	logger logging.Logger
	now    func() time.Time
}

// NewPostgresStore wires the store. blobs may be nil for inline storage.
func NewPostgresStore(db *sql.DB, rm repomanager.RepositoryManager, blobs blobstore.BlobStore, logger logging.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		rm:     rm,
		blobs:  blobs,
		logger: logger.With("module", "syncstore"),
		now:    time.Now,
	}
}

func (s *PostgresStore) CreateVault(ctx context.Context, v *models.Vault) error {
	return s.rm.Vaults(s.db).Create(ctx, v)
}

func (s *PostgresStore) GetVault(ctx context.Context, id string) (*models.Vault, error) {
	return s.rm.Vaults(s.db).Get(ctx, id)
}

func (s *PostgresStore) RegisterDevice(ctx context.Context, vaultID, deviceID string) error {
	return s.rm.Devices(s.db).Register(ctx, vaultID, deviceID)
}

func (s *PostgresStore) Push(ctx context.Context, vaultID, deviceID string, expectedBase int64, blob []byte) (int64, error) {
	if err := checkBlob(vaultID, blob); err != nil {
		return 0, err
	}

	snap := &models.Snapshot{
		VaultID:  vaultID,
		DeviceID: deviceID,
		Digest:   digest(blob),
		Size:     int64(len(blob)),
	}

	if s.blobs == nil {
		snap.Blob = blob
	} else {
		// Skip the upload when the push is already known to lose.
		current, err := s.rm.Vaults(s.db).CurrentVersion(ctx, vaultID)
		if err != nil {
			return 0, err
		}
		if current != expectedBase {
			return 0, &common.ConflictError{Expected: expectedBase, Current: current}
		}

		snap.BlobKey = blobstore.Key(vaultID, snap.Digest)
		if err := s.blobs.Put(ctx, snap.BlobKey, blob); err != nil {
			return 0, err
		}
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		version, err := s.rm.Vaults(tx).CompareAndIncrement(ctx, vaultID, expectedBase)
		if err != nil {
			return err
		}
		snap.Version = version

		if err := s.rm.Snapshots(tx).Insert(ctx, snap); err != nil {
			return err
		}
		return s.rm.Devices(tx).MarkPush(ctx, vaultID, deviceID, s.now())
	})
	if err != nil {
		if snap.BlobKey != "" {
			s.discardBlob(ctx, snap.BlobKey)
		}
		return 0, err
	}

	return snap.Version, nil
}

// discardBlob removes a blob uploaded for a push that did not commit.
// Sealed blobs carry a fresh nonce, so no committed row shares its key.
func (s *PostgresStore) discardBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn(ctx, "failed to delete orphaned blob", "blob_key", key, "error", err)
	}
}

func (s *PostgresStore) Pull(ctx context.Context, vaultID, deviceID string, since int64) (PullResult, error) {
	latest, err := s.rm.Vaults(s.db).CurrentVersion(ctx, vaultID)
	if err != nil {
		return PullResult{}, err
	}

	if err := s.rm.Devices(s.db).MarkPull(ctx, vaultID, deviceID, s.now()); err != nil {
		s.logger.Warn(ctx, "failed to record pull", "vault_id", vaultID, "device_id", deviceID, "error", err)
	}

	if since >= latest {
		return PullResult{Latest: latest, NotModified: true}, nil
	}

	snap, err := s.rm.Snapshots(s.db).Get(ctx, vaultID, latest)
	if err != nil {
		return PullResult{}, err
	}

	if snap.BlobKey != "" {
		if s.blobs == nil {
			return PullResult{}, errors.New("snapshot stored externally but no blob store configured")
		}
		snap.Blob, err = s.blobs.Get(ctx, snap.BlobKey)
		if err != nil {
			return PullResult{}, fmt.Errorf("load blob for version %d: %w", latest, err)
		}
	}

	return PullResult{Snapshot: snap, Latest: latest}, nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, vaultID string, limit int) ([]models.Snapshot, error) {
	if _, err := s.rm.Vaults(s.db).CurrentVersion(ctx, vaultID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	return s.rm.Snapshots(s.db).List(ctx, vaultID, limit)
}

func (s *PostgresStore) ListDevices(ctx context.Context, vaultID string) ([]models.Device, error) {
	if _, err := s.rm.Vaults(s.db).CurrentVersion(ctx, vaultID); err != nil {
		return nil, err
	}
	return s.rm.Devices(s.db).List(ctx, vaultID)
}
