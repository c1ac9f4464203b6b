// Package cursors persists sync cursors, one per (vault, device) pair.
package cursors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/dbx"
)

type Repository interface {
	Get(ctx context.Context, vaultID, deviceID string) (*models.SyncCursor, error)
	Save(ctx context.Context, c *models.SyncCursor) error
	Delete(ctx context.Context, vaultID string) error
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get returns common.ErrorNotFound when deviceID has never synced vaultID.
func (r *SQLiteRepository) Get(ctx context.Context, vaultID, deviceID string) (*models.SyncCursor, error) {
	var (
		c          models.SyncCursor
		fp         int64
		lastPullAt sql.NullTime
		lastPushAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT vault_id, device_id, last_known_version, synced_fingerprint, last_pull_at, last_push_at
		FROM sync_cursors WHERE vault_id = ? AND device_id = ?`, vaultID, deviceID).
		Scan(&c.VaultID, &c.DeviceID, &c.LastKnownVersion, &fp, &lastPullAt, &lastPushAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor[%s/%s]: %w", vaultID, deviceID, err)
	}
	// sqlite integers are signed; the fingerprint round-trips bitwise
	c.SyncedFingerprint = uint64(fp)
	c.LastPullAt = lastPullAt.Time
	c.LastPushAt = lastPushAt.Time
	return &c, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, c *models.SyncCursor) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_cursors (vault_id, device_id, last_known_version, synced_fingerprint, last_pull_at, last_push_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(vault_id, device_id) DO UPDATE SET
			last_known_version = excluded.last_known_version,
			synced_fingerprint = excluded.synced_fingerprint,
			last_pull_at = excluded.last_pull_at,
			last_push_at = excluded.last_push_at
	`, c.VaultID, c.DeviceID, c.LastKnownVersion, int64(c.SyncedFingerprint), nullTime(c.LastPullAt), nullTime(c.LastPushAt))
	if err != nil {
		return fmt.Errorf("failed to save cursor[%s]: %w", c.VaultID, err)
	}
	return nil
}

// Delete drops the cursors of every device for vaultID.
func (r *SQLiteRepository) Delete(ctx context.Context, vaultID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_cursors WHERE vault_id = ?`, vaultID); err != nil {
		return fmt.Errorf("failed to delete cursors[%s]: %w", vaultID, err)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
