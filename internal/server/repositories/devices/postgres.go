package devices

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/dbx"
	"github.com/dmitrijs2005/vaultsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Register(ctx context.Context, vaultID, deviceID string) error {
	query :=
		`INSERT INTO devices (vault_id, device_id)
		 VALUES ($1, $2)
		 ON CONFLICT (vault_id, device_id) DO NOTHING
		 `

	if _, err := r.db.ExecContext(ctx, query, vaultID, deviceID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) MarkPush(ctx context.Context, vaultID, deviceID string, at time.Time) error {
	query :=
		`INSERT INTO devices (vault_id, device_id, last_push_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (vault_id, device_id) DO UPDATE SET last_push_at = EXCLUDED.last_push_at
		 `

	if _, err := r.db.ExecContext(ctx, query, vaultID, deviceID, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) MarkPull(ctx context.Context, vaultID, deviceID string, at time.Time) error {
	query :=
		`INSERT INTO devices (vault_id, device_id, last_pull_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (vault_id, device_id) DO UPDATE SET last_pull_at = EXCLUDED.last_pull_at
		 `

	if _, err := r.db.ExecContext(ctx, query, vaultID, deviceID, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, vaultID string) ([]models.Device, error) {
	query :=
		`SELECT vault_id, device_id, first_seen_at, last_push_at, last_pull_at
		 FROM devices
		 WHERE vault_id = $1
		 ORDER BY first_seen_at, device_id
		 `

	rows, err := r.db.QueryContext(ctx, query, vaultID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Device
	for rows.Next() {
		var (
			d                  models.Device
			lastPush, lastPull sql.NullTime
		)
		if err := rows.Scan(&d.VaultID, &d.DeviceID, &d.FirstSeenAt, &lastPush, &lastPull); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		d.LastPushAt = lastPush.Time
		d.LastPullAt = lastPull.Time
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
