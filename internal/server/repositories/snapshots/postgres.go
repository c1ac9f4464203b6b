package snapshots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/dbx"
	"github.com/dmitrijs2005/vaultsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, s *models.Snapshot) error {
	query :=
		`INSERT INTO snapshots (vault_id, version, device_id, digest, size, blob, blob_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at
		 `

	var blobKey sql.NullString
	if s.BlobKey != "" {
		blobKey = sql.NullString{String: s.BlobKey, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		s.VaultID, s.Version, s.DeviceID, s.Digest, s.Size, s.Blob, blobKey).Scan(&s.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, vaultID string, version int64) (*models.Snapshot, error) {
	query :=
		`SELECT vault_id, version, device_id, created_at, digest, size, blob, blob_key
		 FROM snapshots
		 WHERE vault_id = $1 AND version = $2
		 `

	s := &models.Snapshot{}
	var blobKey sql.NullString
	err := r.db.QueryRowContext(ctx, query, vaultID, version).
		Scan(&s.VaultID, &s.Version, &s.DeviceID, &s.CreatedAt, &s.Digest, &s.Size, &s.Blob, &blobKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.BlobKey = blobKey.String

	return s, nil
}

func (r *PostgresRepository) List(ctx context.Context, vaultID string, limit int) ([]models.Snapshot, error) {
	query :=
		`SELECT vault_id, version, device_id, created_at, digest, size
		 FROM snapshots
		 WHERE vault_id = $1
		 ORDER BY version DESC
		 LIMIT $2
		 `

	rows, err := r.db.QueryContext(ctx, query, vaultID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Snapshot
	for rows.Next() {
		var s models.Snapshot
		if err := rows.Scan(&s.VaultID, &s.Version, &s.DeviceID, &s.CreatedAt, &s.Digest, &s.Size); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
