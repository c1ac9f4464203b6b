// Package localvaults stores the sealed at-rest copy of each joined vault.
package localvaults

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/dbx"
)

type Repository interface {
	Get(ctx context.Context, vaultID string) (*models.LocalVault, error)
	Save(ctx context.Context, v *models.LocalVault) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, vaultID string) error
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, vaultID string) (*models.LocalVault, error) {
	var v models.LocalVault
	err := r.db.QueryRowContext(ctx,
		`SELECT vault_id, salt, sealed, updated_at FROM local_vaults WHERE vault_id = ?`, vaultID).
		Scan(&v.VaultID, &v.Salt, &v.Sealed, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get local vault[%s]: %w", vaultID, err)
	}
	return &v, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, v *models.LocalVault) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO local_vaults (vault_id, salt, sealed, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(vault_id) DO UPDATE SET
			salt = excluded.salt,
			sealed = excluded.sealed,
			updated_at = excluded.updated_at
	`, v.VaultID, v.Salt, v.Sealed, v.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save local vault[%s]: %w", v.VaultID, err)
	}
	return nil
}

// List returns the ids of all local vaults in lexical order.
func (r *SQLiteRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT vault_id FROM local_vaults ORDER BY vault_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list local vaults: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan local vault row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate local vault rows: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, vaultID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM local_vaults WHERE vault_id = ?`, vaultID); err != nil {
		return fmt.Errorf("failed to delete local vault[%s]: %w", vaultID, err)
	}
	return nil
}
