package vaults

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

func (r *PostgresRepository) Create(ctx context.Context, v *models.Vault) error {
	query :=
		`INSERT INTO vaults (id, salt, verifier)
		 VALUES ($1, $2, $3)
		 RETURNING current_version, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, v.ID, v.Salt, v.Verifier).Scan(&v.CurrentVersion, &v.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Vault, error) {
	query :=
		`SELECT id, salt, verifier, current_version, created_at FROM vaults
		 WHERE id = $1
		 `

	v := &models.Vault{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&v.ID, &v.Salt, &v.Verifier, &v.CurrentVersion, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return v, nil
}

func (r *PostgresRepository) CurrentVersion(ctx context.Context, id string) (int64, error) {
	query := `SELECT current_version FROM vaults WHERE id = $1`

	var version int64
	err := r.db.QueryRowContext(ctx, query, id).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	return version, nil
}

func (r *PostgresRepository) CompareAndIncrement(ctx context.Context, id string, expected int64) (int64, error) {
	query :=
		`UPDATE vaults SET current_version = current_version + 1
		 WHERE id = $1 AND current_version = $2
		 RETURNING current_version
		 `

	var version int64
	err := r.db.QueryRowContext(ctx, query, id, expected).Scan(&version)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("db error: %w", err)
	}

	current, err := r.CurrentVersion(ctx, id)
	if err != nil {
		return 0, err
	}
	return 0, &common.ConflictError{Expected: expected, Current: current}
}
