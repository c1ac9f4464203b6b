package vaults

import (
	"context"

	"github.com/dmitrijs2005/vaultsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, v *models.Vault) error
	Get(ctx context.Context, id string) (*models.Vault, error)
	CurrentVersion(ctx context.Context, id string) (int64, error)
	// CompareAndIncrement bumps the vault's version from expected to
	// expected+1. It fails with *common.ConflictError when the stored
	// version differs and with common.ErrorNotFound for unknown vaults.
	CompareAndIncrement(ctx context.Context, id string, expected int64) (int64, error)
}
