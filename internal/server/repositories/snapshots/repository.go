package snapshots

import (
	"context"

	"github.com/dmitrijs2005/vaultsync/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, s *models.Snapshot) error
	// Get loads one version including its blob or blob key.
	Get(ctx context.Context, vaultID string, version int64) (*models.Snapshot, error)
	// List returns metadata only, newest first.
	List(ctx context.Context, vaultID string, limit int) ([]models.Snapshot, error)
}
