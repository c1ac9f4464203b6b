package devices

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/server/models"
)

type Repository interface {
	// Register records a device; registering twice is not an error.
	Register(ctx context.Context, vaultID, deviceID string) error
	MarkPush(ctx context.Context, vaultID, deviceID string, at time.Time) error
	MarkPull(ctx context.Context, vaultID, deviceID string, at time.Time) error
	List(ctx context.Context, vaultID string) ([]models.Device, error)
}
