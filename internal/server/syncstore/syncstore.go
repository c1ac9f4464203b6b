// Package syncstore is the server's zero-knowledge snapshot store. Each
// vault owns an append-only sequence of opaque blobs; a push is accepted
// only when the caller names the current version (compare-and-swap).
package syncstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/server/models"
	"github.com/dmitrijs2005/vaultsync/internal/snapshot"
)

// PullResult carries the latest snapshot when the caller is behind.
// Latest is always set so that a client can notice the server moved
// backwards.
type PullResult struct {
	Snapshot    *models.Snapshot
	Latest      int64
	NotModified bool
}

type Store interface {
	// Push appends blob as version expectedBase+1. It fails with
	// *common.ConflictError if expectedBase is not the current version.
	Push(ctx context.Context, vaultID, deviceID string, expectedBase int64, blob []byte) (int64, error)
	Pull(ctx context.Context, vaultID, deviceID string, since int64) (PullResult, error)
	// ListVersions returns snapshot metadata, newest first, without blobs.
	ListVersions(ctx context.Context, vaultID string, limit int) ([]models.Snapshot, error)
	ListDevices(ctx context.Context, vaultID string) ([]models.Device, error)
}

type Registry interface {
	CreateVault(ctx context.Context, v *models.Vault) error
	GetVault(ctx context.Context, id string) (*models.Vault, error)
	RegisterDevice(ctx context.Context, vaultID, deviceID string) error
}

// Backend is a Store that also manages vault registration.
type Backend interface {
	Store
	Registry
}

// checkBlob validates the snapshot frame and that it belongs to vaultID.
// The payload itself is never looked at.
func checkBlob(vaultID string, blob []byte) error {
	h, err := snapshot.ParseHeader(blob)
	if err != nil {
		return err
	}
	if h.VaultID != vaultID {
		return fmt.Errorf("%w: snapshot for vault %q pushed to %q", common.ErrMalformedSnapshot, h.VaultID, vaultID)
	}
	return nil
}

func digest(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}
