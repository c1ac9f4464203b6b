// Package blobstore keeps snapshot blobs outside the database, keyed by
// content digest.
package blobstore

import (
	"context"
	"fmt"
)

type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Key returns the content address of a vault blob.
func Key(vaultID, digest string) string {
	return fmt.Sprintf("vaults/%s/%s", vaultID, digest)
}
