package models

import "time"

// Snapshot is one pushed version of a vault. Exactly one of Blob and
// BlobKey is set when loaded from storage: BlobKey points to object
// storage. Listings leave both empty.
type Snapshot struct {
	VaultID   string
	Version   int64
	DeviceID  string
	CreatedAt time.Time
	Digest    string
	Size      int64
	Blob      []byte
	BlobKey   string
}
