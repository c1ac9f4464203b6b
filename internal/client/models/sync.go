package models

import "time"

// SyncCursor is this device's view of a vault's sync progress.
// SyncedFingerprint is the record store fingerprint at the last
// successful sync; a different current fingerprint means unpushed edits.
type SyncCursor struct {
	VaultID           string
	DeviceID          string
	LastKnownVersion  int64
	SyncedFingerprint uint64
	LastPullAt        time.Time
	LastPushAt        time.Time
}

// LocalVault is the at-rest copy of a vault: the record store sealed with
// the vault key, plus the salt needed to re-derive that key.
type LocalVault struct {
	VaultID   string
	Salt      []byte
	Sealed    []byte
	UpdatedAt time.Time
}
