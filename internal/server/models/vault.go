// Package models holds the server-side persistent types. None of them
// carries decrypted vault content.
package models

import "time"

// Vault is the server's record of a synchronized vault. Salt and Verifier
// are produced by the first device and are opaque to the server.
type Vault struct {
	ID             string
	Salt           []byte
	Verifier       []byte
	CurrentVersion int64
	CreatedAt      time.Time
}
