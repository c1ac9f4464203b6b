package proto

import "time"

type RegisterDeviceRequest struct {
	VaultID  string `json:"vault_id"`
	DeviceID string `json:"device_id"`
	// Salt is only used when the vault does not exist yet.
	Salt     []byte `json:"salt,omitempty"`
	Verifier []byte `json:"verifier"`
}

type RegisterDeviceResponse struct {
	AccessToken    string `json:"access_token"`
	Created        bool   `json:"created"`
	CurrentVersion int64  `json:"current_version"`
}

type GetSaltRequest struct {
	VaultID string `json:"vault_id"`
}

type GetSaltResponse struct {
	Salt []byte `json:"salt"`
}

// PushRequest pushes a snapshot to the vault named in the caller's token.
type PushRequest struct {
	ExpectedBaseVersion int64  `json:"expected_base_version"`
	Blob                []byte `json:"blob"`
}

// PushResponse reports either the new version or, with Conflict set, the
// version the caller has to catch up with.
type PushResponse struct {
	NewVersion    int64 `json:"new_version,omitempty"`
	Conflict      bool  `json:"conflict,omitempty"`
	LatestVersion int64 `json:"latest_version"`
}

type PullRequest struct {
	SinceVersion int64 `json:"since_version"`
}

type PullResponse struct {
	NotModified   bool      `json:"not_modified,omitempty"`
	LatestVersion int64     `json:"latest_version"`
	Snapshot      *Snapshot `json:"snapshot,omitempty"`
}

type Snapshot struct {
	VaultID   string    `json:"vault_id"`
	Version   int64     `json:"version"`
	DeviceID  string    `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
	Digest    string    `json:"digest"`
	Size      int64     `json:"size"`
	Blob      []byte    `json:"blob,omitempty"`
}

type ListVersionsRequest struct {
	Limit int32 `json:"limit"`
}

type ListVersionsResponse struct {
	Versions []*Snapshot `json:"versions"`
}

type ListDevicesRequest struct{}

type ListDevicesResponse struct {
	Devices []*Device `json:"devices"`
}

type Device struct {
	DeviceID    string     `json:"device_id"`
	FirstSeenAt time.Time  `json:"first_seen_at"`
	LastPushAt  *time.Time `json:"last_push_at,omitempty"`
	LastPullAt  *time.Time `json:"last_pull_at,omitempty"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}
