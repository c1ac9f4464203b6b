package client

import "time"

type Registration struct {
	AccessToken    string
	Created        bool
	CurrentVersion int64
}

// PushResult is either an accepted push (NewVersion) or a stale base
// (Conflict, with the server's Latest).
type PushResult struct {
	NewVersion int64
	Conflict   bool
	Latest     int64
}

type RemoteSnapshot struct {
	Version   int64
	DeviceID  string
	CreatedAt time.Time
	Digest    string
	Size      int64
	Blob      []byte
}

type PullResult struct {
	NotModified bool
	Latest      int64
	Snapshot    *RemoteSnapshot
}

type DeviceInfo struct {
	DeviceID    string
	FirstSeenAt time.Time
	LastPushAt  time.Time
	LastPullAt  time.Time
}
