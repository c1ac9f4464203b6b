package models

import "time"

// Device is a registered device of a vault. Zero times mean "never".
type Device struct {
	VaultID     string
	DeviceID    string
	FirstSeenAt time.Time
	LastPushAt  time.Time
	LastPullAt  time.Time
}
