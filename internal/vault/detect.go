package vault

// State is how a device's local view relates to the server's latest version.
type State int

const (
	UpToDate State = iota
	// FastForward: the server moved on and nothing local is pending.
	FastForward
	// Diverged: the server moved on and local edits are pending. Merge required.
	Diverged
	// LocalAhead: the server has not moved and local edits are pending.
	LocalAhead
	// Rewound: the server reports a version older than the one this device
	// last saw, e.g. after a restore from backup.
	Rewound
)

func (s State) String() string {
	switch s {
	case UpToDate:
		return "up-to-date"
	case FastForward:
		return "fast-forward"
	case Diverged:
		return "diverged"
	case LocalAhead:
		return "local-ahead"
	case Rewound:
		return "rewound"
	default:
		return "unknown"
	}
}

// Classify compares the cursor's last known version with the server's
// latest version. dirty reports whether the device has edits that were not
// part of its last successful sync.
func Classify(lastKnown, remoteLatest int64, dirty bool) State {
	switch {
	case remoteLatest < lastKnown:
		return Rewound
	case remoteLatest == lastKnown && dirty:
		return LocalAhead
	case remoteLatest == lastKnown:
		return UpToDate
	case dirty:
		return Diverged
	default:
		return FastForward
	}
}
