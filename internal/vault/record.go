package vault

import "bytes"

// Record is one entry of a vault. Payload is opaque to this package; a
// tombstone has Deleted set and no payload.
type Record struct {
	ID        string `json:"id"`
	Payload   []byte `json:"payload,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
	DeviceID  string `json:"device_id"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// Newer reports whether r wins over o under last-write-wins.
//
// Order: later UpdatedAt, then greater DeviceID. Two edits with the same
// stamp and device can only come from a corrupted clock; they are still
// ordered (tombstone first, then greater payload) so that the result is
// the same on every device.
func (r Record) Newer(o Record) bool {
	if r.UpdatedAt != o.UpdatedAt {
		return r.UpdatedAt > o.UpdatedAt
	}
	if r.DeviceID != o.DeviceID {
		return r.DeviceID > o.DeviceID
	}
	if r.Deleted != o.Deleted {
		return r.Deleted
	}
	return bytes.Compare(r.Payload, o.Payload) > 0
}

func (r Record) Equal(o Record) bool {
	return r.ID == o.ID &&
		r.UpdatedAt == o.UpdatedAt &&
		r.DeviceID == o.DeviceID &&
		r.Deleted == o.Deleted &&
		bytes.Equal(r.Payload, o.Payload)
}

// differs reports whether two versions of the same record disagree on
// content, ignoring who wrote them and when.
func (r Record) differs(o Record) bool {
	return r.Deleted != o.Deleted || !bytes.Equal(r.Payload, o.Payload)
}

func (r Record) clone() Record {
	if r.Payload != nil {
		r.Payload = bytes.Clone(r.Payload)
	}
	return r
}
