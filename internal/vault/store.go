package vault

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/dmitrijs2005/vaultsync/internal/common"
)

var ErrEmptyID = errors.New("record id must not be empty")

// RecordStore is a vault's decrypted record collection. Version is the
// server-assigned snapshot version this store was last aligned with.
//
// A RecordStore is not safe for concurrent use.
type RecordStore struct {
	VaultID string
	Version int64

	records map[string]Record
}

func NewRecordStore(vaultID string) *RecordStore {
	return &RecordStore{VaultID: vaultID, records: make(map[string]Record)}
}

// Put creates or replaces the record id.
func (s *RecordStore) Put(id string, payload []byte, st Stamp) (Record, error) {
	if id == "" {
		return Record{}, ErrEmptyID
	}
	r := Record{
		ID:        id,
		Payload:   append([]byte(nil), payload...),
		UpdatedAt: st.At,
		DeviceID:  st.DeviceID,
	}
	s.records[id] = r
	return r, nil
}

// Delete replaces a live record with a tombstone.
func (s *RecordStore) Delete(id string, st Stamp) (Record, error) {
	cur, ok := s.records[id]
	if !ok || cur.Deleted {
		return Record{}, fmt.Errorf("record %q: %w", id, common.ErrorNotFound)
	}
	r := Record{ID: id, UpdatedAt: st.At, DeviceID: st.DeviceID, Deleted: true}
	s.records[id] = r
	return r, nil
}

// Get returns the live record id.
func (s *RecordStore) Get(id string) (Record, bool) {
	r, ok := s.records[id]
	if !ok || r.Deleted {
		return Record{}, false
	}
	return r.clone(), true
}

// Lookup returns the record id, tombstone or not.
func (s *RecordStore) Lookup(id string) (Record, bool) {
	r, ok := s.records[id]
	return r.clone(), ok
}

// Apply stores r if it wins over the current version of the same id.
// It reports whether the store changed.
func (s *RecordStore) Apply(r Record) (bool, error) {
	if r.ID == "" {
		return false, ErrEmptyID
	}
	if cur, ok := s.records[r.ID]; ok && !r.Newer(cur) {
		return false, nil
	}
	s.records[r.ID] = r.clone()
	return true, nil
}

// All returns every record including tombstones, sorted by id.
func (s *RecordStore) All() []Record {
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Live returns non-deleted records sorted by id.
func (s *RecordStore) Live() []Record {
	all := s.All()
	out := all[:0]
	for _, r := range all {
		if !r.Deleted {
			out = append(out, r)
		}
	}
	return out
}

// Len counts records including tombstones.
func (s *RecordStore) Len() int {
	return len(s.records)
}

func (s *RecordStore) Clone() *RecordStore {
	c := &RecordStore{VaultID: s.VaultID, Version: s.Version, records: make(map[string]Record, len(s.records))}
	for id, r := range s.records {
		c.records[id] = r.clone()
	}
	return c
}

// Equal compares records only; VaultID and Version are ignored.
func (s *RecordStore) Equal(o *RecordStore) bool {
	if len(s.records) != len(o.records) {
		return false
	}
	for id, r := range s.records {
		or, ok := o.records[id]
		if !ok || !r.Equal(or) {
			return false
		}
	}
	return true
}

// Fingerprint hashes the records in id order. Two stores with equal records
// have equal fingerprints regardless of Version.
func (s *RecordStore) Fingerprint() uint64 {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := xxhash.New()
	var num [8]byte
	writeBytes := func(b []byte) {
		binary.BigEndian.PutUint64(num[:], uint64(len(b)))
		_, _ = h.Write(num[:])
		_, _ = h.Write(b)
	}

	for _, id := range ids {
		r := s.records[id]
		writeBytes([]byte(r.ID))
		writeBytes([]byte(r.DeviceID))
		binary.BigEndian.PutUint64(num[:], uint64(r.UpdatedAt))
		_, _ = h.Write(num[:])
		if r.Deleted {
			_, _ = h.Write([]byte{1})
		} else {
			_, _ = h.Write([]byte{0})
		}
		writeBytes(r.Payload)
	}
	return h.Sum64()
}

// MaxTimestamp returns the newest UpdatedAt in the store, or 0 when empty.
func (s *RecordStore) MaxTimestamp() int64 {
	var newest int64
	for _, r := range s.records {
		if r.UpdatedAt > newest {
			newest = r.UpdatedAt
		}
	}
	return newest
}

// PruneTombstones drops tombstones stamped before the given time and returns
// how many were removed.
func (s *RecordStore) PruneTombstones(before int64) int {
	n := 0
	for id, r := range s.records {
		if r.Deleted && r.UpdatedAt < before {
			delete(s.records, id)
			n++
		}
	}
	return n
}
