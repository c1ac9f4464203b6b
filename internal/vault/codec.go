package vault

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/snapshot"
)

// Cipher encrypts snapshot bodies. Open must fail (preferably with an error
// matching common.ErrDecryption) when the key is wrong or data is corrupt.
type Cipher interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(ciphertext []byte) ([]byte, error)
}

// BodyVersion is the version of the JSON body inside the ciphertext.
const BodyVersion = 1

type body struct {
	Format  int      `json:"format"`
	VaultID string   `json:"vault_id"`
	Records []Record `json:"records"`
}

// MarshalBody returns the canonical plaintext encoding of a store: records
// sorted by id, tombstones included. Version is not part of the body; it is
// assigned by the server on push.
func MarshalBody(s *RecordStore) ([]byte, error) {
	return json.Marshal(body{Format: BodyVersion, VaultID: s.VaultID, Records: s.All()})
}

// UnmarshalBody parses a plaintext body produced by MarshalBody.
func UnmarshalBody(data []byte) (*RecordStore, error) {
	var b body
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrMalformedSnapshot, err)
	}
	if b.Format != BodyVersion {
		return nil, fmt.Errorf("%w: unsupported body format %d", common.ErrMalformedSnapshot, b.Format)
	}

	s := NewRecordStore(b.VaultID)
	for _, r := range b.Records {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: record without id", common.ErrMalformedSnapshot)
		}
		if _, dup := s.records[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate record id %q", common.ErrMalformedSnapshot, r.ID)
		}
		s.records[r.ID] = r
	}
	return s, nil
}

// Codec seals a RecordStore into a snapshot blob and opens it again.
type Codec struct {
	cipher Cipher
}

func NewCodec(c Cipher) *Codec {
	return &Codec{cipher: c}
}

func (c *Codec) Seal(s *RecordStore) ([]byte, error) {
	plain, err := MarshalBody(s)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	sealed, err := c.cipher.Seal(plain)
	if err != nil {
		return nil, fmt.Errorf("encrypt body: %w", err)
	}
	return snapshot.Encode(s.VaultID, sealed)
}

// Open decodes blob into a store. The returned store's Version is zero;
// callers set it from the snapshot metadata.
func (c *Codec) Open(blob []byte) (*RecordStore, error) {
	h, sealed, err := snapshot.Decode(blob)
	if err != nil {
		return nil, err
	}

	plain, err := c.cipher.Open(sealed)
	if err != nil {
		if errors.Is(err, common.ErrDecryption) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrDecryption, err)
	}

	s, err := UnmarshalBody(plain)
	if err != nil {
		return nil, err
	}
	if s.VaultID != h.VaultID {
		return nil, fmt.Errorf("%w: body vault %q does not match header vault %q",
			common.ErrMalformedSnapshot, s.VaultID, h.VaultID)
	}
	return s, nil
}
