// Package snapshot implements the envelope around an encrypted vault
// snapshot. The envelope is the only part of a blob the server looks at:
// it names the vault and the format version so that obviously wrong
// uploads can be rejected without decrypting anything.
//
// Layout (big endian):
//
//	magic    [4]byte  "VSYN"
//	version  uint8
//	flags    uint8    reserved, must be zero
//	idLen    uint16
//	vaultID  [idLen]byte
//	payload  []byte   sealed record body
package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/common"
)

const (
	FormatVersion uint8 = 1

	// MaxVaultIDLen bounds the vault id stored in the header.
	MaxVaultIDLen = 256

	fixedHeaderLen = 8
)

var magic = [4]byte{'V', 'S', 'Y', 'N'}

type Header struct {
	FormatVersion uint8
	Flags         uint8
	VaultID       string
}

// Encode wraps a sealed payload in a frame for vaultID.
func Encode(vaultID string, payload []byte) ([]byte, error) {
	if vaultID == "" || len(vaultID) > MaxVaultIDLen {
		return nil, fmt.Errorf("%w: vault id length %d", common.ErrMalformedSnapshot, len(vaultID))
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", common.ErrMalformedSnapshot)
	}

	var buf bytes.Buffer
	buf.Grow(fixedHeaderLen + len(vaultID) + len(payload))
	buf.Write(magic[:])
	buf.WriteByte(FormatVersion)
	buf.WriteByte(0)
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(vaultID)))
	buf.WriteString(vaultID)
	buf.Write(payload)

	return buf.Bytes(), nil
}

// Decode splits a frame into its header and payload.
func Decode(blob []byte) (Header, []byte, error) {
	h, n, err := parse(blob)
	if err != nil {
		return Header{}, nil, err
	}
	return h, blob[n:], nil
}

// ParseHeader validates the frame and returns its header.
func ParseHeader(blob []byte) (Header, error) {
	h, _, err := parse(blob)
	return h, err
}

func parse(blob []byte) (Header, int, error) {
	if len(blob) < fixedHeaderLen {
		return Header{}, 0, fmt.Errorf("%w: %d bytes is shorter than the header", common.ErrMalformedSnapshot, len(blob))
	}
	if !bytes.Equal(blob[:4], magic[:]) {
		return Header{}, 0, fmt.Errorf("%w: bad magic", common.ErrMalformedSnapshot)
	}

	h := Header{FormatVersion: blob[4], Flags: blob[5]}
	if h.FormatVersion != FormatVersion {
		return Header{}, 0, fmt.Errorf("%w: unsupported format version %d", common.ErrMalformedSnapshot, h.FormatVersion)
	}
	if h.Flags != 0 {
		return Header{}, 0, fmt.Errorf("%w: unknown flags %#x", common.ErrMalformedSnapshot, h.Flags)
	}

	idLen := int(binary.BigEndian.Uint16(blob[6:8]))
	if idLen == 0 || idLen > MaxVaultIDLen {
		return Header{}, 0, fmt.Errorf("%w: vault id length %d", common.ErrMalformedSnapshot, idLen)
	}
	end := fixedHeaderLen + idLen
	if len(blob) <= end {
		return Header{}, 0, fmt.Errorf("%w: truncated frame", common.ErrMalformedSnapshot)
	}
	h.VaultID = string(blob[fixedHeaderLen:end])

	return h, end, nil
}
