package vault

import (
	"errors"
	"testing"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/dmitrijs2005/vaultsync/internal/snapshot"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainCipher leaves data untouched so tests can craft bodies directly.
type plainCipher struct{}

func (plainCipher) Seal(p []byte) ([]byte, error) { return append([]byte(nil), p...), nil }
func (plainCipher) Open(c []byte) ([]byte, error) { return append([]byte(nil), c...), nil }

type failingCipher struct{ err error }

func (f failingCipher) Seal([]byte) ([]byte, error) { return nil, f.err }
func (f failingCipher) Open([]byte) ([]byte, error) { return nil, f.err }

func sampleStore() *RecordStore {
	s := NewRecordStore("v1")
	_, _ = s.Put("b", []byte("gone"), st(150, "dev-b"))
	_, _ = s.Delete("b", st(200, "dev-b"))
	_, _ = s.Put("a", []byte("pw1"), st(100, "dev-a"))
	return s
}

func TestMarshalBody_Golden(t *testing.T) {
	body, err := MarshalBody(sampleStore())
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))
	g.Assert(t, "canonical_body", body)
}

func newAESCodec(t *testing.T, password string) *Codec {
	t.Helper()
	c, err := cryptox.NewAESCipher(cryptox.DeriveMasterKey([]byte(password), []byte("salt")))
	require.NoError(t, err)
	return NewCodec(c)
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newAESCodec(t, "master")
	s := sampleStore()
	s.Version = 12

	blob, err := codec.Seal(s)
	require.NoError(t, err)

	h, err := snapshot.ParseHeader(blob)
	require.NoError(t, err)
	assert.Equal(t, "v1", h.VaultID)
	assert.NotContains(t, string(blob), "pw1")

	got, err := codec.Open(blob)
	require.NoError(t, err)
	assert.True(t, s.Equal(got))
	assert.Equal(t, int64(0), got.Version)
	assert.Equal(t, s.Fingerprint(), got.Fingerprint())
}

func TestCodec_WrongKey(t *testing.T) {
	blob, err := newAESCodec(t, "right").Seal(sampleStore())
	require.NoError(t, err)

	_, err = newAESCodec(t, "wrong").Open(blob)
	require.ErrorIs(t, err, common.ErrDecryption)
}

func TestCodec_CipherErrorsAreDecryptionErrors(t *testing.T) {
	blob, err := NewCodec(plainCipher{}).Seal(sampleStore())
	require.NoError(t, err)

	_, err = NewCodec(failingCipher{err: errors.New("hsm offline")}).Open(blob)
	require.ErrorIs(t, err, common.ErrDecryption)

	_, err = NewCodec(failingCipher{err: errors.New("no entropy")}).Seal(sampleStore())
	require.Error(t, err)
}

func TestCodec_Malformed(t *testing.T) {
	codec := NewCodec(plainCipher{})

	frame := func(vaultID, body string) []byte {
		b, err := snapshot.Encode(vaultID, []byte(body))
		require.NoError(t, err)
		return b
	}

	tests := []struct {
		name string
		blob []byte
	}{
		{"not a frame", []byte("garbage")},
		{"not json", frame("v1", "{{")},
		{"unknown body format", frame("v1", `{"format":2,"vault_id":"v1","records":[]}`)},
		{"record without id", frame("v1", `{"format":1,"vault_id":"v1","records":[{"updated_at":1}]}`)},
		{"duplicate id", frame("v1", `{"format":1,"vault_id":"v1","records":[{"id":"a"},{"id":"a"}]}`)},
		{"vault mismatch", frame("v1", `{"format":1,"vault_id":"other","records":[]}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Open(tt.blob)
			require.ErrorIs(t, err, common.ErrMalformedSnapshot)
		})
	}
}
