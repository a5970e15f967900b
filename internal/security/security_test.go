package security

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/danmuck/prism/internal/protocol"
	"github.com/stretchr/testify/require"
)

const sharedKey = "secret-auth-key-123============="

func TestParseKeyForms(t *testing.T) {
	raw := bytes.Repeat([]byte{0xAB}, KeyLen)

	fromHex, err := ParseKey(hex.EncodeToString(raw))
	require.NoError(t, err)
	got, err := fromHex.Bytes()
	require.NoError(t, err)
	require.Equal(t, raw, got)

	fromB64, err := ParseKey(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	got, err = fromB64.Bytes()
	require.NoError(t, err)
	require.Equal(t, raw, got)

	fromRaw, err := ParseKey(sharedKey)
	require.NoError(t, err)
	got, err = fromRaw.Bytes()
	require.NoError(t, err)
	require.Equal(t, []byte(sharedKey), got)
}

func TestParseKeyRejectsWrongLength(t *testing.T) {
	_, err := ParseKey("too-short")
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = ParseKey("")
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = NewKey(make([]byte, 16))
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	a, err := DeriveKey("correct horse", []byte("salt"))
	require.NoError(t, err)
	b, err := DeriveKey("correct horse", []byte("salt"))
	require.NoError(t, err)
	c, err := DeriveKey("correct horse", []byte("other"))
	require.NoError(t, err)

	ab, _ := a.Bytes()
	bb, _ := b.Bytes()
	cb, _ := c.Bytes()
	require.Equal(t, ab, bb)
	require.NotEqual(t, ab, cb)

	_, err = DeriveKey("", nil)
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestKeyDestroy(t *testing.T) {
	k, err := ParseKey(sharedKey)
	require.NoError(t, err)
	k.Destroy()
	_, err = k.Bytes()
	require.ErrorIs(t, err, ErrKeyDestroyed)
	_, err = NewAEAD(k)
	require.ErrorIs(t, err, ErrKeyDestroyed)
	require.NotContains(t, k.String(), "secret")
}

func TestAEADRoundTrip(t *testing.T) {
	k, err := ParseKey(sharedKey)
	require.NoError(t, err)
	a, err := NewAEAD(k)
	require.NoError(t, err)

	aad := []byte{1, 0, 0, 0, 9}
	nonce, ct, tag, err := a.Seal([]byte("hello"), aad)
	require.NoError(t, err)
	require.Len(t, nonce, NonceLen)
	require.Len(t, tag, TagLen)
	require.Len(t, ct, len("hello"))

	pt, err := a.Open(nonce, ct, tag, aad)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), pt)
}

func TestAEADNoncesAreFresh(t *testing.T) {
	k, _ := ParseKey(sharedKey)
	a, err := NewAEAD(k)
	require.NoError(t, err)
	n1, _, _, err := a.Seal([]byte("x"), nil)
	require.NoError(t, err)
	n2, _, _, err := a.Seal([]byte("x"), nil)
	require.NoError(t, err)
	require.NotEqual(t, n1, n2)
}

func TestAEADOpenFailuresAreIntegrityErrors(t *testing.T) {
	k, _ := ParseKey(sharedKey)
	a, _ := NewAEAD(k)
	nonce, ct, tag, err := a.Seal([]byte("payload"), []byte("hdr"))
	require.NoError(t, err)

	cases := map[string]func() error{
		"short nonce": func() error { _, err := a.Open(nonce[:8], ct, tag, []byte("hdr")); return err },
		"short tag":   func() error { _, err := a.Open(nonce, ct, tag[:10], []byte("hdr")); return err },
		"wrong aad":   func() error { _, err := a.Open(nonce, ct, tag, []byte("HDR")); return err },
		"flipped tag": func() error {
			bad := append([]byte{}, tag...)
			bad[0] ^= 0x01
			_, err := a.Open(nonce, ct, bad, []byte("hdr"))
			return err
		},
	}
	for name, open := range cases {
		if err := open(); !errors.Is(err, protocol.ErrIntegrity) {
			t.Fatalf("%s: expected ErrIntegrity, got %v", name, err)
		}
	}
}

func TestAEADWrongKeyFails(t *testing.T) {
	k1, _ := ParseKey(sharedKey)
	k2, _ := DeriveKey("another", nil)
	a1, _ := NewAEAD(k1)
	a2, _ := NewAEAD(k2)

	nonce, ct, tag, err := a1.Seal([]byte("hello"), nil)
	require.NoError(t, err)
	pt, err := a2.Open(nonce, ct, tag, nil)
	require.ErrorIs(t, err, protocol.ErrIntegrity)
	require.Nil(t, pt)
}

func TestValidateMode(t *testing.T) {
	k, _ := ParseKey(sharedKey)
	require.NoError(t, ValidateMode("", nil))
	require.NoError(t, ValidateMode(" Plain ", nil))
	require.NoError(t, ValidateMode(ModeSealed, k))
	require.ErrorIs(t, ValidateMode(ModeSealed, nil), ErrKeyRequired)
	require.ErrorIs(t, ValidateMode("tls", k), ErrInvalidMode)
	require.Equal(t, ModePlain, NormalizeMode(""))
}
