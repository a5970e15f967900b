package security

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const KeyLen = 32

var (
	ErrInvalidKey   = errors.New("security: invalid key")
	ErrKeyDestroyed = errors.New("security: key destroyed")
)

const deriveInfo = "prism/v1 pre-shared key"

// Key is a 256-bit pre-shared secret.
type Key struct {
	b         [KeyLen]byte
	destroyed bool
}

// NewKey copies raw, which must be exactly 32 bytes.
func NewKey(raw []byte) (*Key, error) {
	if len(raw) != KeyLen {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKey, KeyLen, len(raw))
	}
	k := &Key{}
	copy(k.b[:], raw)
	return k, nil
}

// ParseKey accepts a 64 character hex string, base64 of 32 bytes, or a raw
// 32 byte string.
func ParseKey(s string) (*Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if len(s) == 2*KeyLen {
		if raw, err := hex.DecodeString(s); err == nil {
			return NewKey(raw)
		}
	}
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil && len(raw) == KeyLen {
		return NewKey(raw)
	}
	if len(s) == KeyLen {
		return NewKey([]byte(s))
	}
	return nil, fmt.Errorf("%w: expected hex, base64 or %d raw bytes", ErrInvalidKey, KeyLen)
}

// DeriveKey stretches a passphrase into a key with HKDF-SHA256.
func DeriveKey(passphrase string, salt []byte) (*Key, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("%w: empty passphrase", ErrInvalidKey)
	}
	r := hkdf.New(sha256.New, []byte(passphrase), salt, []byte(deriveInfo))
	k := &Key{}
	if _, err := io.ReadFull(r, k.b[:]); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return k, nil
}

// Bytes returns a copy of the secret.
func (k *Key) Bytes() ([]byte, error) {
	if k == nil || k.destroyed {
		return nil, ErrKeyDestroyed
	}
	out := make([]byte, KeyLen)
	copy(out, k.b[:])
	return out, nil
}

// Destroy zeroes the secret. Ciphers already built from it keep working.
func (k *Key) Destroy() {
	if k == nil {
		return
	}
	for i := range k.b {
		k.b[i] = 0
	}
	k.destroyed = true
}

func (k *Key) String() string {
	return "security.Key(redacted)"
}
