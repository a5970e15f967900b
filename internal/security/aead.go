package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/danmuck/prism/internal/protocol"
)

const (
	NonceLen = 12
	TagLen   = 16
)

// AEAD seals payloads with AES-256-GCM.
type AEAD struct {
	gcm cipher.AEAD
}

func NewAEAD(key *Key) (*AEAD, error) {
	raw, err := key.Bytes()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceLen)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &AEAD{gcm: gcm}, nil
}

// Seal encrypts plaintext under a fresh random nonce, authenticating aad.
func (a *AEAD) Seal(plaintext, aad []byte) (nonce, ciphertext, tag []byte, err error) {
	nonce = make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	sealed := a.gcm.Seal(nil, nonce, plaintext, aad)
	split := len(sealed) - TagLen
	return nonce, sealed[:split], sealed[split:], nil
}

// Open verifies and decrypts. Every failure wraps protocol.ErrIntegrity.
func (a *AEAD) Open(nonce, ciphertext, tag, aad []byte) ([]byte, error) {
	if len(nonce) != NonceLen {
		return nil, fmt.Errorf("%w: nonce length %d", protocol.ErrIntegrity, len(nonce))
	}
	if len(tag) != TagLen {
		return nil, fmt.Errorf("%w: tag length %d", protocol.ErrIntegrity, len(tag))
	}
	sealed := make([]byte, 0, len(ciphertext)+TagLen)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := a.gcm.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrIntegrity, err)
	}
	return plaintext, nil
}

// Overhead is the number of bytes a sealed payload adds.
func (a *AEAD) Overhead() int {
	return NonceLen + TagLen
}
