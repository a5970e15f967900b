package security

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects plain (checksum only) or sealed (AEAD) DATA frames. It is
// fixed per deployment, never negotiated.
type Mode string

const (
	ModePlain  Mode = "plain"
	ModeSealed Mode = "sealed"
)

var (
	ErrInvalidMode = errors.New("security: invalid mode")
	ErrKeyRequired = errors.New("security: key required for sealed mode")
)

func NormalizeMode(mode Mode) Mode {
	if strings.TrimSpace(string(mode)) == "" {
		return ModePlain
	}
	return Mode(strings.ToLower(strings.TrimSpace(string(mode))))
}

// ValidateMode checks mode against the key material that will back it.
func ValidateMode(mode Mode, key *Key) error {
	switch NormalizeMode(mode) {
	case ModePlain:
		return nil
	case ModeSealed:
		if key == nil {
			return ErrKeyRequired
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}
