// Package envelope translates between application payloads and wire frames.
//
// A DATA frame is header ‖ payload in plain mode and
// header ‖ nonce ‖ ciphertext ‖ tag in sealed mode. The header checksum is
// CRC32 over the header (checksum zeroed) and the plaintext payload; sealed
// frames are verified after decryption, with the header bound to the
// ciphertext as associated data.
package envelope

import (
	"errors"
	"fmt"

	"github.com/danmuck/prism/internal/protocol"
	"github.com/danmuck/prism/internal/protocol/frame"
	"github.com/danmuck/prism/internal/security"
)

// MinSealedLen is the shortest sealed DATA frame: header, nonce and tag
// around an empty payload. Anything shorter is a bare control frame.
const MinSealedLen = frame.HeaderLen + security.NonceLen + security.TagLen

var (
	ErrNoCipher       = errors.New("envelope: sealed mode requires an AEAD")
	ErrControlPayload = errors.New("envelope: control frames carry no payload")
	ErrChecksum       = fmt.Errorf("%w: checksum mismatch", protocol.ErrIntegrity)
	ErrShortSealed    = fmt.Errorf("%w: frame too short for sealed envelope", protocol.ErrIntegrity)
)

// Frame is one decoded frame. Checksum is populated by Decode for DATA.
type Frame struct {
	Type     protocol.PacketType
	Seq      uint32
	Checksum uint32
	Payload  []byte
}

// Codec is safe for concurrent use.
type Codec struct {
	mode   security.Mode
	aead   *security.AEAD
	limits frame.Limits
}

// New builds a codec for mode. aead is required for sealed mode and ignored
// for plain mode.
func New(mode security.Mode, aead *security.AEAD, limits frame.Limits) (*Codec, error) {
	mode = security.NormalizeMode(mode)
	switch mode {
	case security.ModePlain:
		aead = nil
	case security.ModeSealed:
		if aead == nil {
			return nil, ErrNoCipher
		}
	default:
		return nil, fmt.Errorf("%w: %q", security.ErrInvalidMode, mode)
	}
	if limits.MaxDatagramBytes <= 0 {
		limits = frame.DefaultLimits()
	}
	return &Codec{mode: mode, aead: aead, limits: limits}, nil
}

func NewPlain() *Codec {
	return &Codec{mode: security.ModePlain, limits: frame.DefaultLimits()}
}

func NewSealed(aead *security.AEAD) (*Codec, error) {
	return New(security.ModeSealed, aead, frame.DefaultLimits())
}

func (c *Codec) Mode() security.Mode {
	return c.mode
}

func (c *Codec) Limits() frame.Limits {
	return c.limits
}

// Encode produces wire bytes for f. Control frames are always the bare
// 5-byte form.
func (c *Codec) Encode(f Frame) ([]byte, error) {
	if f.Type.IsControl() {
		if len(f.Payload) > 0 {
			return nil, ErrControlPayload
		}
		if f.Type == protocol.TypeAck {
			return frame.EncodeAck(f.Seq), nil
		}
		out := frame.EncodeAck(f.Seq)
		out[0] = byte(f.Type)
		return out, nil
	}
	if f.Type != protocol.TypeData {
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnknownType, f.Type)
	}

	size := frame.HeaderLen + len(f.Payload)
	if c.aead != nil {
		size += c.aead.Overhead()
	}
	if size > c.limits.MaxDatagramBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", protocol.ErrPayloadTooLarge, size, c.limits.MaxDatagramBytes)
	}

	header := frame.EncodeHeader(frame.Header{Type: f.Type, Seq: f.Seq})
	frame.PutChecksum(header, frame.Checksum(header, f.Payload))

	out := make([]byte, 0, size)
	out = append(out, header...)
	if c.aead == nil {
		return append(out, f.Payload...), nil
	}

	nonce, ciphertext, tag, err := c.aead.Seal(f.Payload, header)
	if err != nil {
		return nil, err
	}
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return append(out, tag...), nil
}

// Decode parses and verifies b. Errors never leave b partially trusted.
func (c *Codec) Decode(b []byte) (Frame, error) {
	t, ok := frame.PeekType(b)
	if !ok {
		return Frame{}, protocol.ErrTruncated
	}
	if t.IsControl() {
		typ, seq, err := frame.DecodeControl(b)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Type: typ, Seq: seq}, nil
	}
	if t != protocol.TypeData {
		return Frame{}, fmt.Errorf("%w: %s", protocol.ErrUnknownType, t)
	}

	h, err := frame.DecodeHeader(b)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", protocol.ErrTruncated, err)
	}
	header := b[:frame.HeaderLen]
	body := b[frame.HeaderLen:]

	var plaintext []byte
	if c.aead != nil {
		if len(b) < MinSealedLen {
			return Frame{}, ErrShortSealed
		}
		nonce := body[:security.NonceLen]
		tag := body[len(body)-security.TagLen:]
		ciphertext := body[security.NonceLen : len(body)-security.TagLen]
		plaintext, err = c.aead.Open(nonce, ciphertext, tag, header)
		if err != nil {
			return Frame{}, err
		}
	} else {
		plaintext = make([]byte, len(body))
		copy(plaintext, body)
	}

	if frame.Checksum(header, plaintext) != h.Checksum {
		return Frame{}, ErrChecksum
	}
	return Frame{Type: h.Type, Seq: h.Seq, Checksum: h.Checksum, Payload: plaintext}, nil
}
