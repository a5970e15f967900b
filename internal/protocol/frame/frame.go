package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/danmuck/prism/internal/protocol"
)

const (
	HeaderLen = 9
	AckLen    = 5

	checksumOffset = 5
)

var (
	ErrShortHeader   = errors.New("frame: short fixed header")
	ErrControlLength = errors.New("frame: control frame must be 5 bytes")
	ErrNotControl    = errors.New("frame: not a control frame")
)

// Header is the fixed wire header.
type Header struct {
	Type     protocol.PacketType
	Seq      uint32
	Checksum uint32
}

// Limits constrains encoded datagram size.
type Limits struct {
	MaxDatagramBytes int
}

// DefaultLimits allows the largest UDP payload over IPv4.
func DefaultLimits() Limits {
	return Limits{
		MaxDatagramBytes: 65507,
	}
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	buf[0] = byte(h.Type)
	binary.BigEndian.PutUint32(buf[1:5], h.Seq)
	binary.BigEndian.PutUint32(buf[5:9], h.Checksum)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(b))
	}
	return Header{
		Type:     protocol.PacketType(b[0]),
		Seq:      binary.BigEndian.Uint32(b[1:5]),
		Checksum: binary.BigEndian.Uint32(b[5:9]),
	}, nil
}

// Checksum is CRC32 (IEEE) over header with its checksum field zeroed,
// followed by the plaintext payload.
func Checksum(header []byte, plaintext []byte) uint32 {
	var zeroed [HeaderLen]byte
	copy(zeroed[:], header)
	binary.BigEndian.PutUint32(zeroed[checksumOffset:], 0)

	h := crc32.NewIEEE()
	h.Write(zeroed[:])
	h.Write(plaintext)
	return h.Sum32()
}

// PutChecksum writes sum into an encoded header.
func PutChecksum(header []byte, sum uint32) {
	binary.BigEndian.PutUint32(header[checksumOffset:checksumOffset+4], sum)
}

// EncodeAck builds the 5-byte ACK echoing seq.
func EncodeAck(seq uint32) []byte {
	return encodeControl(protocol.TypeAck, seq)
}

func encodeControl(t protocol.PacketType, seq uint32) []byte {
	buf := make([]byte, AckLen)
	buf[0] = byte(t)
	binary.BigEndian.PutUint32(buf[1:5], seq)
	return buf
}

// DecodeControl parses an ACK or NACK frame.
func DecodeControl(b []byte) (protocol.PacketType, uint32, error) {
	if len(b) == 0 {
		return 0, 0, protocol.ErrTruncated
	}
	t := protocol.PacketType(b[0])
	if !t.IsControl() {
		return 0, 0, fmt.Errorf("%w: %s", ErrNotControl, t)
	}
	if len(b) != AckLen {
		return 0, 0, fmt.Errorf("%w: got %d", ErrControlLength, len(b))
	}
	return t, binary.BigEndian.Uint32(b[1:5]), nil
}

// PeekType returns the declared packet type without decoding the frame.
func PeekType(b []byte) (protocol.PacketType, bool) {
	if len(b) == 0 {
		return 0, false
	}
	return protocol.PacketType(b[0]), true
}
