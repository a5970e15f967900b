package protocol

import "strconv"

// PacketType is the first byte of every frame.
type PacketType uint8

const (
	TypeData PacketType = 1
	TypeAck  PacketType = 2
	// TypeNack is reserved. Nothing produces it and the dispatcher drops it.
	TypeNack PacketType = 3
)

func (t PacketType) String() string {
	switch t {
	case TypeData:
		return "data"
	case TypeAck:
		return "ack"
	case TypeNack:
		return "nack"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// Valid reports whether t is a known packet type.
func (t PacketType) Valid() bool {
	return t == TypeData || t == TypeAck || t == TypeNack
}

// IsControl reports whether t is a bare, never encrypted, control frame.
func (t PacketType) IsControl() bool {
	return t == TypeAck || t == TypeNack
}
