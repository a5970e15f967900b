package session

import (
	"time"

	"github.com/danmuck/prism/internal/protocol"
)

// Outcome labels how a request left the pending table.
type Outcome string

const (
	OutcomeAcked          Outcome = "acked"
	OutcomeTimeout        Outcome = "timeout"
	OutcomeClosed         Outcome = "closed"
	OutcomeTransportError Outcome = "transport_error"
)

// Drop reasons reported to Observer.FrameDropped.
const (
	DropIntegrity   = "integrity"
	DropUnknownType = "unknown_type"
	DropMalformed   = "malformed"
	DropNack        = "nack"
	DropForeign     = "foreign_source"
)

// Observer receives protocol events, typically for metrics.
type Observer interface {
	FrameSent(t protocol.PacketType)
	FrameReceived(t protocol.PacketType)
	FrameDropped(reason string)
	RequestResolved(outcome Outcome, latency time.Duration)
	UnknownAck()
}

type nopObserver struct{}

func (nopObserver) FrameSent(protocol.PacketType)          {}
func (nopObserver) FrameReceived(protocol.PacketType)      {}
func (nopObserver) FrameDropped(string)                    {}
func (nopObserver) RequestResolved(Outcome, time.Duration) {}
func (nopObserver) UnknownAck()                            {}
