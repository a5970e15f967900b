package session

import (
	"context"
	"errors"
	"net"

	"github.com/danmuck/prism/internal/protocol"
	"github.com/danmuck/prism/internal/protocol/frame"
	"github.com/rs/zerolog"
)

// Message is one verified DATA frame handed to the application.
type Message struct {
	From    net.Addr
	Seq     uint32
	Payload []byte
}

// Handler consumes verified application payloads. It runs on the receive
// loop, so it should return promptly. Its error never suppresses the ACK.
type Handler interface {
	HandleMessage(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) error

func (f HandlerFunc) HandleMessage(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Dispatcher classifies inbound datagrams. DATA frames are verified,
// acknowledged and handed to the Handler; ACK frames resolve requests in
// the Engine. Everything else is logged and dropped.
type Dispatcher struct {
	engine  *Engine
	handler Handler
	log     zerolog.Logger
}

func NewDispatcher(engine *Engine, handler Handler) *Dispatcher {
	return &Dispatcher{
		engine:  engine,
		handler: handler,
		log:     engine.log.With().Str("component", "dispatcher").Logger(),
	}
}

// HandleDatagram processes one datagram from from. It never returns an
// error: per-datagram failures stay here.
func (d *Dispatcher) HandleDatagram(ctx context.Context, from net.Addr, b []byte) {
	t, ok := frame.PeekType(b)
	if !ok {
		d.engine.obs.FrameDropped(DropMalformed)
		d.log.Debug().Str("from", addrString(from)).Msg("empty datagram dropped")
		return
	}
	d.engine.obs.FrameReceived(t)

	switch t {
	case protocol.TypeAck:
		d.handleAck(from, b)
	case protocol.TypeData:
		d.handleData(ctx, from, b)
	case protocol.TypeNack:
		d.engine.obs.FrameDropped(DropNack)
		d.log.Debug().Str("from", addrString(from)).Msg("nack ignored")
	default:
		d.engine.obs.FrameDropped(DropUnknownType)
		d.log.Warn().Str("from", addrString(from)).Stringer("type", t).Msg("unknown packet type dropped")
	}
}

func (d *Dispatcher) handleAck(from net.Addr, b []byte) {
	_, seq, err := frame.DecodeControl(b)
	if err != nil {
		d.engine.obs.FrameDropped(DropMalformed)
		d.log.Debug().Err(err).Str("from", addrString(from)).Msg("malformed ack dropped")
		return
	}
	d.engine.Acknowledge(seq)
}

func (d *Dispatcher) handleData(ctx context.Context, from net.Addr, b []byte) {
	f, err := d.engine.codec.Decode(b)
	if err != nil {
		reason := DropMalformed
		if errors.Is(err, protocol.ErrIntegrity) {
			reason = DropIntegrity
		}
		d.engine.obs.FrameDropped(reason)
		d.log.Debug().Err(err).Str("from", addrString(from)).Int("bytes", len(b)).Msg("data frame dropped")
		return
	}

	if err := d.engine.sendAck(from, f.Seq); err != nil {
		d.log.Warn().Err(err).Uint32("seq", f.Seq).Msg("ack write failed")
	}

	if d.handler == nil {
		return
	}
	msg := Message{From: from, Seq: f.Seq, Payload: f.Payload}
	if err := d.handler.HandleMessage(ctx, msg); err != nil {
		d.log.Warn().Err(err).Uint32("seq", f.Seq).Str("from", addrString(from)).Msg("handler failed")
	}
}
