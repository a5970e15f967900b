package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"

	"github.com/danmuck/prism/internal/protocol"
	"github.com/danmuck/prism/internal/protocol/envelope"
	"github.com/danmuck/prism/internal/protocol/frame"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Transmitter is the outbound half of an unreliable datagram transport.
// net.PacketConn satisfies it.
type Transmitter interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
}

// Engine turns one datagram exchange into a request with an explicit
// outcome. It exclusively owns the pending table.
type Engine struct {
	cfg     Config
	codec   *envelope.Codec
	tx      Transmitter
	log     zerolog.Logger
	obs     Observer
	nextSeq func() uint32
	table   *pendingTable
}

func NewEngine(tx Transmitter, opts Options) *Engine {
	e := &Engine{
		cfg:     opts.Config.withDefaults(),
		codec:   opts.Codec,
		tx:      tx,
		obs:     opts.Observer,
		nextSeq: opts.SeqSource,
		table:   newPendingTable(),
	}
	if e.codec == nil {
		e.codec = envelope.NewPlain()
	}
	if e.obs == nil {
		e.obs = nopObserver{}
	}
	if e.nextSeq == nil {
		e.nextSeq = rand.Uint32
	}
	base := log.Logger
	if opts.Logger != nil {
		base = *opts.Logger
	}
	e.log = base.With().Str("component", "engine").Logger()
	return e
}

func (e *Engine) Config() Config         { return e.cfg }
func (e *Engine) Codec() *envelope.Codec { return e.codec }

// Dispatch sends payload to to as a DATA frame and returns its pending
// request. A write failure resolves the request immediately and is
// returned as a *TransportError.
func (e *Engine) Dispatch(to net.Addr, payload []byte) (*Request, error) {
	if to == nil {
		return nil, ErrNoRemote
	}
	req := newRequest(to)

	var wire []byte
	inserted := false
	for attempt := 0; attempt < e.cfg.SeqAttempts; attempt++ {
		seq := e.nextSeq()
		var err error
		wire, err = e.codec.Encode(envelope.Frame{Type: protocol.TypeData, Seq: seq, Payload: payload})
		if err != nil {
			return nil, err
		}
		err = e.table.insert(seq, req, func() {
			req.sentAt = time.Now()
			req.deadline = req.sentAt.Add(e.cfg.AckTimeout)
			req.timer = time.AfterFunc(e.cfg.AckTimeout, func() { e.expireExact(req) })
		})
		if err == nil {
			inserted = true
			break
		}
		if !errors.Is(err, errSeqInUse) {
			return nil, err
		}
		e.log.Debug().Uint32("seq", seq).Msg("sequence collision, retrying")
	}
	if !inserted {
		return nil, ErrSeqExhausted
	}

	if _, err := e.tx.WriteTo(wire, to); err != nil {
		terr := &TransportError{Op: "write", Addr: to.String(), Err: err}
		if e.table.takeExact(req) {
			req.finish(terr)
			e.obs.RequestResolved(OutcomeTransportError, time.Since(req.sentAt))
		}
		e.log.Warn().Err(err).Uint32("seq", req.seq).Str("to", to.String()).Msg("request write failed")
		return nil, terr
	}
	e.obs.FrameSent(protocol.TypeData)
	e.log.Debug().Uint32("seq", req.seq).Str("to", to.String()).Int("bytes", len(wire)).Msg("request dispatched")
	return req, nil
}

// Send dispatches payload and waits for its outcome.
func (e *Engine) Send(ctx context.Context, to net.Addr, payload []byte) error {
	req, err := e.Dispatch(to, payload)
	if err != nil {
		return err
	}
	return req.Wait(ctx)
}

// Acknowledge resolves the request for seq successfully. An unknown or
// already resolved seq is logged and ignored.
func (e *Engine) Acknowledge(seq uint32) bool {
	req, ok := e.table.take(seq)
	if !ok {
		e.obs.UnknownAck()
		e.log.Warn().Err(ErrUnknownSequence).Uint32("seq", seq).Msg("ack ignored")
		return false
	}
	req.finish(nil)
	latency := time.Since(req.sentAt)
	e.obs.RequestResolved(OutcomeAcked, latency)
	e.log.Debug().Uint32("seq", seq).Dur("latency", latency).Msg("ack confirmed")
	return true
}

// Expire resolves the request for seq as timed out. It is a no-op when the
// request was already resolved.
func (e *Engine) Expire(seq uint32) bool {
	req, ok := e.table.take(seq)
	if !ok {
		return false
	}
	e.timeout(req)
	return true
}

// expireExact is the timer path. It never touches a newer request that
// reused the same seq.
func (e *Engine) expireExact(req *Request) {
	if !e.table.takeExact(req) {
		return
	}
	e.timeout(req)
}

func (e *Engine) timeout(req *Request) {
	req.finish(&TimeoutError{Seq: req.seq, After: e.cfg.AckTimeout})
	e.obs.RequestResolved(OutcomeTimeout, time.Since(req.sentAt))
	e.log.Info().Uint32("seq", req.seq).Str("to", addrString(req.to)).Msg("ack not received")
}

// Close resolves every pending request with ErrClosed. Later dispatches fail
// with ErrClosed. Close is idempotent.
func (e *Engine) Close() {
	orphans := e.table.drain()
	for _, req := range orphans {
		req.finish(ErrClosed)
		e.obs.RequestResolved(OutcomeClosed, time.Since(req.sentAt))
	}
	if len(orphans) > 0 {
		e.log.Info().Int("orphaned", len(orphans)).Msg("pending requests closed")
	}
}

// Pending returns outstanding requests sorted by seq.
func (e *Engine) Pending() []PendingInfo {
	return e.table.list()
}

// PendingCount is the number of outstanding requests.
func (e *Engine) PendingCount() int {
	return e.table.len()
}

func (e *Engine) sendAck(to net.Addr, seq uint32) error {
	if _, err := e.tx.WriteTo(frame.EncodeAck(seq), to); err != nil {
		return &TransportError{Op: "write ack", Addr: addrString(to), Err: err}
	}
	e.obs.FrameSent(protocol.TypeAck)
	return nil
}
