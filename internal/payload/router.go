package payload

import (
	"context"
	"fmt"
	"net"

	"github.com/danmuck/prism/internal/protocol/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Envelope is the transport context a decoded packet arrived with.
type Envelope struct {
	From net.Addr
	Seq  uint32
}

// Router decodes DataPackets and calls the callback for their type. Nil
// callbacks are skipped. The frame was already acknowledged when Router
// runs, so its errors are only logged by the dispatcher.
type Router struct {
	OnLogin        func(ctx context.Context, env Envelope, m Login) error
	OnUpdate       func(ctx context.Context, env Envelope, m Update) error
	OnAuthResponse func(ctx context.Context, env Envelope, m AuthResponse) error
	// OnAuthFailed runs instead of OnAuthResponse for a rejected login.
	OnAuthFailed func(ctx context.Context, env Envelope, m AuthResponse) error

	Logger *zerolog.Logger
}

var _ session.Handler = (*Router)(nil)

func (r *Router) logger() *zerolog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return &log.Logger
}

func (r *Router) HandleMessage(ctx context.Context, msg session.Message) error {
	pkt, err := Decode(msg.Payload)
	if err != nil {
		return fmt.Errorf("decode data packet seq=%d: %w", msg.Seq, err)
	}
	env := Envelope{From: msg.From, Seq: msg.Seq}
	r.logger().Debug().
		Uint32("seq", msg.Seq).
		Str("type", TypeName(pkt.Type)).
		Msg("data packet")

	switch {
	case pkt.Login != nil:
		if r.OnLogin != nil {
			return r.OnLogin(ctx, env, *pkt.Login)
		}
	case pkt.Update != nil:
		if r.OnUpdate != nil {
			return r.OnUpdate(ctx, env, *pkt.Update)
		}
	case pkt.AuthResponse != nil:
		ar := *pkt.AuthResponse
		if ar.Failed() {
			r.logger().Warn().Uint32("seq", msg.Seq).Str("message", ar.Message).Msg("authentication failed")
			if r.OnAuthFailed != nil {
				return r.OnAuthFailed(ctx, env, ar)
			}
			return nil
		}
		if r.OnAuthResponse != nil {
			return r.OnAuthResponse(ctx, env, ar)
		}
	}
	return nil
}
