package session

import (
	"context"
	"net"
	"time"
)

// Request is the future for one dispatched DATA frame.
type Request struct {
	seq      uint32
	to       net.Addr
	sentAt   time.Time
	deadline time.Time
	timer    *time.Timer

	done chan struct{}
	err  error
}

func newRequest(to net.Addr) *Request {
	return &Request{
		to:   to,
		done: make(chan struct{}),
	}
}

func (r *Request) Seq() uint32         { return r.seq }
func (r *Request) Remote() net.Addr    { return r.to }
func (r *Request) Deadline() time.Time { return r.deadline }

// Done is closed once the request is resolved.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Err returns the outcome after Done is closed: nil when acknowledged. It
// returns nil while the request is still pending.
func (r *Request) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until the request resolves or ctx ends. Ending ctx stops the
// wait only; the request still resolves by ACK or timeout.
func (r *Request) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish must be called exactly once, by whoever removed r from the table.
func (r *Request) finish(err error) {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.err = err
	close(r.done)
}
