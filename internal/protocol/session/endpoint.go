package session

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// Endpoint binds an Engine and a Dispatcher to one datagram socket and runs
// the receive loop. The loop blocks in ReadFrom; it never polls.
type Endpoint struct {
	pconn      net.PacketConn
	remote     net.Addr
	anyRemote  bool
	cfg        Config
	engine     *Engine
	dispatcher *Dispatcher
	log        zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewEndpoint takes ownership of pconn and starts the receive loop. remote
// may be nil for endpoints that only answer.
func NewEndpoint(pconn net.PacketConn, remote net.Addr, opts Options) *Endpoint {
	engine := NewEngine(pconn, opts)
	ctx, cancel := context.WithCancel(context.Background())
	ep := &Endpoint{
		pconn:      pconn,
		remote:     remote,
		anyRemote:  opts.AnyRemote || remote == nil,
		cfg:        engine.cfg,
		engine:     engine,
		dispatcher: NewDispatcher(engine, opts.Handler),
		log:        engine.log.With().Str("component", "endpoint").Str("local", addrString(pconn.LocalAddr())).Logger(),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go ep.readLoop()
	return ep
}

// Listen binds addr and answers any peer.
func Listen(ctx context.Context, addr string, opts Options) (*Endpoint, error) {
	var lc net.ListenConfig
	pconn, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, &TransportError{Op: "listen", Addr: addr, Err: err}
	}
	return NewEndpoint(pconn, nil, opts), nil
}

// Dial binds an ephemeral port and sends to remote by default.
func Dial(ctx context.Context, remote string, opts Options) (*Endpoint, error) {
	raddr, err := net.ResolveUDPAddr("udp", remote)
	if err != nil {
		return nil, &TransportError{Op: "resolve", Addr: remote, Err: err}
	}
	network := "udp"
	if raddr.IP.To4() != nil {
		network = "udp4"
	}
	var lc net.ListenConfig
	pconn, err := lc.ListenPacket(ctx, network, ":0")
	if err != nil {
		return nil, &TransportError{Op: "listen", Addr: ":0", Err: err}
	}
	return NewEndpoint(pconn, raddr, opts), nil
}

func (ep *Endpoint) Engine() *Engine        { return ep.engine }
func (ep *Endpoint) LocalAddr() net.Addr    { return ep.pconn.LocalAddr() }
func (ep *Endpoint) RemoteAddr() net.Addr   { return ep.remote }
func (ep *Endpoint) Pending() []PendingInfo { return ep.engine.Pending() }

// Send delivers payload to the default remote and waits for its outcome.
func (ep *Endpoint) Send(ctx context.Context, payload []byte) error {
	if ep.remote == nil {
		return ErrNoRemote
	}
	return ep.engine.Send(ctx, ep.remote, payload)
}

// SendTo delivers payload to addr and waits for its outcome.
func (ep *Endpoint) SendTo(ctx context.Context, addr net.Addr, payload []byte) error {
	return ep.engine.Send(ctx, addr, payload)
}

// Dispatch sends to the default remote without waiting.
func (ep *Endpoint) Dispatch(payload []byte) (*Request, error) {
	if ep.remote == nil {
		return nil, ErrNoRemote
	}
	return ep.engine.Dispatch(ep.remote, payload)
}

// Close resolves outstanding requests with ErrClosed, closes the socket and
// waits for the receive loop to exit.
func (ep *Endpoint) Close() error {
	ep.closeOnce.Do(func() {
		ep.engine.Close()
		ep.cancel()
		ep.closeErr = ep.pconn.Close()
		<-ep.done
	})
	return ep.closeErr
}

func (ep *Endpoint) readLoop() {
	defer close(ep.done)
	buf := make([]byte, ep.cfg.ReadBufferBytes)
	backoff := newReadBackoff(ep.cfg.ReadBackoff)

	for {
		n, from, err := ep.pconn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ep.ctx.Err() != nil {
				return
			}
			delay := backoff.next()
			ep.log.Warn().Err(err).Dur("retry_in", delay).Msg("read failed")
			if !sleepCtx(ep.ctx, delay) {
				return
			}
			continue
		}
		backoff.reset()

		if !ep.anyRemote && !sameAddr(from, ep.remote) {
			ep.engine.obs.FrameDropped(DropForeign)
			ep.log.Debug().Str("from", addrString(from)).Msg("datagram from foreign source dropped")
			continue
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		ep.dispatcher.HandleDatagram(ep.ctx, from, datagram)
	}
}
