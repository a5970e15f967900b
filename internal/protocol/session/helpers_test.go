package session

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/danmuck/prism/internal/protocol"
	"github.com/rs/zerolog"
)

type sentDatagram struct {
	to net.Addr
	b  []byte
}

type recordingTx struct {
	mu     sync.Mutex
	writes []sentDatagram
	err    error
}

func (r *recordingTx) WriteTo(b []byte, addr net.Addr) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	r.writes = append(r.writes, sentDatagram{to: addr, b: cp})
	return len(b), nil
}

func (r *recordingTx) sent() []sentDatagram {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentDatagram, len(r.writes))
	copy(out, r.writes)
	return out
}

type countingObserver struct {
	mu       sync.Mutex
	sent     map[protocol.PacketType]int
	received map[protocol.PacketType]int
	dropped  map[string]int
	outcomes map[Outcome]int
	unknown  int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		sent:     map[protocol.PacketType]int{},
		received: map[protocol.PacketType]int{},
		dropped:  map[string]int{},
		outcomes: map[Outcome]int{},
	}
}

func (o *countingObserver) FrameSent(t protocol.PacketType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent[t]++
}

func (o *countingObserver) FrameReceived(t protocol.PacketType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.received[t]++
}

func (o *countingObserver) FrameDropped(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped[reason]++
}

func (o *countingObserver) RequestResolved(outcome Outcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[outcome]++
}

func (o *countingObserver) UnknownAck() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.unknown++
}

func (o *countingObserver) outcome(out Outcome) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcomes[out]
}

func (o *countingObserver) drops(reason string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped[reason]
}

func seqList(seqs ...uint32) func() uint32 {
	var mu sync.Mutex
	i := 0
	return func() uint32 {
		mu.Lock()
		defer mu.Unlock()
		s := seqs[i%len(seqs)]
		i++
		return s
	}
}

func quietLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

var (
	peerAddr  = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6969}
	errWireUp = errors.New("wire unplugged")
)
