package session

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTimeout         = errors.New("session: ack timeout")
	ErrClosed          = errors.New("session: closed")
	ErrUnknownSequence = errors.New("session: ack for unknown sequence")
	ErrSeqExhausted    = errors.New("session: no free sequence number")
	ErrNoRemote        = errors.New("session: no remote address")

	errSeqInUse = errors.New("session: sequence in use")
)

// TimeoutError is the failure outcome of a request whose ACK never arrived.
// It satisfies net.Error and matches ErrTimeout.
type TimeoutError struct {
	Seq   uint32
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("session: ack not received for seq %d after %s", e.Seq, e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
func (e *TimeoutError) Timeout() bool        { return true }
func (e *TimeoutError) Temporary() bool      { return true }

// TransportError is a send or receive primitive failure.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("session: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
