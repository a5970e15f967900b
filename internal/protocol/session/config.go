package session

import (
	"time"

	"github.com/danmuck/prism/internal/protocol/envelope"
	"github.com/rs/zerolog"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines reliability defaults.
type Config struct {
	AckTimeout      time.Duration
	SeqAttempts     int
	ReadBufferBytes int
	ReadBackoff     BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		AckTimeout:      5 * time.Second,
		SeqAttempts:     8,
		ReadBufferBytes: 65535,
		ReadBackoff: BackoffConfig{
			InitialDelay: 10 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     time.Second,
			Jitter:       true,
		},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.AckTimeout <= 0 {
		c.AckTimeout = def.AckTimeout
	}
	if c.SeqAttempts <= 0 {
		c.SeqAttempts = def.SeqAttempts
	}
	if c.ReadBufferBytes <= 0 {
		c.ReadBufferBytes = def.ReadBufferBytes
	}
	if c.ReadBackoff.InitialDelay <= 0 {
		c.ReadBackoff = def.ReadBackoff
	}
	return c
}

// Options wires an engine, dispatcher or endpoint. Zero values fall back to
// plain mode, the global logger, no metrics and random sequence numbers.
type Options struct {
	Config    Config
	Codec     *envelope.Codec
	Handler   Handler
	Logger    *zerolog.Logger
	Observer  Observer
	SeqSource func() uint32
	// AnyRemote lets a dialed endpoint accept datagrams from addresses other
	// than its remote.
	AnyRemote bool
}
