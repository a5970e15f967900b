package session

import (
	"math"
	"math/rand/v2"
	"time"
)

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}

// readBackoff paces the receive loop after consecutive socket errors.
type readBackoff struct {
	cfg      BackoffConfig
	failures int
	rng      *rand.Rand
}

func newReadBackoff(cfg BackoffConfig) *readBackoff {
	return &readBackoff{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (b *readBackoff) next() time.Duration {
	b.failures++
	return NextBackoffDelay(b.cfg, b.failures, b.rng)
}

func (b *readBackoff) reset() {
	b.failures = 0
}
