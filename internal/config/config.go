package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/prism/internal/protocol/envelope"
	"github.com/danmuck/prism/internal/protocol/frame"
	"github.com/danmuck/prism/internal/protocol/session"
	"github.com/danmuck/prism/internal/security"
)

var (
	ErrNoAddress   = errors.New("config: listen or remote address required")
	ErrKeyConflict = errors.New("config: key and key_passphrase are mutually exclusive")
)

// fileConfig is the on-disk shape. Durations are strings such as "5s".
type fileConfig struct {
	Listen           string `toml:"listen,omitempty"`
	Remote           string `toml:"remote,omitempty"`
	Mode             string `toml:"mode"`
	Key              string `toml:"key,omitempty"`
	KeyPassphrase    string `toml:"key_passphrase,omitempty"`
	KeySalt          string `toml:"key_salt,omitempty"`
	AckTimeout       string `toml:"ack_timeout"`
	MaxDatagramBytes int    `toml:"max_datagram_bytes"`
	MetricsAddr      string `toml:"metrics_addr,omitempty"`
}

// Config describes one prism endpoint.
type Config struct {
	Listen           string
	Remote           string
	Mode             security.Mode
	Key              string
	KeyPassphrase    string
	KeySalt          string
	AckTimeout       time.Duration
	MaxDatagramBytes int
	// MetricsAddr enables the admin HTTP server when set.
	MetricsAddr string
}

func Default() Config {
	return Config{
		Listen:           "",
		Remote:           "",
		Mode:             security.ModePlain,
		AckTimeout:       session.DefaultConfig().AckTimeout,
		MaxDatagramBytes: frame.DefaultLimits().MaxDatagramBytes,
	}
}

// Load reads path over Default. Keys absent from the file keep their
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load prism config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load prism config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("remote") {
		cfg.Remote = strings.TrimSpace(raw.Remote)
	}
	if meta.IsDefined("mode") {
		cfg.Mode = security.NormalizeMode(security.Mode(raw.Mode))
	}
	if meta.IsDefined("key") {
		cfg.Key = strings.TrimSpace(raw.Key)
	}
	if meta.IsDefined("key_passphrase") {
		cfg.KeyPassphrase = raw.KeyPassphrase
	}
	if meta.IsDefined("key_salt") {
		cfg.KeySalt = raw.KeySalt
	}
	if meta.IsDefined("ack_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.AckTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse ack_timeout: %w", err)
		}
		cfg.AckTimeout = d
	}
	if meta.IsDefined("max_datagram_bytes") {
		cfg.MaxDatagramBytes = raw.MaxDatagramBytes
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Listen == "" && c.Remote == "" {
		return ErrNoAddress
	}
	if c.Remote != "" {
		if _, _, err := net.SplitHostPort(c.Remote); err != nil {
			return fmt.Errorf("config: remote %q: %w", c.Remote, err)
		}
	}
	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			return fmt.Errorf("config: listen %q: %w", c.Listen, err)
		}
	}
	if c.AckTimeout <= 0 {
		return fmt.Errorf("config: ack_timeout must be positive, got %s", c.AckTimeout)
	}
	minBytes := frame.HeaderLen
	if security.NormalizeMode(c.Mode) == security.ModeSealed {
		minBytes = envelope.MinSealedLen
	}
	if c.MaxDatagramBytes < minBytes || c.MaxDatagramBytes > frame.DefaultLimits().MaxDatagramBytes {
		return fmt.Errorf("config: max_datagram_bytes %d outside [%d, %d]", c.MaxDatagramBytes, minBytes, frame.DefaultLimits().MaxDatagramBytes)
	}
	if c.Key != "" && c.KeyPassphrase != "" {
		return ErrKeyConflict
	}

	key, err := c.ResolveKey()
	if err != nil {
		return err
	}
	if key != nil {
		defer key.Destroy()
	}
	return security.ValidateMode(c.Mode, key)
}

// ResolveKey returns the configured key, or nil when none is set.
func (c Config) ResolveKey() (*security.Key, error) {
	switch {
	case c.Key != "":
		return security.ParseKey(c.Key)
	case c.KeyPassphrase != "":
		return security.DeriveKey(c.KeyPassphrase, []byte(c.KeySalt))
	default:
		return nil, nil
	}
}

// Codec builds the envelope codec for the configured mode. The key is
// destroyed once the cipher holds it.
func (c Config) Codec() (*envelope.Codec, error) {
	limits := frame.Limits{MaxDatagramBytes: c.MaxDatagramBytes}
	mode := security.NormalizeMode(c.Mode)
	if mode == security.ModePlain {
		return envelope.New(mode, nil, limits)
	}

	key, err := c.ResolveKey()
	if err != nil {
		return nil, err
	}
	if err := security.ValidateMode(mode, key); err != nil {
		return nil, err
	}
	defer key.Destroy()
	aead, err := security.NewAEAD(key)
	if err != nil {
		return nil, err
	}
	return envelope.New(mode, aead, limits)
}

// SessionOptions converts c into endpoint options. Callers add the handler,
// logger and observer.
func (c Config) SessionOptions() (session.Options, error) {
	codec, err := c.Codec()
	if err != nil {
		return session.Options{}, err
	}
	cfg := session.DefaultConfig()
	cfg.AckTimeout = c.AckTimeout
	return session.Options{
		Config: cfg,
		Codec:  codec,
	}, nil
}
