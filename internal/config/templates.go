package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/prism/internal/security"
	"github.com/pelletier/go-toml/v2"
)

// Template renders a starter config. kind is "server" or "client".
func Template(kind string) ([]byte, error) {
	cfg := Default()
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server":
		cfg.Listen = "0.0.0.0:6969"
		cfg.MetricsAddr = "127.0.0.1:9469"
	case "client":
		cfg.Remote = "127.0.0.1:6969"
	default:
		return nil, fmt.Errorf("unknown config kind: %s", kind)
	}
	return Render(cfg)
}

// Render encodes c in the file format Load reads. Secrets are written as
// given.
func Render(c Config) ([]byte, error) {
	raw := fileConfig{
		Listen:           c.Listen,
		Remote:           c.Remote,
		Mode:             string(security.NormalizeMode(c.Mode)),
		Key:              c.Key,
		KeyPassphrase:    c.KeyPassphrase,
		KeySalt:          c.KeySalt,
		AckTimeout:       c.AckTimeout.String(),
		MaxDatagramBytes: c.MaxDatagramBytes,
		MetricsAddr:      c.MetricsAddr,
	}
	out, err := toml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("render prism config: %w", err)
	}
	return out, nil
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, template, 0o600)
}
