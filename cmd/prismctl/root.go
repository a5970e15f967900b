package main

import (
	"fmt"
	"time"

	"github.com/danmuck/prism/internal/config"
	"github.com/danmuck/prism/internal/security"
	"github.com/spf13/cobra"
)

// endpointFlags are shared by serve and send. Set flags override the
// config file.
type endpointFlags struct {
	configPath    string
	mode          string
	key           string
	keyPassphrase string
	ackTimeout    time.Duration
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "prismctl",
		Short: "Reliable request/acknowledgment over UDP",
		Long: `prismctl runs and exercises prism peers: datagrams carrying a sequence
number and checksum, optionally sealed with AES-256-GCM, each confirmed by
a 5-byte ACK or reported as timed out.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newSendCmd(), newConfigCmd())
	return root
}

func (f *endpointFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "TOML config file")
	cmd.Flags().StringVar(&f.mode, "mode", "", "frame mode: plain or sealed")
	cmd.Flags().StringVar(&f.key, "key", "", "pre-shared key: 64 hex chars, base64, or 32 raw bytes")
	cmd.Flags().StringVar(&f.keyPassphrase, "key-passphrase", "", "derive the pre-shared key from a passphrase")
	cmd.Flags().DurationVar(&f.ackTimeout, "ack-timeout", 0, "how long to wait for an ACK")
}

// resolve loads the config file, if any, and applies changed flags.
func (f *endpointFlags) resolve(cmd *cobra.Command, apply func(*config.Config)) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Mode = security.NormalizeMode(security.Mode(f.mode))
	}
	if flags.Changed("key") {
		cfg.Key = f.key
		cfg.KeyPassphrase = ""
	}
	if flags.Changed("key-passphrase") {
		cfg.KeyPassphrase = f.keyPassphrase
		cfg.Key = ""
	}
	if flags.Changed("ack-timeout") {
		cfg.AckTimeout = f.ackTimeout
	}
	if apply != nil {
		apply(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
