package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/prism/internal/config"
	"github.com/danmuck/prism/internal/payload"
	"github.com/danmuck/prism/internal/protocol/session"
	"github.com/spf13/cobra"
)

type sendFlags struct {
	endpointFlags
	remote string
}

func (f *sendFlags) register(cmd *cobra.Command) {
	f.endpointFlags.register(cmd)
	cmd.Flags().StringVar(&f.remote, "remote", "127.0.0.1:6969", "peer address")
}

func (f *sendFlags) resolve(cmd *cobra.Command) (config.Config, error) {
	return f.endpointFlags.resolve(cmd, func(c *config.Config) {
		if cmd.Flags().Changed("remote") || c.Remote == "" {
			c.Remote = f.remote
		}
	})
}

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one data packet and report whether it was acknowledged",
	}
	cmd.AddCommand(newSendLoginCmd(), newSendUpdateCmd())
	return cmd
}

func newSendLoginCmd() *cobra.Command {
	var (
		sf        sendFlags
		service   string
		token     string
		awaitAuth time.Duration
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Send a login and optionally wait for the auth response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sf.resolve(cmd)
			if err != nil {
				return err
			}
			return runSend(cmd.Context(), cmd.OutOrStdout(), cfg, payload.NewLogin(service, token), awaitAuth)
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&service, "service", "", "service name")
	cmd.Flags().StringVar(&token, "token", "", "login token")
	cmd.Flags().DurationVar(&awaitAuth, "await-auth", 0, "wait this long for an auth response after the ACK")
	return cmd
}

func newSendUpdateCmd() *cobra.Command {
	var (
		sf     sendFlags
		update payload.Update
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Send a named value update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sf.resolve(cmd)
			if err != nil {
				return err
			}
			return runSend(cmd.Context(), cmd.OutOrStdout(), cfg, payload.NewUpdate(update), 0)
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&update.Name, "name", "", "value name")
	cmd.Flags().StringVar(&update.Value, "value", "", "value")
	cmd.Flags().StringVar(&update.Type, "type", "string", "value type")
	cmd.Flags().BoolVar(&update.PersistCache, "persist", false, "ask the peer to persist the value")
	return cmd
}

func runSend(ctx context.Context, out io.Writer, cfg config.Config, pkt payload.DataPacket, awaitAuth time.Duration) error {
	opts, err := cfg.SessionOptions()
	if err != nil {
		return err
	}
	auth := make(chan payload.AuthResponse, 1)
	deliver := func(_ context.Context, _ payload.Envelope, m payload.AuthResponse) error {
		select {
		case auth <- m:
		default:
		}
		return nil
	}
	opts.Handler = &payload.Router{OnAuthResponse: deliver, OnAuthFailed: deliver}

	endpoint, err := session.Dial(ctx, cfg.Remote, opts)
	if err != nil {
		return err
	}
	defer endpoint.Close()

	req, err := endpoint.Dispatch(pkt.Marshal())
	if err != nil {
		return err
	}
	if err := req.Wait(ctx); err != nil {
		return fmt.Errorf("%s seq=%d: %w", payload.TypeName(pkt.Type), req.Seq(), err)
	}
	fmt.Fprintf(out, "acked %s seq=%d\n", payload.TypeName(pkt.Type), req.Seq())

	if awaitAuth <= 0 {
		return nil
	}
	select {
	case m := <-auth:
		if m.Failed() {
			return fmt.Errorf("authentication failed: %s", m.Message)
		}
		fmt.Fprintf(out, "authenticated: %s\n", m.Message)
		return nil
	case <-time.After(awaitAuth):
		return fmt.Errorf("no auth response within %s", awaitAuth)
	case <-ctx.Done():
		return ctx.Err()
	}
}
