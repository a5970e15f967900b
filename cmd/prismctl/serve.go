package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/danmuck/prism/internal/config"
	"github.com/danmuck/prism/internal/observability"
	"github.com/danmuck/prism/internal/payload"
	"github.com/danmuck/prism/internal/protocol/session"
	"github.com/danmuck/prism/internal/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		ep          endpointFlags
		listen      string
		metricsAddr string
		node        string
		token       string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a peer that acknowledges and logs data packets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ep.resolve(cmd, func(c *config.Config) {
				if cmd.Flags().Changed("listen") || c.Listen == "" {
					c.Listen = listen
				}
				if cmd.Flags().Changed("metrics-addr") {
					c.MetricsAddr = metricsAddr
				}
			})
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, node, token)
		},
	}
	ep.register(cmd)
	cmd.Flags().StringVar(&listen, "listen", "0.0.0.0:6969", "UDP address to answer on")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "admin HTTP address (/healthz, /metrics, /pending)")
	cmd.Flags().StringVar(&node, "node", "prism", "node name used in logs and metrics")
	cmd.Flags().StringVar(&token, "token", "", "login token to accept; empty accepts any login")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, node, token string) error {
	logger := log.Logger.With().Str("node", node).Logger()
	opts, err := cfg.SessionOptions()
	if err != nil {
		return err
	}
	opts.Logger = &logger
	opts.Observer = observability.NewMetrics(node)

	var bound atomic.Pointer[session.Endpoint]
	opts.Handler = newServeRouter(&logger, token, func(env payload.Envelope, reply payload.DataPacket) {
		endpoint := bound.Load()
		if endpoint == nil {
			return
		}
		if _, err := endpoint.Engine().Dispatch(env.From, reply.Marshal()); err != nil {
			logger.Warn().Err(err).Str("to", env.From.String()).Msg("auth response not sent")
		}
	})

	endpoint, err := session.Listen(ctx, cfg.Listen, opts)
	if err != nil {
		return err
	}
	bound.Store(endpoint)
	defer endpoint.Close()
	logger.Info().
		Str("listen", endpoint.LocalAddr().String()).
		Str("mode", string(cfg.Mode)).
		Dur("ack_timeout", cfg.AckTimeout).
		Msg("prism peer ready")

	if cfg.MetricsAddr == "" {
		<-ctx.Done()
		return nil
	}
	admin := server.NewAdmin(node, string(cfg.Mode), endpoint)
	if err := admin.Serve(ctx, cfg.MetricsAddr); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}

// newServeRouter logs every packet and answers logins with an
// AuthResponse through reply.
func newServeRouter(logger *zerolog.Logger, token string, reply func(payload.Envelope, payload.DataPacket)) *payload.Router {
	return &payload.Router{
		Logger: logger,
		OnLogin: func(_ context.Context, env payload.Envelope, m payload.Login) error {
			status, message := int32(0), "welcome"
			if token != "" && m.Token != token {
				status, message = payload.StatusAuthFailed, "invalid token"
			}
			logger.Info().
				Uint32("seq", env.Seq).
				Str("from", env.From.String()).
				Str("service", m.Service).
				Bool("accepted", status == 0).
				Msg("login")
			reply(env, payload.NewAuthResponse(status, message))
			return nil
		},
		OnUpdate: func(_ context.Context, env payload.Envelope, m payload.Update) error {
			logger.Info().
				Uint32("seq", env.Seq).
				Str("from", env.From.String()).
				Str("name", m.Name).
				Str("value", m.Value).
				Str("type", m.Type).
				Bool("persist_cache", m.PersistCache).
				Msg("update")
			return nil
		},
	}
}
