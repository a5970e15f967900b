package main

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/prism/internal/config"
	"github.com/danmuck/prism/internal/payload"
	"github.com/danmuck/prism/internal/protocol/session"
	"github.com/danmuck/prism/internal/testutil/testlog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

const testKey = "secret-auth-key-123============="

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// startPeer runs the serve router on a loopback endpoint.
func startPeer(t *testing.T, token string, opts session.Options) *session.Endpoint {
	t.Helper()
	var bound atomic.Pointer[session.Endpoint]
	opts.Handler = newServeRouter(&log.Logger, token, func(env payload.Envelope, reply payload.DataPacket) {
		if ep := bound.Load(); ep != nil {
			_, _ = ep.Engine().Dispatch(env.From, reply.Marshal())
		}
	})
	ep, err := session.Listen(context.Background(), "127.0.0.1:0", opts)
	require.NoError(t, err)
	bound.Store(ep)
	t.Cleanup(func() { _ = ep.Close() })
	return ep
}

func TestSendUpdateAcked(t *testing.T) {
	testlog.Start(t)
	peer := startPeer(t, "", session.Options{})

	out, err := execute(t, "send", "update", "--remote", peer.LocalAddr().String(), "--name", "volume", "--value", "11")
	require.NoError(t, err)
	require.Contains(t, out, "acked update seq=")
}

func TestSendLoginSealedWithAuth(t *testing.T) {
	testlog.Start(t)
	cfgPath := filepath.Join(t.TempDir(), "client.toml")
	_, err := execute(t, "config", "init", "--kind", "client", "--output", cfgPath)
	require.NoError(t, err)

	codecOpts := sealedOptions(t)
	peer := startPeer(t, "abcd", codecOpts)

	out, err := execute(t, "send", "login",
		"--config", cfgPath,
		"--remote", peer.LocalAddr().String(),
		"--mode", "sealed", "--key", testKey,
		"--service", "test", "--token", "abcd",
		"--await-auth", "2s")
	require.NoError(t, err)
	require.Contains(t, out, "acked login seq=")
	require.Contains(t, out, "authenticated: welcome")

	_, err = execute(t, "send", "login",
		"--remote", peer.LocalAddr().String(),
		"--mode", "sealed", "--key", testKey,
		"--service", "test", "--token", "wrong",
		"--await-auth", "2s")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "authentication failed"))
}

func TestSendTimesOutAgainstSilentPeer(t *testing.T) {
	testlog.Start(t)
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	_, err = execute(t, "send", "update", "--remote", pc.LocalAddr().String(), "--name", "n", "--ack-timeout", "100ms")
	require.ErrorIs(t, err, session.ErrTimeout)
}

func TestSendRejectsSealedWithoutKey(t *testing.T) {
	testlog.Start(t)
	_, err := execute(t, "send", "update", "--mode", "sealed")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid configuration")
}

func TestConfigInitAndValidate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "server.toml")
	out, err := execute(t, "config", "init", "--kind", "server", "--output", path)
	require.NoError(t, err)
	require.Contains(t, out, "wrote server config")

	out, err = execute(t, "config", "validate", path)
	require.NoError(t, err)
	require.Contains(t, out, "mode=plain ack_timeout=5s")

	out, err = execute(t, "config", "validate", "ex.server.toml")
	require.NoError(t, err)
	require.Contains(t, out, "mode=sealed")
}

func sealedOptions(t *testing.T) session.Options {
	t.Helper()
	cfg, err := config.Load("ex.client.toml")
	require.NoError(t, err)
	opts, err := cfg.SessionOptions()
	require.NoError(t, err)
	return opts
}

func TestRunServeStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg, "serve-test", "") }()
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop")
	}
}
