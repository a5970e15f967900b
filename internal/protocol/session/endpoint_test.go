package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/danmuck/prism/internal/protocol/envelope"
	"github.com/danmuck/prism/internal/protocol/frame"
	"github.com/danmuck/prism/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, opts Options) (*Endpoint, <-chan Message) {
	t.Helper()
	got := make(chan Message, 16)
	opts.Handler = HandlerFunc(func(_ context.Context, msg Message) error {
		got <- msg
		return nil
	})
	srv, err := Listen(context.Background(), "127.0.0.1:0", opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv, got
}

func dialServer(t *testing.T, addr net.Addr, opts Options) *Endpoint {
	t.Helper()
	cli, err := Dial(context.Background(), addr.String(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })
	return cli
}

func silentPeer(t *testing.T) net.PacketConn {
	t.Helper()
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}

// loopback rewrites a wildcard bind address to 127.0.0.1.
func loopback(a net.Addr) *net.UDPAddr {
	ua := a.(*net.UDPAddr)
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: ua.Port}
}

func expectMessage(t *testing.T, got <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-got:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received the message")
		return Message{}
	}
}

func TestLoopbackPlain(t *testing.T) {
	testlog.Start(t)
	srv, got := startServer(t, Options{})
	cli := dialServer(t, srv.LocalAddr(), Options{})

	require.NoError(t, cli.Send(context.Background(), []byte("hello")))
	msg := expectMessage(t, got)
	require.Equal(t, []byte("hello"), msg.Payload)
	require.Empty(t, cli.Pending())
}

func TestLoopbackSealed(t *testing.T) {
	testlog.Start(t)
	srv, got := startServer(t, Options{Codec: sealedTestCodec(t, sharedSecret)})
	cli := dialServer(t, srv.LocalAddr(), Options{Codec: sealedTestCodec(t, sharedSecret)})

	for _, payload := range []string{"hello", "", "third"} {
		require.NoError(t, cli.Send(context.Background(), []byte(payload)))
		msg := expectMessage(t, got)
		require.Equal(t, payload, string(msg.Payload))
	}
	require.Empty(t, cli.Pending())
}

func TestLoopbackKeyMismatchTimesOut(t *testing.T) {
	testlog.Start(t)
	srv, got := startServer(t, Options{Codec: sealedTestCodec(t, sharedSecret)})
	cli := dialServer(t, srv.LocalAddr(), Options{
		Config: Config{AckTimeout: 100 * time.Millisecond},
		Codec:  sealedTestCodec(t, "another-key-entirely-32-bytes!!!"),
	})

	err := cli.Send(context.Background(), []byte("hello"))
	require.ErrorIs(t, err, ErrTimeout)
	require.Empty(t, got)
	require.Empty(t, cli.Pending())
}

func TestSilentPeerTimesOut(t *testing.T) {
	testlog.Start(t)
	peer := silentPeer(t)
	cli := dialServer(t, peer.LocalAddr(), Options{Config: Config{AckTimeout: 50 * time.Millisecond}})

	req, err := cli.Dispatch([]byte("anyone?"))
	require.NoError(t, err)
	require.Len(t, cli.Pending(), 1)
	require.ErrorIs(t, req.Wait(context.Background()), ErrTimeout)
	require.Empty(t, cli.Pending())
}

type corruptingConn struct {
	net.PacketConn
}

func (c corruptingConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	out := make([]byte, len(b))
	copy(out, b)
	out[len(out)-1] ^= 0x01
	return c.PacketConn.WriteTo(out, addr)
}

func TestCorruptedInTransitTimesOut(t *testing.T) {
	testlog.Start(t)
	codec := sealedTestCodec(t, sharedSecret)
	srv, got := startServer(t, Options{Codec: codec})

	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	cli := NewEndpoint(corruptingConn{pc}, srv.LocalAddr(), Options{
		Config: Config{AckTimeout: 100 * time.Millisecond},
		Codec:  codec,
	})
	t.Cleanup(func() { _ = cli.Close() })

	err = cli.Send(context.Background(), []byte("hello"))
	require.ErrorIs(t, err, ErrTimeout)
	require.Empty(t, got)
}

func TestCloseResolvesOutstanding(t *testing.T) {
	testlog.Start(t)
	peer := silentPeer(t)
	cli, err := Dial(context.Background(), peer.LocalAddr().String(), Options{})
	require.NoError(t, err)

	req, err := cli.Dispatch([]byte("never acked"))
	require.NoError(t, err)
	require.NoError(t, cli.Close())
	require.ErrorIs(t, req.Wait(context.Background()), ErrClosed)
	require.NoError(t, cli.Close())

	_, err = cli.Dispatch([]byte("late"))
	require.ErrorIs(t, err, ErrClosed)
}

func TestForeignAckDropped(t *testing.T) {
	testlog.Start(t)
	peer := silentPeer(t)
	intruder := silentPeer(t)
	obs := newCountingObserver()
	cli := dialServer(t, peer.LocalAddr(), Options{
		Config:    Config{AckTimeout: 200 * time.Millisecond},
		SeqSource: seqList(77),
		Observer:  obs,
	})

	req, err := cli.Dispatch([]byte("hello"))
	require.NoError(t, err)
	_, err = intruder.WriteTo(frame.EncodeAck(77), loopback(cli.LocalAddr()))
	require.NoError(t, err)

	require.ErrorIs(t, req.Wait(context.Background()), ErrTimeout)
	require.Equal(t, 1, obs.drops(DropForeign))
}

func TestServerRepliesToEachPeer(t *testing.T) {
	testlog.Start(t)
	srv, got := startServer(t, Options{})
	a := dialServer(t, srv.LocalAddr(), Options{})
	b := dialServer(t, srv.LocalAddr(), Options{})

	require.NoError(t, a.Send(context.Background(), []byte("from a")))
	expectMessage(t, got)
	require.NoError(t, b.Send(context.Background(), []byte("from b")))
	msg := expectMessage(t, got)
	require.Equal(t, loopback(b.LocalAddr()).Port, msg.From.(*net.UDPAddr).Port)
}

func TestEndpointWithoutRemote(t *testing.T) {
	testlog.Start(t)
	srv, _ := startServer(t, Options{})
	require.Nil(t, srv.RemoteAddr())
	require.ErrorIs(t, srv.Send(context.Background(), nil), ErrNoRemote)
	_, err := srv.Dispatch(nil)
	require.ErrorIs(t, err, ErrNoRemote)
	require.Equal(t, envelope.NewPlain().Mode(), srv.Engine().Codec().Mode())
}
