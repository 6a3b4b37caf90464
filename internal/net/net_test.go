package net

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/twinsim/twinsim/internal/config"
	"github.com/twinsim/twinsim/internal/handshake"
	"github.com/twinsim/twinsim/internal/net/packet"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte{0x02, 0x05}))
	assert.Equal(t, []byte{4, 0, 0x02, 0x05}, buf.Bytes())

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x05}, got)

	_, err = ReadFrame(bytes.NewReader([]byte{2, 0}))
	assert.Error(t, err, "empty payload")
	_, err = ReadFrame(bytes.NewReader([]byte{9, 0, 1}))
	assert.Error(t, err, "truncated payload")
	assert.Error(t, WriteFrame(&buf, nil))
}

func TestPacketLatin1Strings(t *testing.T) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_ERROR)
	w.WriteC(3)
	w.WriteS("Müller")
	w.WriteS("日本")
	w.WriteD(-7)
	data := w.Bytes()
	assert.Equal(t, []byte{'M', 0xFC, 'l', 'l', 'e', 'r', 0}, data[2:9], "one byte per Latin-1 rune")

	r := packet.NewReader(data)
	assert.Equal(t, packet.S_OPCODE_ERROR, r.Opcode())
	assert.Equal(t, byte(3), r.ReadC())
	assert.Equal(t, "Müller", r.ReadS())
	assert.Equal(t, "??", r.ReadS())
	assert.Equal(t, int32(-7), r.ReadD())
	assert.False(t, r.Short())
	assert.Zero(t, r.ReadD())
	assert.True(t, r.Short())
}

func TestRegistryDispatch(t *testing.T) {
	reg := packet.NewRegistry(zap.NewNop())
	var got byte
	reg.Register(0x10, func(_ any, r *packet.Reader) error {
		got = r.ReadC()
		return nil
	}, packet.StateAuthenticated)
	reg.Register(0x11, func(any, *packet.Reader) error {
		panic("boom")
	}, packet.StateAuthenticated)

	require.NoError(t, reg.Dispatch(nil, packet.StateAuthenticated, []byte{0x10, 42}))
	assert.Equal(t, byte(42), got)
	assert.ErrorIs(t, reg.Dispatch(nil, packet.StateConnected, []byte{0x10, 1}), packet.ErrState)
	assert.ErrorIs(t, reg.Dispatch(nil, packet.StateAuthenticated, []byte{0x7f}), packet.ErrUnknownOpcode)
	assert.Error(t, reg.Dispatch(nil, packet.StateAuthenticated, []byte{0x11}), "panic becomes an error")
}

type endpoint struct {
	vars   *handshake.Variables
	worker *handshake.Worker
	server *Server
}

func startServer(t *testing.T, cfg config.ExchangeConfig) *endpoint {
	t.Helper()
	log := zaptest.NewLogger(t)
	if cfg.OutQueueSize == 0 {
		cfg.OutQueueSize = 16
	}
	ep := &endpoint{vars: &handshake.Variables{}, worker: handshake.NewWorker(log)}
	srv, err := NewServer("127.0.0.1:0", "m1", ep.vars, cfg, ep.worker, log)
	require.NoError(t, err)
	srv.Start()
	ep.server = srv
	t.Cleanup(func() { srv.Close() })
	return ep
}

func dial(t *testing.T, ep *endpoint, password string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), ep.server.Addr().String(), password, 2*time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestReadWriteVariables(t *testing.T) {
	ep := startServer(t, config.ExchangeConfig{})
	c := dial(t, ep, "")
	ctx := context.Background()

	require.NoError(t, c.Write(ctx, handshake.VarOrder, 7))
	require.NoError(t, c.Write(ctx, handshake.VarStart, 1))
	assert.Equal(t, int32(7), ep.vars.Order())
	assert.True(t, ep.vars.Start())

	ep.vars.SetMsg(3)
	ep.vars.SetReady(true)
	v, err := c.Read(ctx, handshake.VarMsg)
	require.NoError(t, err)
	assert.Equal(t, int32(3), v)

	all, err := c.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[handshake.VarID]int32{
		handshake.VarStart: 1,
		handshake.VarOrder: 7,
		handshake.VarAck:   0,
		handshake.VarBusy:  0,
		handshake.VarReady: 1,
		handshake.VarMsg:   3,
	}, all)
}

func TestRemoteWriteRules(t *testing.T) {
	ep := startServer(t, config.ExchangeConfig{})
	c := dial(t, ep, "")
	ctx := context.Background()

	for _, id := range []handshake.VarID{handshake.VarAck, handshake.VarBusy, handshake.VarReady, handshake.VarMsg} {
		err := c.Write(ctx, id, 1)
		assert.ErrorIs(t, err, ErrNotWritable, id.String())
	}
	assert.False(t, ep.vars.Ack())

	_, err := c.Read(ctx, handshake.VarID(42))
	assert.ErrorIs(t, err, handshake.ErrUnknownVar)
	assert.ErrorIs(t, c.Write(ctx, handshake.VarID(42), 1), handshake.ErrUnknownVar)

	// the session survives rejected requests
	_, err = c.Read(ctx, handshake.VarStart)
	assert.NoError(t, err)
}

func TestAuthentication(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	ep := startServer(t, config.ExchangeConfig{PasswordHash: string(hash)})
	ctx := context.Background()
	addr := ep.server.Addr().String()

	_, err = Dial(ctx, addr, "wrong", time.Second, zap.NewNop())
	assert.ErrorIs(t, err, ErrAuth)

	anon, err := Dial(ctx, addr, "", time.Second, zap.NewNop())
	require.NoError(t, err)
	defer anon.Close()
	_, err = anon.Read(ctx, handshake.VarMsg)
	assert.ErrorIs(t, err, ErrAuth)

	c := dial(t, ep, "secret")
	require.NoError(t, c.Write(ctx, handshake.VarOrder, 5))
	assert.Equal(t, int32(5), ep.vars.Order())
}

func TestHandshakeOverTCP(t *testing.T) {
	ep := startServer(t, config.ExchangeConfig{})
	c := dial(t, ep, "")
	ctx := context.Background()

	status := &handshake.Status{}
	status.SetReady(true)
	sim := handshake.NewSim("m1", ep.vars, status, nil, zap.NewNop())
	ctrl := handshake.NewController(c, zap.NewNop())
	require.NoError(t, ctrl.Place(9))

	var latched int32
	done := false
	for i := 0; i < 20 && !done; i++ {
		require.NoError(t, ctrl.Poll(ctx))
		sim.Step()
		if status.Order != 0 {
			latched = status.Order
		}
		if sim.State() == handshake.StateReleasing {
			status.Busy = false
		}
		done = ctrl.Idle() && sim.State() == handshake.StateIdle && latched != 0
	}
	require.True(t, done, "handshake did not complete")
	assert.Equal(t, int32(9), latched)
	assert.False(t, ep.vars.Start())
	assert.False(t, ep.vars.Ack())
	assert.False(t, ep.vars.Busy())
}

func TestCloseStopsWorker(t *testing.T) {
	log := zap.NewNop()
	worker := handshake.NewWorker(log)
	vars := &handshake.Variables{}
	cfg := config.ExchangeConfig{OutQueueSize: 4}

	a, err := NewServer("127.0.0.1:0", "a", vars, cfg, worker, log)
	require.NoError(t, err)
	b, err := NewServer("127.0.0.1:0", "b", vars, cfg, worker, log)
	require.NoError(t, err)
	a.Start()
	b.Start()
	assert.Equal(t, 2, worker.Channels())

	c, err := Dial(context.Background(), a.Addr().String(), "", time.Second, log)
	require.NoError(t, err)
	defer c.Close()
	require.Eventually(t, func() bool { return a.Sessions() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Close())
	assert.True(t, worker.Running(), "a still holds the worker")

	require.NoError(t, a.Close())
	assert.False(t, worker.Running())
	_, err = c.Read(context.Background(), handshake.VarMsg)
	assert.Error(t, err, "session closed with its endpoint")
	assert.NoError(t, a.Close(), "close is idempotent")
}

func TestErrorCodesRoundTrip(t *testing.T) {
	for _, sentinel := range []error{ErrAuth, ErrNotWritable, ErrMalformed, handshake.ErrUnknownVar, packet.ErrUnknownOpcode} {
		got := codeError(errorCode(sentinel), "x")
		assert.True(t, errors.Is(got, sentinel), sentinel.Error())
	}
	assert.ErrorIs(t, codeError(errorCode(errors.New("other")), "x"), ErrRemote)
}
