package net

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/twinsim/twinsim/internal/handshake"
	"github.com/twinsim/twinsim/internal/net/packet"
)

// Client is the controller side of a module exchange endpoint. It
// implements handshake.Endpoint; requests are strictly one at a time.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	timeout time.Duration
	log     *zap.Logger
}

var _ handshake.Endpoint = (*Client)(nil)

// Dial connects to addr and, when password is set, authenticates.
func Dial(ctx context.Context, addr, password string, timeout time.Duration, log *zap.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c := &Client{conn: conn, timeout: timeout, log: log.With(zap.String("endpoint", addr))}
	if password == "" {
		return c, nil
	}

	w := packet.NewWriterWithOpcode(packet.C_OPCODE_AUTH)
	w.WriteS(password)
	r, err := c.roundTrip(ctx, w.Bytes(), packet.S_OPCODE_AUTH)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if r.ReadC() != 1 {
		conn.Close()
		return nil, fmt.Errorf("dial %s: %w", addr, ErrAuth)
	}
	return c, nil
}

func (c *Client) Read(ctx context.Context, id handshake.VarID) (int32, error) {
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_READ)
	w.WriteC(byte(id))
	r, err := c.roundTrip(ctx, w.Bytes(), packet.S_OPCODE_VALUE)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", id, err)
	}
	got, v := r.ReadVar()
	if r.Short() {
		return 0, fmt.Errorf("read %s: short S_VALUE: %w", id, ErrMalformed)
	}
	if handshake.VarID(got) != id {
		return 0, fmt.Errorf("read %s: answer for %s: %w", id, handshake.VarID(got), ErrMalformed)
	}
	return v, nil
}

func (c *Client) Write(ctx context.Context, id handshake.VarID, val int32) error {
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_WRITE)
	w.WriteVar(byte(id), val)
	if _, err := c.roundTrip(ctx, w.Bytes(), packet.S_OPCODE_VALUE); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	return nil
}

// ReadAll reads every variable in one request.
func (c *Client) ReadAll(ctx context.Context) (map[handshake.VarID]int32, error) {
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_READ_ALL)
	r, err := c.roundTrip(ctx, w.Bytes(), packet.S_OPCODE_SNAPSHOT)
	if err != nil {
		return nil, fmt.Errorf("read all: %w", err)
	}
	n := int(r.ReadC())
	out := make(map[handshake.VarID]int32, n)
	for i := 0; i < n; i++ {
		id, v := r.ReadVar()
		out[handshake.VarID(id)] = v
	}
	if r.Short() {
		return nil, fmt.Errorf("read all: short S_SNAPSHOT: %w", ErrMalformed)
	}
	return out, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(ctx context.Context, req []byte, want byte) (*packet.Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok && c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	c.conn.SetDeadline(deadline)

	if err := WriteFrame(c.conn, req); err != nil {
		return nil, err
	}
	payload, err := ReadFrame(c.conn)
	if err != nil {
		return nil, err
	}
	r := packet.NewReader(payload)
	switch r.Opcode() {
	case want:
		return r, nil
	case packet.S_OPCODE_ERROR:
		code := r.ReadC()
		return nil, codeError(code, r.ReadS())
	}
	return nil, fmt.Errorf("unexpected reply %s: %w", packet.OpcodeName(r.Opcode()), ErrMalformed)
}
