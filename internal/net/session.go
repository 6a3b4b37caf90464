package net

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/twinsim/twinsim/internal/net/packet"
)

// Session is one controller connection to a module endpoint. Requests are
// answered from the read goroutine; replies go through OutQueue to the
// write goroutine.
type Session struct {
	ID   uint64
	conn net.Conn

	state atomic.Int32 // packet.SessionState stored as int32
	mu    sync.Mutex   // serializes conn writes

	OutQueue chan []byte

	IP string

	readTimeout  time.Duration
	writeTimeout time.Duration

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

func NewSession(conn net.Conn, id uint64, outSize int, readTimeout, writeTimeout time.Duration, log *zap.Logger) *Session {
	s := &Session{
		ID:           id,
		conn:         conn,
		OutQueue:     make(chan []byte, outSize),
		IP:           conn.RemoteAddr().String(),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		closeCh:      make(chan struct{}),
		log:          log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(packet.StateConnected))
	return s
}

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

// Send queues a reply. A full queue means a stalled peer; the session is
// closed.
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- data:
	default:
		s.log.Warn("output queue full, dropping slow session")
		s.Close()
	}
}

// SendNow writes data immediately, bypassing the queue. Used for the last
// reply before a deliberate close.
func (s *Session) SendNow(data []byte) {
	if s.closed.Load() {
		return
	}
	s.writeOnePacket(data)
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.closeCh
}

// readLoop reads frames and hands each payload to handle until the
// connection fails, the peer goes quiet past the read timeout, or the
// session is closed.
func (s *Session) readLoop(_ context.Context, handle func(*Session, []byte)) {
	defer s.Close()

	for {
		if s.readTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		payload, err := ReadFrame(s.conn)
		if err != nil {
			if !s.closed.Load() && !errors.Is(err, io.EOF) {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}
		handle(s, payload)
		if s.closed.Load() {
			return
		}
	}
}

// writeLoop writes queued replies as frames.
func (s *Session) writeLoop(ctx context.Context) {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if !s.writeOnePacket(data) {
				return
			}
		case <-s.closeCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) writeOnePacket(data []byte) bool {
	s.log.Debug("TX",
		zap.String("op", packet.OpcodeName(data[0])),
		zap.Int("len", len(data)),
	)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := WriteFrame(s.conn, data); err != nil {
		if !s.closed.Load() {
			s.log.Debug("write error", zap.Error(err))
		}
		return false
	}
	return true
}
