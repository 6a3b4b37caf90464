package net

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/twinsim/twinsim/internal/config"
	"github.com/twinsim/twinsim/internal/handshake"
	"github.com/twinsim/twinsim/internal/net/packet"
)

// Server is the variable exchange endpoint of one module. Its accept loop
// and session goroutines run on the shared handshake worker; closing the
// server releases its hold on the worker.
type Server struct {
	Module string

	listener net.Listener
	vars     *handshake.Variables
	registry *packet.Registry
	cfg      config.ExchangeConfig
	worker   *handshake.Worker
	nextID   atomic.Uint64
	started  atomic.Bool

	mu       sync.Mutex
	sessions map[uint64]*Session

	closeCh    chan struct{}
	closeOnce  sync.Once
	acceptDone chan struct{}
	log        *zap.Logger
}

func NewServer(bindAddr, module string, vars *handshake.Variables, cfg config.ExchangeConfig, worker *handshake.Worker, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("module", module))
	s := &Server{
		Module:     module,
		listener:   ln,
		vars:       vars,
		registry:   packet.NewRegistry(log),
		cfg:        cfg,
		worker:     worker,
		sessions:   make(map[uint64]*Session),
		closeCh:    make(chan struct{}),
		acceptDone: make(chan struct{}),
		log:        log,
	}
	registerHandlers(s.registry, s)
	return s, nil
}

// Start registers the server with the worker and begins accepting.
func (s *Server) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.worker.Acquire()
	s.worker.Go(s.acceptLoop)
	s.log.Info("exchange endpoint listening", zap.String("addr", s.Addr().String()))
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer close(s.acceptDone)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			case <-ctx.Done():
				return
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}

		id := s.nextID.Add(1)
		sess := NewSession(conn, id, s.cfg.OutQueueSize, s.cfg.ReadTimeout, s.cfg.WriteTimeout, s.log)
		if s.cfg.PasswordHash == "" {
			sess.SetState(packet.StateAuthenticated)
		}
		s.mu.Lock()
		s.sessions[id] = sess
		s.mu.Unlock()

		s.log.Info("controller connected", zap.Uint64("session", id), zap.String("ip", sess.IP))
		s.worker.Go(func(ctx context.Context) {
			sess.readLoop(ctx, s.handle)
			s.drop(sess)
		})
		s.worker.Go(sess.writeLoop)
	}
}

func (s *Server) handle(sess *Session, payload []byte) {
	if err := s.registry.Dispatch(sess, sess.State(), payload); err != nil {
		sess.log.Debug("request rejected", zap.Error(err))
		w := packet.NewWriterWithOpcode(packet.S_OPCODE_ERROR)
		w.WriteC(errorCode(err))
		w.WriteS(err.Error())
		sess.Send(w.Bytes())
	}
}

func (s *Server) drop(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()
	s.log.Info("controller disconnected", zap.Uint64("session", sess.ID))
}

// Sessions returns the number of connected controllers.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops accepting, drops every session and releases the worker. When
// this was the worker's last channel, Close blocks until every exchange
// goroutine has exited.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.listener.Close()
		if !s.started.Load() {
			return
		}
		<-s.acceptDone

		s.mu.Lock()
		for _, sess := range s.sessions {
			sess.Close()
		}
		s.mu.Unlock()

		s.worker.Release()
		s.log.Info("exchange endpoint closed")
	})
	return nil
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
