package net

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/twinsim/twinsim/internal/handshake"
	"github.com/twinsim/twinsim/internal/net/packet"
)

func registerHandlers(reg *packet.Registry, s *Server) {
	reg.Register(packet.C_OPCODE_AUTH, func(sess any, r *packet.Reader) error {
		return s.handleAuth(sess.(*Session), r)
	}, packet.StateConnected, packet.StateAuthenticated)
	reg.Register(packet.C_OPCODE_READ, func(sess any, r *packet.Reader) error {
		return s.handleRead(sess.(*Session), r)
	}, packet.StateAuthenticated)
	reg.Register(packet.C_OPCODE_WRITE, func(sess any, r *packet.Reader) error {
		return s.handleWrite(sess.(*Session), r)
	}, packet.StateAuthenticated)
	reg.Register(packet.C_OPCODE_READ_ALL, func(sess any, r *packet.Reader) error {
		return s.handleReadAll(sess.(*Session))
	}, packet.StateAuthenticated)
}

func (s *Server) handleAuth(sess *Session, r *packet.Reader) error {
	password := r.ReadS()
	if r.Short() {
		return fmt.Errorf("C_AUTH: %w", ErrMalformed)
	}
	ok := s.cfg.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(password)) == nil

	w := packet.NewWriterWithOpcode(packet.S_OPCODE_AUTH)
	if !ok {
		sess.log.Warn("controller authentication failed", zap.String("ip", sess.IP))
		w.WriteC(0)
		sess.SendNow(w.Bytes())
		sess.Close()
		return nil
	}
	sess.SetState(packet.StateAuthenticated)
	w.WriteC(1)
	sess.Send(w.Bytes())
	return nil
}

func (s *Server) handleRead(sess *Session, r *packet.Reader) error {
	id := handshake.VarID(r.ReadC())
	if r.Short() {
		return fmt.Errorf("C_READ: %w", ErrMalformed)
	}
	v, err := s.vars.Load(id)
	if err != nil {
		return err
	}
	sess.Send(valuePacket(id, v))
	return nil
}

func (s *Server) handleWrite(sess *Session, r *packet.Reader) error {
	raw, v := r.ReadVar()
	if r.Short() {
		return fmt.Errorf("C_WRITE: %w", ErrMalformed)
	}
	id := handshake.VarID(raw)
	if !id.Writable() {
		if _, err := s.vars.Load(id); err != nil {
			return err
		}
		return fmt.Errorf("write %s: %w", id, ErrNotWritable)
	}
	if err := s.vars.Store(id, v); err != nil {
		return err
	}
	sess.log.Debug("variable written", zap.Stringer("var", id), zap.Int32("value", v))
	stored, _ := s.vars.Load(id)
	sess.Send(valuePacket(id, stored))
	return nil
}

func (s *Server) handleReadAll(sess *Session) error {
	snap := s.vars.Snapshot()
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_SNAPSHOT)
	w.WriteC(byte(len(handshake.AllVars)))
	for i, id := range handshake.AllVars {
		w.WriteVar(byte(id), snap[i])
	}
	sess.Send(w.Bytes())
	return nil
}

func valuePacket(id handshake.VarID, v int32) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_VALUE)
	w.WriteVar(byte(id), v)
	return w.Bytes()
}
