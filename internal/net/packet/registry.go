package packet

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrUnknownOpcode is returned by Dispatch for unregistered opcodes.
	ErrUnknownOpcode = errors.New("unknown opcode")
	// ErrState is returned by Dispatch when the session state does not allow
	// the opcode.
	ErrState = errors.New("opcode not allowed in session state")
)

// SessionState is the protocol phase of one exchange connection.
type SessionState int

const (
	StateConnected     SessionState = iota // awaiting C_AUTH
	StateAuthenticated                     // may read and write variables
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateAuthenticated:
		return "Authenticated"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// stateSet is a bitmask of SessionStates.
type stateSet uint8

func statesOf(states []SessionState) stateSet {
	var set stateSet
	for _, s := range states {
		set |= 1 << s
	}
	return set
}

func (set stateSet) has(s SessionState) bool {
	return s >= 0 && s < 8 && set&(1<<s) != 0
}

// HandlerFunc handles one request. sess is the connection's session, passed
// untyped so this package does not import the transport.
type HandlerFunc func(sess any, r *Reader) error

type route struct {
	fn      HandlerFunc
	allowed stateSet
}

// Registry routes request opcodes to handlers and enforces the session
// state each opcode needs.
type Registry struct {
	routes [256]*route
	log    *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{log: log}
}

// Register routes opcode to fn in the given states. Registering an opcode
// twice replaces the earlier handler.
func (reg *Registry) Register(opcode byte, fn HandlerFunc, states ...SessionState) {
	reg.routes[opcode] = &route{fn: fn, allowed: statesOf(states)}
}

// Dispatch runs the handler for the opcode in data[0].
func (reg *Registry) Dispatch(sess any, state SessionState, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty packet: %w", ErrUnknownOpcode)
	}
	op := data[0]
	name := OpcodeName(op)
	if ce := reg.log.Check(zap.DebugLevel, "request"); ce != nil {
		ce.Write(zap.String("opcode", name), zap.Int("size", len(data)), zap.Stringer("state", state))
	}

	rt := reg.routes[op]
	if rt == nil {
		return fmt.Errorf("opcode 0x%02x: %w", op, ErrUnknownOpcode)
	}
	if !rt.allowed.has(state) {
		reg.log.Warn("opcode rejected", zap.String("opcode", name), zap.Stringer("state", state))
		return fmt.Errorf("%s in state %s: %w", name, state, ErrState)
	}
	return reg.call(rt.fn, sess, NewReader(data), name)
}

// call turns a handler panic into an error so one bad request only costs
// its own connection.
func (reg *Registry) call(fn HandlerFunc, sess any, r *Reader, name string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic", zap.String("opcode", name), zap.Any("panic", rec))
			err = fmt.Errorf("%s handler panic: %v", name, rec)
		}
	}()
	return fn(sess, r)
}
