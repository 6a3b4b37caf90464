package handshake

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/twinsim/twinsim/internal/core/event"
)

// Status is the module-side view of the handshake. Start, Ack, Busy, Order
// and Msg belong to the tick goroutine: module logic reads Order and
// writes Busy and Msg. Ready is operator controlled and may be toggled from
// any goroutine.
type Status struct {
	Start bool
	Ack   bool
	Busy  bool
	Order int32
	Msg   int32

	ready atomic.Bool
}

func (s *Status) Ready() bool     { return s.ready.Load() }
func (s *Status) SetReady(b bool) { s.ready.Store(b) }

// State is the sim-side handshake progress.
type State uint8

const (
	StateIdle State = iota
	StateOrderLatched
	StateReleasing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOrderLatched:
		return "order_latched"
	case StateReleasing:
		return "releasing"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Sim runs the sim side of one module's handshake. Step is called once per
// tick from the tick goroutine.
type Sim struct {
	Module string
	Vars   *Variables
	Status *Status

	state State
	bus   *event.Bus
	log   *zap.Logger
	now   func() time.Time
}

// NewSim wires a handshake for module. bus may be nil.
func NewSim(module string, vars *Variables, status *Status, bus *event.Bus, log *zap.Logger) *Sim {
	return &Sim{
		Module: module,
		Vars:   vars,
		Status: status,
		bus:    bus,
		log:    log.With(zap.String("module", module)),
		now:    time.Now,
	}
}

// State returns the current progress.
func (s *Sim) State() State { return s.state }

// Step reads the controller's start flag, advances the state machine and
// publishes ack, busy, ready and msg. Combinations that match no rule
// leave the state unchanged.
func (s *Sim) Step() {
	st := s.Status
	st.Start = s.Vars.Start()
	order := s.Vars.Order()

	if order == ResetOrder {
		if s.state != StateIdle || st.Ack || st.Order != 0 {
			s.log.Info("handshake reset by controller", zap.Stringer("from", s.state))
			st.Ack = false
			st.Order = 0
			s.transition(StateIdle)
		}
	} else {
		if s.state == StateIdle && st.Start && !st.Busy && st.Ready() {
			st.Ack = true
			st.Order = order
			st.Busy = true
			s.transition(StateOrderLatched)
		}
		if s.state == StateOrderLatched && !st.Start {
			st.Ack = false
			s.transition(StateReleasing)
		}
		if s.state == StateReleasing && !st.Busy {
			st.Order = 0
			s.transition(StateIdle)
		}
	}

	s.Vars.SetAck(st.Ack)
	s.Vars.SetBusy(st.Busy)
	s.Vars.SetReady(st.Ready())
	s.Vars.SetMsg(st.Msg)
}

func (s *Sim) transition(to State) {
	from := s.state
	s.state = to
	if from == to {
		return
	}
	s.log.Debug("handshake transition",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Int32("order", s.Status.Order))
	if s.bus != nil {
		event.Emit(s.bus, event.HandshakeTransition{
			Module: s.Module,
			From:   from.String(),
			To:     to.String(),
			Order:  s.Status.Order,
			Msg:    s.Status.Msg,
			At:     s.now(),
		})
	}
}
