package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/twinsim/twinsim/internal/core/event"
	coresys "github.com/twinsim/twinsim/internal/core/system"
	"github.com/twinsim/twinsim/internal/handshake"
	"github.com/twinsim/twinsim/internal/plant"
	"github.com/twinsim/twinsim/internal/sim"
)

// HandshakeSystem steps the sim side of every module's handshake after its
// control logic ran. Modules appearing or disappearing (layout load, clear)
// are picked up on the next tick. Phase 7.
type HandshakeSystem struct {
	world *sim.World
	bus   *event.Bus
	sims  map[*plant.Module]*handshake.Sim
	log   *zap.Logger
}

func NewHandshakeSystem(w *sim.World, bus *event.Bus, log *zap.Logger) *HandshakeSystem {
	return &HandshakeSystem{
		world: w,
		bus:   bus,
		sims:  make(map[*plant.Module]*handshake.Sim),
		log:   log,
	}
}

func (s *HandshakeSystem) Phase() coresys.Phase { return coresys.PhaseHandshake }

func (s *HandshakeSystem) Update(_ time.Duration) {
	seen := make(map[*plant.Module]bool, len(s.sims))
	for _, m := range plant.Modules(s.world) {
		seen[m] = true
		hs, ok := s.sims[m]
		if !ok {
			hs = handshake.NewSim(m.Name, m.Vars, m.Status, s.bus, s.log)
			s.sims[m] = hs
		}
		st := m.Status
		before := lamps{st.Start, st.Ack, st.Busy, st.Ready()}
		hs.Step()
		if before != (lamps{st.Start, st.Ack, st.Busy, st.Ready()}) {
			m.Refresh(s.world)
		}
	}
	for m := range s.sims {
		if !seen[m] {
			delete(s.sims, m)
		}
	}
}

// Sim returns the handshake of m, if it has been stepped.
func (s *HandshakeSystem) Sim(m *plant.Module) (*handshake.Sim, bool) {
	hs, ok := s.sims[m]
	return hs, ok
}

type lamps struct{ start, ack, busy, ready bool }
