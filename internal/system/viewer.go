package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/twinsim/twinsim/internal/core/system"
	"github.com/twinsim/twinsim/internal/plant"
	"github.com/twinsim/twinsim/internal/render"
	"github.com/twinsim/twinsim/internal/sim"
)

// ControlSource queues operator requests from outside the tick goroutine.
type ControlSource interface {
	Drain(fn func(render.Control))
}

// ViewerSystem applies operator ready switches coming from viewers.
// Phase 0, so the handshake of the same tick sees the new value.
type ViewerSystem struct {
	world  *sim.World
	source ControlSource
	log    *zap.Logger
}

func NewViewerSystem(w *sim.World, source ControlSource, log *zap.Logger) *ViewerSystem {
	return &ViewerSystem{world: w, source: source, log: log}
}

func (s *ViewerSystem) Phase() coresys.Phase { return coresys.PhaseNotify }

func (s *ViewerSystem) Update(_ time.Duration) {
	s.source.Drain(func(c render.Control) {
		m, ok := plant.ModuleByName(s.world, c.Module)
		if !ok {
			s.log.Warn("ready switch for unknown module", zap.String("module", c.Module))
			return
		}
		if m.Status.Ready() == c.Ready {
			return
		}
		m.Status.SetReady(c.Ready)
		m.Refresh(s.world)
		s.log.Info("module ready switched", zap.String("module", m.Name), zap.Bool("ready", c.Ready))
	})
}
