package system

import (
	"time"

	coresys "github.com/twinsim/twinsim/internal/core/system"
	"github.com/twinsim/twinsim/internal/sim"
)

// TriggerSystem evaluates every trigger and queues its events. Phase 1.
type TriggerSystem struct{ world *sim.World }

func NewTriggerSystem(w *sim.World) *TriggerSystem { return &TriggerSystem{world: w} }

func (s *TriggerSystem) Phase() coresys.Phase   { return coresys.PhaseTrigger }
func (s *TriggerSystem) Update(_ time.Duration) { s.world.EvaluateTriggers() }

// DispatchSystem drains the event queue in FIFO order. Phase 2.
type DispatchSystem struct{ world *sim.World }

func NewDispatchSystem(w *sim.World) *DispatchSystem { return &DispatchSystem{world: w} }

func (s *DispatchSystem) Phase() coresys.Phase   { return coresys.PhaseDispatch }
func (s *DispatchSystem) Update(_ time.Duration) { s.world.DispatchEvents() }

// UpdateSystem propagates dirty entities. Phase 3.
type UpdateSystem struct{ world *sim.World }

func NewUpdateSystem(w *sim.World) *UpdateSystem { return &UpdateSystem{world: w} }

func (s *UpdateSystem) Phase() coresys.Phase   { return coresys.PhaseUpdate }
func (s *UpdateSystem) Update(_ time.Duration) { s.world.PropagateUpdates() }

// AnimationSystem steps animations in registration order. Phase 4.
type AnimationSystem struct{ world *sim.World }

func NewAnimationSystem(w *sim.World) *AnimationSystem { return &AnimationSystem{world: w} }

func (s *AnimationSystem) Phase() coresys.Phase   { return coresys.PhaseAnimate }
func (s *AnimationSystem) Update(_ time.Duration) { s.world.StepAnimations() }

// Flusher is a renderer that batches output until the end of the render
// phase.
type Flusher interface {
	Flush(tick uint64) int
}

// RenderSystem moves every scheduled render handle once, hands the batch
// to the flusher and closes the world tick. Phase 5.
type RenderSystem struct {
	world   *sim.World
	flusher Flusher
}

// NewRenderSystem creates the render phase. flusher may be nil.
func NewRenderSystem(w *sim.World, flusher Flusher) *RenderSystem {
	return &RenderSystem{world: w, flusher: flusher}
}

func (s *RenderSystem) Phase() coresys.Phase { return coresys.PhaseRender }

func (s *RenderSystem) Update(_ time.Duration) {
	s.world.FlushRenders()
	s.world.AdvanceTick()
	if s.flusher != nil {
		s.flusher.Flush(s.world.Ticks())
	}
}

// RegisterWorld registers the five world phases on r.
func RegisterWorld(r *coresys.Runner, w *sim.World, flusher Flusher) {
	r.Register(NewTriggerSystem(w))
	r.Register(NewDispatchSystem(w))
	r.Register(NewUpdateSystem(w))
	r.Register(NewAnimationSystem(w))
	r.Register(NewRenderSystem(w, flusher))
}
