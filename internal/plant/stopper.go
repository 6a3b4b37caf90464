package plant

import (
	"github.com/twinsim/twinsim/internal/geom"
	"github.com/twinsim/twinsim/internal/sim"
)

const (
	stopperTravel = 20
	stopperStep   = 2
)

// Stopper is a retractable gate across a belt. While fully open it lets
// stacks pass; otherwise its gate collider blocks them. With AutoClose (or
// after RequestClose) it closes again once a stack has left the gate.
type Stopper struct {
	Base
	Orientation geom.Orientation
	AutoClose   bool

	closeRequested bool
	travel         float64
	step           float64
	gate           *sim.RenderHandle
	gatePos        geom.Vector
}

type StopperConfig struct {
	Name        string
	Pos         geom.Vector
	Orientation geom.Orientation
	AutoClose   bool
}

func NewStopper(w *sim.World, parent sim.EntityID, c StopperConfig) (*Stopper, error) {
	s := &Stopper{
		Base:        Base{Name: c.Name},
		Orientation: c.Orientation,
		AutoClose:   c.AutoClose,
		step:        -stopperStep,
	}
	if c.AutoClose {
		s.step = stopperStep
	}
	e, err := create(w, parent, sim.Spec{
		Kind:       sim.KindStopper,
		Pos:        c.Pos,
		Collidable: true,
		Behavior:   s,
	}, &s.Base)
	if err != nil {
		return nil, err
	}
	o := c.Orientation
	pos, size := rotBox(o, geom.Vector{}, geom.V(15, 30))
	w.Draw(e, sim.Shape{Type: sim.ShapeRect, Pos: pos, Size: size, Fill: ColorWall})
	pos, size = rotBox(o, geom.V(5, 5), geom.V(5, 25))
	s.gate = w.Draw(e, sim.Shape{Type: sim.ShapeRect, Pos: pos, Size: size, Fill: ColorGate})
	s.gatePos = pos

	pos, size = rotBox(o, geom.V(4, 30), geom.V(1, 20))
	wall := w.AddBox(e, pos, size)
	w.AddTrigger(e, wall, sim.LayerGroup(0), sim.KindStack).On(sim.EventExit, s.onExit)
	w.Animate(e, s.animate)
	w.MarkDirty(e.ID)
	return s, nil
}

func (s *Stopper) animate(w *sim.World) {
	e := s.Entity(w)
	s.travel += s.step
	e.Collidable = true
	if s.travel < 0 {
		e.Collidable = false
		s.travel = 0
	} else if s.travel > stopperTravel {
		s.travel = stopperTravel
	}
	s.gate.SetOffset(s.gatePos.Add(across(s.Orientation).Scale(s.travel)))
	w.Render(s.gate)
}

func (s *Stopper) onExit(w *sim.World, _ sim.Event) {
	if s.AutoClose || s.closeRequested {
		s.Close(w)
	}
}

// Closing reports whether the gate is moving towards (or resting in) the
// closed position.
func (s *Stopper) Closing() bool { return s.step > 0 }

// Toggle reverses the gate direction.
func (s *Stopper) Toggle() { s.step = -s.step }

// RequestClose makes the gate close after the next stack has passed.
func (s *Stopper) RequestClose() { s.closeRequested = true }

// CloseRequested reports a pending RequestClose.
func (s *Stopper) CloseRequested() bool { return s.closeRequested }

// Close starts closing the gate and blocks immediately.
func (s *Stopper) Close(w *sim.World) {
	if e := s.Entity(w); e != nil {
		e.Collidable = true
	}
	s.closeRequested = false
	if s.step < 0 {
		s.Toggle()
	}
}

// Open starts retracting the gate.
func (s *Stopper) Open() {
	if s.step > 0 {
		s.Toggle()
	}
}
