package plant

import (
	"github.com/twinsim/twinsim/internal/geom"
	"github.com/twinsim/twinsim/internal/sim"
)

// ConveyorWidth is the belt width across the transport direction.
const ConveyorWidth = 20

// Conveyor moves every stack on its belt by Speed units per tick.
type Conveyor struct {
	Base
	Orientation geom.Orientation
	Length      float64
	Speed       float64
	Animated    bool
	Trigger     *sim.Trigger

	phase     float64
	marker    *sim.RenderHandle
	markerPos geom.Vector
}

type ConveyorConfig struct {
	Name        string
	Pos         geom.Vector
	Length      float64
	Speed       float64
	Orientation geom.Orientation
	Animated    bool
}

func NewConveyor(w *sim.World, parent sim.EntityID, c ConveyorConfig) (*Conveyor, error) {
	cv := &Conveyor{
		Base:        Base{Name: c.Name},
		Orientation: c.Orientation,
		Length:      c.Length,
		Speed:       c.Speed,
		Animated:    c.Animated,
	}
	e, err := create(w, parent, sim.Spec{
		Kind:     sim.KindConveyor,
		Pos:      c.Pos,
		NoLayer:  true,
		Behavior: cv,
	}, &cv.Base)
	if err != nil {
		return nil, err
	}
	pos, size := rotBox(c.Orientation, geom.Vector{}, geom.V(c.Length, ConveyorWidth))
	w.Draw(e, sim.Shape{Type: sim.ShapeRect, Pos: pos, Size: size, Fill: ColorBelt})
	belt := w.AddBox(e, pos, size)
	cv.Trigger = w.AddTrigger(e, belt, sim.LayerGroup(e.Layer), sim.KindStack).
		On(sim.EventPresent, cv.onPresent)

	pos, size = geom.V(-1, -1).NormBox(across(c.Orientation).Scale(ConveyorWidth))
	cv.marker = w.Draw(e, sim.Shape{Type: sim.ShapeLine, Pos: pos, Size: size})
	cv.markerPos = pos
	if c.Animated {
		w.Animate(e, cv.animate)
	}
	w.MarkDirty(e.ID)
	return cv, nil
}

// Occupied reports whether a stack was on the belt at the last evaluation.
func (c *Conveyor) Occupied() bool { return c.Trigger.Occupied() }

// SetSpeed changes the belt speed; negative runs backwards.
func (c *Conveyor) SetSpeed(v float64) { c.Speed = v }

func (c *Conveyor) onPresent(w *sim.World, ev sim.Event) {
	item := w.Get(ev.Entity)
	self := c.Entity(w)
	if item == nil || self == nil || c.Speed == 0 {
		return
	}
	w.TryMove(item, c.Orientation.Vector().Scale(c.Speed), self.Ignore)
}

func (c *Conveyor) animate(w *sim.World) {
	c.phase += c.Speed
	if c.phase < 0 {
		c.phase += c.Length
	} else if c.phase > c.Length {
		c.phase -= c.Length
	}
	c.marker.SetOffset(c.markerPos.Add(c.Orientation.Vector().Scale(c.phase)))
	w.Render(c.marker)
}
