package plant

import (
	"github.com/twinsim/twinsim/internal/geom"
	"github.com/twinsim/twinsim/internal/sim"
)

// Sensor is a light barrier across a belt. It reports whether any stack
// breaks its beam.
type Sensor struct {
	Base
	Orientation geom.Orientation
	Layer       int
	Activated   bool

	indicator *sim.RenderHandle
	trigger   *sim.Trigger
}

type SensorConfig struct {
	Name        string
	Pos         geom.Vector
	Orientation geom.Orientation
	Layer       int
}

func NewSensor(w *sim.World, parent sim.EntityID, c SensorConfig) (*Sensor, error) {
	s := &Sensor{Base: Base{Name: c.Name}, Orientation: c.Orientation, Layer: c.Layer}
	e, err := create(w, parent, sim.Spec{
		Kind:     sim.KindSensor,
		Pos:      c.Pos,
		Layer:    c.Layer,
		NoLayer:  true,
		Behavior: s,
	}, &s.Base)
	if err != nil {
		return nil, err
	}
	o := c.Orientation
	pos, size := rotBox(o, geom.Vector{}, geom.V(10, 20))
	w.Draw(e, sim.Shape{Type: sim.ShapeRect, Pos: pos, Size: size})
	pos, size = rotBox(o, geom.Vector{}, geom.V(10, 5))
	s.indicator = w.Draw(e, sim.Shape{Type: sim.ShapeRect, Pos: pos, Size: size, Fill: ColorSensorOff})

	pos, size = rotBox(o, geom.V(5, 20), geom.V(0, 10))
	w.Draw(e, sim.Shape{Type: sim.ShapeLine, Pos: pos, Size: size, Dash: []int{3, 3}})
	beam := w.AddBox(e, pos, size)
	s.trigger = w.AddTrigger(e, beam, sim.LayerGroup(c.Layer), sim.KindStack).
		On(sim.EventOccupancy, s.onOccupancy)
	w.MarkDirty(e.ID)
	return s, nil
}

func (s *Sensor) onOccupancy(w *sim.World, ev sim.Event) {
	s.Activated = ev.Occupied
	color := ColorSensorOff
	if s.Activated {
		color = ColorActive
	}
	s.indicator.SetColor(w, color)
}
