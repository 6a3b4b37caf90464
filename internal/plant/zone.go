package plant

import (
	"github.com/twinsim/twinsim/internal/geom"
	"github.com/twinsim/twinsim/internal/sim"
)

// Zone is a bare occupancy detector that module logic can query by name.
type Zone struct {
	Base
	Size    geom.Vector
	Trigger *sim.Trigger
}

type ZoneConfig struct {
	Name string
	Pos  geom.Vector
	Size geom.Vector
}

func NewZone(w *sim.World, parent sim.EntityID, c ZoneConfig) (*Zone, error) {
	z := &Zone{Base: Base{Name: c.Name}, Size: c.Size}
	e, err := create(w, parent, sim.Spec{
		Kind:     sim.KindZone,
		Pos:      c.Pos,
		NoLayer:  true,
		Behavior: z,
	}, &z.Base)
	if err != nil {
		return nil, err
	}
	w.Draw(e, sim.Shape{Type: sim.ShapeRect, Size: c.Size, Dash: []int{2, 2}})
	z.Trigger = w.AddTrigger(e, w.AddBox(e, geom.Vector{}, c.Size), sim.LayerGroup(0), sim.KindStack)
	w.MarkDirty(e.ID)
	return z, nil
}

// Occupied reports whether a stack was inside at the last evaluation.
func (z *Zone) Occupied() bool { return z.Trigger.Occupied() }
