package plant

import (
	"github.com/twinsim/twinsim/internal/geom"
	"github.com/twinsim/twinsim/internal/sim"
)

// Remover takes every stack that enters it out of the world.
type Remover struct {
	Base
	Size    geom.Vector
	Removed int
}

type RemoverConfig struct {
	Name string
	Pos  geom.Vector
	Size geom.Vector
}

func NewRemover(w *sim.World, parent sim.EntityID, c RemoverConfig) (*Remover, error) {
	r := &Remover{Base: Base{Name: c.Name}, Size: c.Size}
	e, err := create(w, parent, sim.Spec{
		Kind:     sim.KindRemover,
		Pos:      c.Pos,
		NoLayer:  true,
		Behavior: r,
	}, &r.Base)
	if err != nil {
		return nil, err
	}
	w.Draw(e, sim.Shape{Type: sim.ShapeRect, Size: c.Size, Fill: ColorRemover})
	w.AddTrigger(e, w.AddBox(e, geom.Vector{}, c.Size), sim.LayerGroup(0), sim.KindStack).
		On(sim.EventEnter, r.onEnter)
	w.MarkDirty(e.ID)
	return r, nil
}

func (r *Remover) onEnter(w *sim.World, ev sim.Event) {
	if w.Remove(ev.Entity) {
		r.Removed++
	}
}
