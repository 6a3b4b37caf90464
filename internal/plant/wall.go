package plant

import (
	"github.com/twinsim/twinsim/internal/geom"
	"github.com/twinsim/twinsim/internal/sim"
)

// Wall is a static collidable box.
type Wall struct {
	Base
	Size   geom.Vector
	Render bool
}

type WallConfig struct {
	Name   string
	Pos    geom.Vector
	Size   geom.Vector
	Layer  int
	Render bool
}

func NewWall(w *sim.World, parent sim.EntityID, c WallConfig) (*Wall, error) {
	wall := &Wall{Base: Base{Name: c.Name}, Size: c.Size, Render: c.Render}
	e, err := create(w, parent, sim.Spec{
		Kind:       sim.KindWall,
		Pos:        c.Pos,
		Layer:      c.Layer,
		Collidable: true,
		Behavior:   wall,
	}, &wall.Base)
	if err != nil {
		return nil, err
	}
	if c.Render {
		w.Draw(e, sim.Shape{Type: sim.ShapeRect, Size: c.Size, Fill: ColorWall})
	}
	w.AddBox(e, geom.Vector{}, c.Size)
	w.MarkDirty(e.ID)
	return wall, nil
}
