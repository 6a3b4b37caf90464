package plant

import (
	"github.com/twinsim/twinsim/internal/geom"
	"github.com/twinsim/twinsim/internal/sim"
)

// pickerSledMargin is the part of the rail the head cannot reach.
const pickerSledMargin = 20

// Picker is a linear gantry. Its head travels one unit per tick towards
// Target and can lift the top item off a stack underneath it and put it
// down elsewhere.
type Picker struct {
	Base
	Orientation geom.Orientation
	Length      float64
	Render      bool
	RenderHead  bool
	Confine     bool

	Target int
	Actual int
	InPos  bool

	head    *PickerHead
	headPos geom.Vector
}

// PickerHead is the gripper entity riding on a picker's rail.
type PickerHead struct {
	Base
	Trigger *sim.Trigger

	carried sim.EntityID
}

type PickerConfig struct {
	Name        string
	Pos         geom.Vector
	Length      float64
	Orientation geom.Orientation
	Render      bool
	RenderHead  bool
	Confine     bool
}

func NewPicker(w *sim.World, parent sim.EntityID, c PickerConfig) (*Picker, error) {
	p := &Picker{
		Base:        Base{Name: c.Name},
		Orientation: c.Orientation,
		Length:      c.Length,
		Render:      c.Render,
		RenderHead:  c.RenderHead,
		Confine:     c.Confine,
	}
	e, err := create(w, parent, sim.Spec{
		Kind:     sim.KindPicker,
		Pos:      c.Pos,
		NoLayer:  true,
		Behavior: p,
	}, &p.Base)
	if err != nil {
		return nil, err
	}
	o := c.Orientation
	if c.Render {
		pos, size := rotBox(o, geom.Vector{}, geom.V(c.Length, 10))
		w.Draw(e, sim.Shape{Type: sim.ShapeRect, Pos: pos, Size: size, Fill: ColorWall})
	}

	p.headPos = geom.V(7, 10).Rotate(o.Angle())
	p.head = &PickerHead{}
	he := w.MustCreate(e.ID, sim.Spec{
		Kind:      sim.KindPickerHead,
		Pos:       p.headPos,
		NoLayer:   true,
		Transient: true,
		Behavior:  p.head,
	})
	p.head.id = he.ID
	pos, size := rotBox(o, geom.Vector{}, geom.V(6, 14))
	if c.RenderHead {
		w.Draw(he, sim.Shape{Type: sim.ShapeRect, Pos: pos, Size: size, Fill: ColorHead})
	}
	p.head.Trigger = w.AddTrigger(he, w.AddBox(he, pos, size), sim.LayerGroup(0), sim.KindStack)

	w.Animate(e, p.animate)
	w.MarkDirty(e.ID)
	return p, nil
}

// Head returns the gripper.
func (p *Picker) Head() *PickerHead { return p.head }

// MaxTarget is the farthest reachable sled position.
func (p *Picker) MaxTarget() int { return int(p.Length) - pickerSledMargin }

// MoveTo sets a new sled target.
func (p *Picker) MoveTo(target int) {
	p.Target = target
	p.InPos = false
}

// Occupied reports whether the head carries a stack.
func (p *Picker) Occupied(w *sim.World) bool { return w.Alive(p.head.carried) }

// PickUp lifts the top item of the stack under the head.
func (p *Picker) PickUp(w *sim.World) { p.head.PickUp(w) }

// PutDown releases the carried stack.
func (p *Picker) PutDown(w *sim.World) { p.head.PutDown(w) }

func (p *Picker) animate(w *sim.World) {
	e := p.Entity(w)
	w.RaiseToTop(e)
	if p.Confine {
		if p.Target > p.MaxTarget() {
			p.Target = p.MaxTarget()
		} else if p.Target < 0 {
			p.Target = 0
		}
	}
	p.InPos = false
	switch {
	case p.Actual < p.Target:
		p.Actual++
	case p.Actual > p.Target:
		p.Actual--
	default:
		p.InPos = true
		return
	}
	head := p.head.Entity(w)
	w.SetPos(head, p.headPos.Add(p.Orientation.Vector().Scale(float64(p.Actual))))
	w.RenderTree(head)
}

// Carried returns the stack held by the head, or nil.
func (h *PickerHead) Carried(w *sim.World) *Stack {
	s, _ := As[Stack](w.Get(h.carried))
	return s
}

// PickUp unstacks the top item below the head and carries it on layer 1.
// It does nothing while already carrying or with nothing below.
func (h *PickerHead) PickUp(w *sim.World) {
	if w.Alive(h.carried) {
		return
	}
	below, ok := As[Stack](h.Trigger.First(w))
	if !ok {
		return
	}
	top, err := below.Unstack(w)
	if err != nil {
		return
	}
	te := top.Entity(w)
	if err := w.Reparent(te, h.id); err != nil {
		return
	}
	_ = w.ChangeLayer(te, 1)
	h.carried = te.ID
}

// PutDown stacks the carried item onto a stack below the head, or drops it
// on the floor of the picker's parent.
func (h *PickerHead) PutDown(w *sim.World) {
	carried := h.Carried(w)
	if carried == nil {
		return
	}
	h.carried = 0
	if below, ok := As[Stack](h.Trigger.First(w)); ok && below.ID() != carried.ID() {
		carried.StackOn(w, below)
		return
	}
	ce := carried.Entity(w)
	picker := w.Get(w.Get(h.id).Parent)
	if err := w.Reparent(ce, picker.Parent); err != nil {
		return
	}
	_ = w.ChangeLayer(ce, 0)
}
