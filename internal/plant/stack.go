package plant

import (
	"github.com/twinsim/twinsim/internal/geom"
	"github.com/twinsim/twinsim/internal/sim"
)

// StackRadius is the drawn radius of a stack; its collider is half a unit
// larger so that touching stacks block each other.
const StackRadius = 9

// Item is one layer of a stack.
type Item struct {
	Color string
}

// DefaultItems is the content of a stack built without explicit items.
func DefaultItems() []Item { return []Item{{Color: "red"}} }

// Stack is a movable unit carrying item layers, topmost last. Stacks are
// transient unless Save is set.
type Stack struct {
	Base
	Items    []Item
	Infinite bool
	Save     bool

	body *sim.RenderHandle
}

type StackConfig struct {
	Name     string
	Pos      geom.Vector
	Items    []Item
	Layer    int
	Infinite bool
	Save     bool
}

func NewStack(w *sim.World, parent sim.EntityID, c StackConfig) (*Stack, error) {
	items := append([]Item(nil), c.Items...)
	if len(items) == 0 {
		items = DefaultItems()
	}
	s := &Stack{Base: Base{Name: c.Name}, Items: items, Infinite: c.Infinite, Save: c.Save}
	e, err := create(w, parent, sim.Spec{
		Kind:       sim.KindStack,
		Pos:        c.Pos,
		Layer:      c.Layer,
		Collidable: true,
		Transient:  !c.Save,
		Behavior:   s,
	}, &s.Base)
	if err != nil {
		return nil, err
	}
	r := float64(StackRadius)
	s.body = w.Draw(e, sim.Shape{
		Type: sim.ShapeOval,
		Pos:  geom.V(-r-1, -r-1),
		Size: geom.V(2*r+1, 2*r+1),
		Fill: s.Top().Color,
	})
	w.AddCircle(e, geom.Vector{}, r+0.5)
	w.MarkDirty(e.ID)
	return s, nil
}

// Top returns the visible item.
func (s *Stack) Top() Item {
	if len(s.Items) == 0 {
		return Item{Color: "red"}
	}
	top := s.Items[len(s.Items)-1]
	if top.Color == "" {
		top.Color = "red"
	}
	return top
}

// SetSave switches persistence of this stack on or off.
func (s *Stack) SetSave(w *sim.World, save bool) {
	s.Save = save
	if e := s.Entity(w); e != nil {
		e.Transient = !save
	}
}

func (s *Stack) recolor(w *sim.World) {
	s.body.SetColor(w, s.Top().Color)
}

// Unstack splits off the top item as a new stack at the same place. A
// single-item stack that is not infinite returns itself.
func (s *Stack) Unstack(w *sim.World) (*Stack, error) {
	e := s.Entity(w)
	if e == nil {
		return nil, sim.ErrOrphan
	}
	if len(s.Items) < 2 && !s.Infinite {
		return s, nil
	}
	top := s.Items[len(s.Items)-1]
	if !s.Infinite {
		s.Items = s.Items[:len(s.Items)-1]
	}
	s.recolor(w)
	return NewStack(w, e.Parent, StackConfig{Pos: e.Pos(), Items: []Item{top}})
}

// StackOn moves all items onto other and removes s.
func (s *Stack) StackOn(w *sim.World, other *Stack) *Stack {
	other.Items = append(other.Items, s.Items...)
	other.recolor(w)
	w.Remove(s.id)
	return other
}

// Overlaps lets two stacks compare their primary colliders only.
func (s *Stack) Overlaps(_ *sim.World, self, other *sim.Entity) (bool, bool) {
	if other.Kind != sim.KindStack || len(self.Colliders) == 0 || len(other.Colliders) == 0 {
		return false, false
	}
	return self.Colliders[0].Overlaps(other.Colliders[0]), true
}
