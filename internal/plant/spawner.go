package plant

import (
	"go.uber.org/zap"

	"github.com/twinsim/twinsim/internal/geom"
	"github.com/twinsim/twinsim/internal/sim"
)

// SpawnerFeedSpeed is the speed of the spawner's built-in feed belt.
const SpawnerFeedSpeed = 2

// Spawner is a magazine that releases one stack at a time onto its feed
// belt. A released stack is handed to the spawner's parent once it has
// left the belt.
type Spawner struct {
	Base
	Orientation geom.Orientation
	Items       []Item
	Feed        *Conveyor

	spawned *sim.Group
	display *Stack
}

type SpawnerConfig struct {
	Name        string
	Pos         geom.Vector
	Orientation geom.Orientation
	Items       []Item
}

func NewSpawner(w *sim.World, parent sim.EntityID, c SpawnerConfig) (*Spawner, error) {
	items := append([]Item(nil), c.Items...)
	if len(items) == 0 {
		items = DefaultItems()
	}
	s := &Spawner{
		Base:        Base{Name: c.Name},
		Orientation: c.Orientation,
		Items:       items,
		spawned:     sim.NewGroup(),
	}
	e, err := create(w, parent, sim.Spec{
		Kind:       sim.KindSpawner,
		Pos:        c.Pos,
		Collidable: true,
		Behavior:   s,
	}, &s.Base)
	if err != nil {
		return nil, err
	}
	o := c.Orientation
	pos, size := rotBox(o, geom.Vector{}, geom.V(23, 26))
	w.Draw(e, sim.Shape{Type: sim.ShapeRect, Pos: pos, Size: size})
	w.AddBox(e, pos, size)

	s.Feed, err = NewConveyor(w, e.ID, ConveyorConfig{
		Pos:         geom.V(3, 3).Rotate(o.Angle()),
		Length:      20,
		Speed:       SpawnerFeedSpeed,
		Orientation: o,
	})
	if err != nil {
		w.Remove(e.ID)
		return nil, err
	}
	feed := s.Feed.Entity(w)
	feed.Transient = true
	feed.Ignore = append(feed.Ignore, e.ID)
	s.Feed.Trigger.SetGroup(s.spawned)
	s.Feed.Trigger.On(sim.EventExit, s.onExit)

	s.display, err = NewStack(w, e.ID, StackConfig{
		Pos:   s.mouth(),
		Items: items,
		Layer: 1,
	})
	if err != nil {
		w.Remove(e.ID)
		return nil, err
	}
	w.MarkDirty(e.ID)
	return s, nil
}

func (s *Spawner) mouth() geom.Vector { return geom.V(13, 13).Rotate(s.Orientation.Angle()) }

// InFlight reports whether a released stack is still on the feed belt.
func (s *Spawner) InFlight() bool { return s.spawned.Len() > 0 }

// Spawn releases a new stack unless one is still in flight.
func (s *Spawner) Spawn(w *sim.World) bool {
	e := s.Entity(w)
	if e == nil || s.InFlight() {
		return false
	}
	st, err := NewStack(w, e.ID, StackConfig{Pos: s.mouth(), Items: s.Items})
	if err != nil {
		return false
	}
	s.spawned.Add(st.ID())
	if d := s.display.Entity(w); d != nil {
		w.RaiseToTop(d)
	}
	return true
}

func (s *Spawner) onExit(w *sim.World, ev sim.Event) {
	s.spawned.Remove(ev.Entity)
	e := s.Entity(w)
	item := w.Get(ev.Entity)
	if e == nil || item == nil {
		return
	}
	if err := w.Reparent(item, e.Parent); err != nil {
		w.Log().Warn("spawner hand-over failed",
			zap.String("spawner", s.Name),
			zap.Uint64("stack", uint64(item.ID)),
			zap.Error(err))
	}
}
