// Package plant holds the concrete factory equipment built on the sim
// engine: walls, sensors, item stacks, conveyors, stoppers, spawners,
// pickers, removers, zones and controllable modules.
package plant

import (
	"math"

	"github.com/twinsim/twinsim/internal/geom"
	"github.com/twinsim/twinsim/internal/sim"
)

// Colors used by the equipment drawings.
const (
	ColorWall      = "lightgrey"
	ColorBelt      = "white"
	ColorGate      = "grey"
	ColorHead      = "blue"
	ColorRemover   = "red"
	ColorActive    = "green"
	ColorIdle      = "lightgrey"
	ColorAlarm     = "red"
	ColorSensorOff = "white"
)

// Base is embedded by every equipment behavior.
type Base struct {
	// Name addresses the equipment from module logic. Optional.
	Name string

	id sim.EntityID
}

// ID returns the entity carrying this behavior.
func (b *Base) ID() sim.EntityID { return b.id }

// Entity returns the live entity, or nil once removed.
func (b *Base) Entity(w *sim.World) *sim.Entity { return w.Get(b.id) }

func (b *Base) base() *Base { return b }

type named interface{ base() *Base }

// NameOf returns the equipment name of e, if any.
func NameOf(e *sim.Entity) string {
	if n, ok := e.Behavior.(named); ok {
		return n.base().Name
	}
	return ""
}

// As returns e's behavior as *T.
func As[T any](e *sim.Entity) (*T, bool) {
	if e == nil {
		return nil, false
	}
	b, ok := e.Behavior.(*T)
	return b, ok
}

// Find returns the first descendant of from with the given equipment name,
// searching depth-first.
func Find(w *sim.World, from sim.EntityID, name string) *sim.Entity {
	var found *sim.Entity
	w.Walk(from, func(e *sim.Entity) bool {
		if found != nil {
			return false
		}
		if e.ID != from && NameOf(e) == name {
			found = e
			return false
		}
		return true
	})
	return found
}

// FindAs is Find followed by As.
func FindAs[T any](w *sim.World, from sim.EntityID, name string) (*T, bool) {
	return As[T](Find(w, from, name))
}

// rotBox rotates an east-facing box (origin + size) into orientation o and
// normalizes it.
func rotBox(o geom.Orientation, origin, size geom.Vector) (geom.Vector, geom.Vector) {
	a := o.Angle()
	return origin.Rotate(a).NormBox(size.Rotate(a))
}

// across returns the direction perpendicular to o, turned clockwise.
func across(o geom.Orientation) geom.Vector {
	return o.Vector().Rotate(math.Pi / 2)
}

func create(w *sim.World, parent sim.EntityID, s sim.Spec, b *Base) (*sim.Entity, error) {
	e, err := w.Create(parent, s)
	if err != nil {
		return nil, err
	}
	b.id = e.ID
	return e, nil
}
