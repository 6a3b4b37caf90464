package sim

import (
	"github.com/twinsim/twinsim/internal/core/ecs"
	"github.com/twinsim/twinsim/internal/geom"
)

// EntityID is the arena handle used for every cross-reference in the world.
type EntityID = ecs.EntityID

// Entity is a node in the world's ownership tree. Colliders, triggers and
// render handles hang off it and refer back to it by ID only.
// Accessed only from the tick goroutine.
type Entity struct {
	ID         EntityID
	Kind       Kind
	Parent     EntityID
	Layer      int
	InLayer    bool // listed in the world layer partition
	Collidable bool
	Transient  bool // excluded from saved layouts

	Children  []EntityID
	Colliders []*Collider
	Triggers  []*Trigger
	Renders   []*RenderHandle
	Ignore    []EntityID // entities never collided with

	// Behavior carries the kind-specific state. It may implement
	// UpdateHook, OverlapHook and RemoveHook.
	Behavior any

	pos     geom.Vector
	abs     geom.Vector
	blocker EntityID
	removed bool
}

// Pos returns the position relative to the parent.
func (e *Entity) Pos() geom.Vector { return e.pos }

// Abs returns the cached absolute position.
func (e *Entity) Abs() geom.Vector { return e.abs }

// Removed reports whether the entity was taken out of the world.
func (e *Entity) Removed() bool { return e.removed }

// Blocker returns the entity that last rejected a TryMove, if any.
func (e *Entity) Blocker() EntityID { return e.blocker }

// Spec describes a new entity.
type Spec struct {
	Kind       Kind
	Pos        geom.Vector
	Layer      int
	NoLayer    bool // keep out of the layer partition
	Collidable bool
	Transient  bool
	Behavior   any
}

// UpdateHook runs at the start of the entity's update step, before
// children and render handles are refreshed.
type UpdateHook interface {
	OnUpdate(w *World, e *Entity)
}

// OverlapHook replaces the default any-collider-pair test when other is
// checked against self. handled=false falls back to the default.
type OverlapHook interface {
	Overlaps(w *World, self, other *Entity) (hit, handled bool)
}

// RemoveHook runs before the entity's parts are torn down.
type RemoveHook interface {
	OnRemove(w *World, e *Entity)
}

func containsID(ids []EntityID, id EntityID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func removeID(ids []EntityID, id EntityID) []EntityID {
	for i, x := range ids {
		if x == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
