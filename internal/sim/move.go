package sim

import "github.com/twinsim/twinsim/internal/geom"

// InCollider reports whether any collider of e overlaps c.
func (w *World) InCollider(e *Entity, c *Collider) bool {
	for _, x := range e.Colliders {
		if x.Overlaps(c) {
			return true
		}
	}
	return false
}

// Overlaps tests other against self, letting self's behavior decide first.
func (w *World) Overlaps(self, other *Entity) bool {
	if h, ok := self.Behavior.(OverlapHook); ok {
		if hit, handled := h.Overlaps(w, self, other); handled {
			return hit
		}
	}
	for _, c := range self.Colliders {
		if w.InCollider(other, c) {
			return true
		}
	}
	return false
}

// Collides reports whether a bumps into b: both must have collisions
// enabled and b must not be on a's ignore list or in ignore.
func (w *World) Collides(a, b *Entity, ignore []EntityID) bool {
	if !a.Collidable || !b.Collidable {
		return false
	}
	if containsID(a.Ignore, b.ID) || containsID(ignore, b.ID) {
		return false
	}
	return w.Overlaps(b, a)
}

// TryMove shifts e by delta unless that makes it collide with a layer-mate.
// A blocked move restores the old position, remembers the blocker for a
// fast check on the next attempt and returns false.
func (w *World) TryMove(e *Entity, delta geom.Vector, ignore []EntityID) bool {
	old := e.pos
	w.SetPos(e, old.Add(delta))

	if b := w.Get(e.blocker); b != nil && b != e && !containsID(ignore, b.ID) && w.Collides(e, b, nil) {
		w.SetPos(e, old)
		return false
	}
	for _, id := range w.Layer(e.Layer) {
		if id == e.ID || containsID(ignore, id) {
			continue
		}
		other := w.Get(id)
		if other == nil {
			continue
		}
		if w.Collides(e, other, nil) {
			e.blocker = id
			w.SetPos(e, old)
			return false
		}
	}
	w.MarkDirty(e.ID)
	return true
}
