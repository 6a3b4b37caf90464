package sim

import (
	"fmt"
)

// EventKind classifies a trigger occupancy transition.
type EventKind uint8

const (
	EventPresent   EventKind = iota // every tick, per present entity
	EventEnter                      // entity newly present
	EventExit                       // entity newly absent, including removed ones
	EventOccupancy                  // "anything present" flipped

	eventKindCount
)

func (k EventKind) String() string {
	switch k {
	case EventPresent:
		return "present"
	case EventEnter:
		return "enter"
	case EventExit:
		return "exit"
	case EventOccupancy:
		return "occupancy"
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// Event is the argument captured when a trigger queues a callback.
// Entity is set for Present/Enter/Exit; Occupied for Occupancy. An Exit
// entity may already be removed, in which case World.Get returns nil.
type Event struct {
	Kind     EventKind
	Trigger  *Trigger
	Entity   EntityID
	Occupied bool
}

// Callback runs during the dispatch phase.
type Callback func(w *World, ev Event)

type queuedEvent struct {
	fn Callback
	ev Event
}

// CheckGroup is the candidate list a trigger tests against.
type CheckGroup interface {
	Members(w *World) []EntityID
}

// LayerGroup resolves to the live list of one world layer.
type LayerGroup int

func (g LayerGroup) Members(w *World) []EntityID { return w.Layer(int(g)) }

// Group is a private candidate list, e.g. the items a spawner has released.
type Group struct {
	ids []EntityID
}

func NewGroup() *Group { return &Group{} }

func (g *Group) Members(*World) []EntityID { return g.ids }
func (g *Group) Add(id EntityID)           { g.ids = append(g.ids, id) }
func (g *Group) Remove(id EntityID)        { g.ids = removeID(g.ids, id) }
func (g *Group) Contains(id EntityID) bool { return containsID(g.ids, id) }
func (g *Group) Len() int                  { return len(g.ids) }

// Trigger is a zone sensor owned by one entity. It tests its collider
// against a check group once per tick and queues callbacks for the
// resulting transitions.
type Trigger struct {
	Owner    EntityID
	Collider *Collider

	group     CheckGroup
	kinds     []Kind
	callbacks [eventKindCount][]Callback

	present []EntityID
	scratch []EntityID
	removed bool
}

// AddTrigger attaches a trigger to owner. The collider must belong to
// owner. An empty kinds list accepts every kind.
func (w *World) AddTrigger(owner *Entity, c *Collider, group CheckGroup, kinds ...Kind) *Trigger {
	if c.Owner != owner.ID {
		panic(fmt.Errorf("trigger collider belongs to %d, not %d", c.Owner, owner.ID))
	}
	t := &Trigger{
		Owner:    owner.ID,
		Collider: c,
		group:    group,
		kinds:    kinds,
	}
	owner.Triggers = append(owner.Triggers, t)
	w.triggers = append(w.triggers, t)
	return t
}

// On registers fn for kind.
func (t *Trigger) On(kind EventKind, fn Callback) *Trigger {
	t.callbacks[kind] = append(t.callbacks[kind], fn)
	return t
}

// SetGroup replaces the candidate list.
func (t *Trigger) SetGroup(g CheckGroup) { t.group = g }

// Group returns the candidate list.
func (t *Trigger) Group() CheckGroup { return t.group }

// Occupied reports whether the last evaluation found anything.
func (t *Trigger) Occupied() bool { return len(t.present) > 0 }

// Present returns the entities found by the last evaluation, in check-group
// order. Entries may have been removed since.
func (t *Trigger) Present() []EntityID {
	return append([]EntityID(nil), t.present...)
}

// First returns the first present entity that is still alive.
func (t *Trigger) First(w *World) *Entity {
	for _, id := range t.present {
		if e := w.Get(id); e != nil {
			return e
		}
	}
	return nil
}

// Removed reports whether the trigger's owner was removed.
func (t *Trigger) Removed() bool { return t.removed }

func (t *Trigger) accepts(k Kind) bool {
	if len(t.kinds) == 0 {
		return true
	}
	for _, x := range t.kinds {
		if x == k {
			return true
		}
	}
	return false
}

// evaluate recomputes the present list and queues events. No callback runs
// here.
func (t *Trigger) evaluate(w *World) {
	if t.removed {
		panic(fmt.Errorf("trigger of entity %d: %w", t.Owner, ErrOrphan))
	}
	next := t.scratch[:0]
	for _, id := range t.group.Members(w) {
		e := w.Get(id)
		if e == nil || !t.accepts(e.Kind) {
			continue
		}
		if w.InCollider(e, t.Collider) {
			next = append(next, id)
		}
	}

	prev := t.present
	if (len(prev) > 0) != (len(next) > 0) {
		occupied := len(next) > 0
		for _, fn := range t.callbacks[EventOccupancy] {
			w.enqueue(fn, Event{Kind: EventOccupancy, Trigger: t, Occupied: occupied})
		}
	}
	for _, fn := range t.callbacks[EventPresent] {
		for _, id := range next {
			w.enqueue(fn, Event{Kind: EventPresent, Trigger: t, Entity: id})
		}
	}
	for _, fn := range t.callbacks[EventEnter] {
		for _, id := range next {
			if !containsID(prev, id) {
				w.enqueue(fn, Event{Kind: EventEnter, Trigger: t, Entity: id})
			}
		}
	}
	for _, fn := range t.callbacks[EventExit] {
		for _, id := range prev {
			if !containsID(next, id) {
				w.enqueue(fn, Event{Kind: EventExit, Trigger: t, Entity: id})
			}
		}
	}

	// swap buffers so the old present list becomes next tick's scratch
	t.present, t.scratch = next, prev
}

func (w *World) removeTrigger(t *Trigger) {
	t.removed = true
	t.present = nil
	t.scratch = nil
	for i, x := range w.triggers {
		if x == t {
			w.triggers = append(w.triggers[:i], w.triggers[i+1:]...)
			break
		}
	}
}

// Triggers returns the number of live triggers.
func (w *World) Triggers() int { return len(w.triggers) }

// Enqueue adds a callback to the pending event queue. Events queued during
// dispatch run in the next tick's dispatch.
func (w *World) Enqueue(fn Callback, ev Event) { w.enqueue(fn, ev) }

func (w *World) enqueue(fn Callback, ev Event) {
	w.events = append(w.events, queuedEvent{fn: fn, ev: ev})
}

// Pending returns the number of queued events.
func (w *World) Pending() int { return len(w.events) }
