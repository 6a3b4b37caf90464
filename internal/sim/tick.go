package sim

// animation is a per-tick callback owned by an entity.
type animation struct {
	owner EntityID
	fn    func(w *World)
}

// Animate registers fn to run once per tick in the animation phase, in
// registration order, until owner is removed.
func (w *World) Animate(owner *Entity, fn func(w *World)) {
	w.animations = append(w.animations, animation{owner: owner.ID, fn: fn})
}

func (w *World) dropAnimations(owner EntityID) {
	kept := w.animations[:0]
	for _, a := range w.animations {
		if a.owner != owner {
			kept = append(kept, a)
		}
	}
	for i := len(kept); i < len(w.animations); i++ {
		w.animations[i] = animation{}
	}
	w.animations = kept
}

// Animations returns the number of registered animations.
func (w *World) Animations() int { return len(w.animations) }

// EvaluateTriggers is phase 1: every live trigger recomputes its present
// list and queues events. No callback runs.
func (w *World) EvaluateTriggers() {
	for _, t := range w.triggers {
		t.evaluate(w)
	}
}

// DispatchEvents is phase 2: queued callbacks run once each in FIFO order.
// The queue is swapped out first, so anything enqueued by a callback waits
// for the next dispatch.
func (w *World) DispatchEvents() {
	queue := w.events
	w.events = w.spare[:0]
	for i := range queue {
		queue[i].fn(w, queue[i].ev)
		queue[i] = queuedEvent{}
	}
	w.spare = queue[:0]
}

// PropagateUpdates is phase 3: each dirty entity updates its subtree and
// schedules its render handles.
func (w *World) PropagateUpdates() {
	for _, id := range w.updates.take() {
		if e := w.Get(id); e != nil {
			w.update(e)
		}
	}
}

func (w *World) update(e *Entity) {
	if h, ok := e.Behavior.(UpdateHook); ok {
		h.OnUpdate(w, e)
	}
	for _, id := range e.Children {
		if c := w.Get(id); c != nil {
			w.update(c)
		}
	}
	for _, r := range e.Renders {
		w.renders.add(r)
	}
}

// StepAnimations is phase 4: every animation runs once. Animations of
// entities removed earlier in this phase are skipped.
func (w *World) StepAnimations() {
	snapshot := append([]animation(nil), w.animations...)
	for _, a := range snapshot {
		if w.Alive(a.owner) {
			a.fn(w)
		}
	}
}

// FlushRenders is phase 5: each scheduled handle is moved to its owner's
// absolute position plus offset exactly once.
func (w *World) FlushRenders() {
	for _, r := range w.renders.take() {
		if r.orphan {
			continue
		}
		owner := w.Get(r.Owner)
		if owner == nil {
			continue
		}
		w.renderer.Move(r.handle, owner.abs.Add(r.offset))
	}
}

// Step runs the five world phases in order.
func (w *World) Step() {
	w.EvaluateTriggers()
	w.DispatchEvents()
	w.PropagateUpdates()
	w.StepAnimations()
	w.FlushRenders()
	w.AdvanceTick()
}

// AdvanceTick closes the current tick. Step calls it; a caller driving the
// phases one by one calls it after FlushRenders.
func (w *World) AdvanceTick() { w.ticks++ }

// DirtyCount returns the number of entities waiting for the update phase.
func (w *World) DirtyCount() int { return w.updates.len() }

// RenderCount returns the number of handles waiting for the render flush.
func (w *World) RenderCount() int { return w.renders.len() }
