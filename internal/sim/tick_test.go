package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinsim/twinsim/internal/geom"
)

type eventLog struct {
	events []Event
}

func (l *eventLog) record(_ *World, ev Event) { l.events = append(l.events, ev) }

func (l *eventLog) count(kind EventKind) int {
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (l *eventLog) reset() { l.events = nil }

func newZone(w *World, log *eventLog) (*Entity, *Trigger) {
	z := w.MustCreate(w.Root(), Spec{Kind: KindZone, Pos: geom.V(100, 0), NoLayer: true})
	c := w.AddBox(z, geom.Vector{}, geom.V(20, 20))
	t := w.AddTrigger(z, c, LayerGroup(0), KindStack)
	for k := EventPresent; k < eventKindCount; k++ {
		t.On(k, log.record)
	}
	return z, t
}

func newItem(w *World, pos geom.Vector) *Entity {
	e := w.MustCreate(w.Root(), Spec{Kind: KindStack, Pos: pos, Collidable: true})
	w.AddCircle(e, geom.Vector{}, 4)
	return e
}

func TestTriggerIsTickDelayed(t *testing.T) {
	w := newTestWorld(t)
	log := &eventLog{}
	_, trig := newZone(w, log)
	item := newItem(w, geom.V(0, 10))

	w.Step()
	assert.Empty(t, log.events)

	// enters during tick N (after evaluation), seen from tick N+1
	w.SetPos(item, geom.V(105, 10))
	assert.False(t, trig.Occupied())

	w.Step()
	require.Len(t, log.events, 3)
	assert.Equal(t, EventOccupancy, log.events[0].Kind)
	assert.True(t, log.events[0].Occupied)
	assert.Equal(t, EventPresent, log.events[1].Kind)
	assert.Equal(t, EventEnter, log.events[2].Kind)
	assert.Equal(t, item.ID, log.events[2].Entity)
	assert.True(t, trig.Occupied())
	assert.Equal(t, []EntityID{item.ID}, trig.Present())

	for i := 0; i < 3; i++ {
		log.reset()
		w.Step()
		require.Len(t, log.events, 1)
		assert.Equal(t, EventPresent, log.events[0].Kind)
	}

	w.SetPos(item, geom.V(0, 10))
	log.reset()
	w.Step()
	require.Len(t, log.events, 2)
	assert.Equal(t, EventOccupancy, log.events[0].Kind)
	assert.False(t, log.events[0].Occupied)
	assert.Equal(t, EventExit, log.events[1].Kind)
}

func TestTriggerFiltersKind(t *testing.T) {
	w := newTestWorld(t)
	log := &eventLog{}
	newZone(w, log)
	other := w.MustCreate(w.Root(), Spec{Kind: KindWall, Pos: geom.V(105, 5)})
	w.AddBox(other, geom.Vector{}, geom.V(2, 2))

	w.Step()
	assert.Empty(t, log.events)
}

func TestExitFiresForRemovedEntity(t *testing.T) {
	w := newTestWorld(t)
	log := &eventLog{}
	_, trig := newZone(w, log)
	item := newItem(w, geom.V(105, 5))

	var removes int
	trig.On(EventEnter, func(w *World, ev Event) {
		removes++
		w.Remove(ev.Entity)
	})

	w.Step() // tick N: enter, removed during dispatch
	require.Equal(t, 1, removes)
	assert.False(t, w.Alive(item.ID))

	log.reset()
	w.Step() // tick N+1: exit for the removed entity
	require.Equal(t, 1, log.count(EventExit))
	assert.Equal(t, item.ID, log.events[len(log.events)-1].Entity)
	assert.Nil(t, w.Get(item.ID))

	log.reset()
	w.Step()
	assert.Empty(t, log.events)
}

func TestExitCallbackRemovingAgainIsNoop(t *testing.T) {
	w := newTestWorld(t)
	_, trig := newZone(w, &eventLog{})
	item := newItem(w, geom.V(105, 5))
	trig.On(EventExit, func(w *World, ev Event) {
		assert.False(t, w.Remove(ev.Entity))
	})

	w.Step()
	w.Remove(item.ID)
	assert.NotPanics(t, w.Step)
}

func TestDispatchIsFIFOAndDeferred(t *testing.T) {
	w := newTestWorld(t)
	var order []int
	w.Enqueue(func(w *World, _ Event) {
		order = append(order, 1)
		w.Enqueue(func(*World, Event) { order = append(order, 3) }, Event{})
	}, Event{})
	w.Enqueue(func(*World, Event) { order = append(order, 2) }, Event{})

	w.DispatchEvents()
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 1, w.Pending())

	w.DispatchEvents()
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Zero(t, w.Pending())
}

func TestMutationsDuringDispatchSeenNextTick(t *testing.T) {
	w := newTestWorld(t)
	log := &eventLog{}
	z, trig := newZone(w, log)
	item := newItem(w, geom.V(0, 5))

	// a second trigger moves the item into the zone while dispatching
	mover := w.MustCreate(w.Root(), Spec{NoLayer: true})
	mc := w.AddBox(mover, geom.Vector{}, geom.V(10, 10))
	w.AddTrigger(mover, mc, LayerGroup(0)).On(EventEnter, func(w *World, ev Event) {
		w.SetPos(w.Get(ev.Entity), z.Pos().Add(geom.V(5, 5)))
	})

	w.Step()
	assert.Zero(t, log.count(EventEnter))
	assert.False(t, trig.Occupied())

	w.Step()
	assert.Equal(t, 1, log.count(EventEnter))
	assert.Equal(t, item.ID, trig.First(w).ID)
}

type updateRecorder struct{ n *[]EntityID }

func (u updateRecorder) OnUpdate(_ *World, e *Entity) { *u.n = append(*u.n, e.ID) }

func TestUpdatePropagationDedupsAndRecurses(t *testing.T) {
	r := newFakeRenderer()
	w := newTestWorld(t, WithRenderer(r))
	var seen []EntityID
	a := w.MustCreate(w.Root(), Spec{Behavior: updateRecorder{&seen}})
	b := w.MustCreate(a.ID, Spec{Pos: geom.V(1, 1), Behavior: updateRecorder{&seen}})
	ha := w.Draw(a, Shape{Type: ShapeRect, Size: geom.V(2, 2)})
	hb := w.Draw(b, Shape{Type: ShapeRect, Size: geom.V(2, 2)})

	w.MarkDirty(a.ID)
	w.MarkDirty(a.ID)
	w.Step()

	assert.Equal(t, []EntityID{a.ID, b.ID}, seen)
	assert.Len(t, r.moves[ha.Handle()], 1)
	assert.Len(t, r.moves[hb.Handle()], 1)
	assert.Equal(t, geom.V(1, 1), r.moves[hb.Handle()][0])
	assert.Zero(t, w.DirtyCount())
	assert.Zero(t, w.RenderCount())
}

func TestAnimationsRunInOrderAndRenderOnce(t *testing.T) {
	r := newFakeRenderer()
	w := newTestWorld(t, WithRenderer(r))
	e := w.MustCreate(w.Root(), Spec{})
	h := w.Draw(e, Shape{Type: ShapeLine, Size: geom.V(0, 10)})

	var order []string
	w.Animate(e, func(w *World) {
		order = append(order, "first")
		h.SetOffset(h.Offset().Add(geom.V(1, 0)))
		w.Render(h)
	})
	w.Animate(e, func(w *World) {
		order = append(order, "second")
		w.Render(h)
	})
	w.MarkDirty(e.ID)

	w.Step()
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, []geom.Vector{geom.V(1, 0)}, r.moves[h.Handle()])
	assert.Equal(t, uint64(1), w.Ticks())
}

func TestAnimationOfRemovedOwnerSkipped(t *testing.T) {
	w := newTestWorld(t)
	a := w.MustCreate(w.Root(), Spec{})
	b := w.MustCreate(w.Root(), Spec{})
	var ran []string
	w.Animate(a, func(w *World) {
		ran = append(ran, "a")
		w.Remove(b.ID)
	})
	w.Animate(b, func(*World) { ran = append(ran, "b") })

	w.StepAnimations()
	assert.Equal(t, []string{"a"}, ran)
	assert.Equal(t, 1, w.Animations())
}

func TestPrivateGroup(t *testing.T) {
	w := newTestWorld(t)
	log := &eventLog{}
	z := w.MustCreate(w.Root(), Spec{NoLayer: true})
	c := w.AddBox(z, geom.Vector{}, geom.V(50, 50))
	g := NewGroup()
	w.AddTrigger(z, c, g).On(EventEnter, log.record)

	a := newItem(w, geom.V(10, 10))
	newItem(w, geom.V(20, 20))
	g.Add(a.ID)

	w.Step()
	require.Len(t, log.events, 1)
	assert.Equal(t, a.ID, log.events[0].Entity)
}
