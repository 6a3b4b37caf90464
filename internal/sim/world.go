package sim

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/twinsim/twinsim/internal/core/ecs"
	"github.com/twinsim/twinsim/internal/geom"
)

// DefaultLayers is the initial size of the layer partition:
// 0 = floor items and walls, 1 = items carried by pickers, 2 = spare.
const DefaultLayers = 3

// World is the root of the ownership tree and the owner of every
// per-tick queue. It is not safe for concurrent use; everything runs on the
// tick goroutine.
type World struct {
	pool  *ecs.EntityPool
	store *ecs.Store[Entity]
	root  *Entity

	layers     [][]EntityID
	triggers   []*Trigger
	animations []animation
	events     []queuedEvent
	spare      []queuedEvent
	updates    orderedSet[EntityID]
	renders    orderedSet[*RenderHandle]

	renderer Renderer
	log      *zap.Logger
	ticks    uint64
}

// Option configures a World.
type Option func(*World)

// WithRenderer sets the render backend. The default discards all output.
func WithRenderer(r Renderer) Option {
	return func(w *World) { w.renderer = r }
}

// WithLayers pre-allocates n layer lists.
func WithLayers(n int) Option {
	return func(w *World) {
		if n > 0 {
			w.layers = make([][]EntityID, n)
		}
	}
}

func NewWorld(log *zap.Logger, opts ...Option) *World {
	w := &World{
		pool:     ecs.NewEntityPool(),
		store:    ecs.NewStore[Entity](),
		layers:   make([][]EntityID, DefaultLayers),
		updates:  newOrderedSet[EntityID](),
		renders:  newOrderedSet[*RenderHandle](),
		renderer: NopRenderer{},
		log:      log,
	}
	for _, opt := range opts {
		opt(w)
	}
	root := &Entity{ID: w.pool.Create(), Kind: KindWorld}
	w.store.Set(root.ID, root)
	w.root = root
	return w
}

// Root returns the ID of the world node; its absolute position is the origin.
func (w *World) Root() EntityID { return w.root.ID }

// Renderer returns the render backend.
func (w *World) Renderer() Renderer { return w.renderer }

// Log returns the world logger.
func (w *World) Log() *zap.Logger { return w.log }

// Ticks returns the number of completed Step calls.
func (w *World) Ticks() uint64 { return w.ticks }

// Get returns the live entity for id, or nil.
func (w *World) Get(id EntityID) *Entity {
	if !w.pool.Alive(id) {
		return nil
	}
	e, _ := w.store.Get(id)
	return e
}

// Alive reports whether id refers to a live entity.
func (w *World) Alive(id EntityID) bool { return w.pool.Alive(id) }

// Len returns the number of live entities, excluding the root.
func (w *World) Len() int { return w.pool.Len() - 1 }

// Layer returns the members of layer i. The slice must not be modified.
func (w *World) Layer(i int) []EntityID {
	if i < 0 || i >= len(w.layers) {
		return nil
	}
	return w.layers[i]
}

// LayerCount returns the number of layer lists.
func (w *World) LayerCount() int { return len(w.layers) }

// Children returns the children of id in creation order.
func (w *World) Children(id EntityID) []EntityID {
	if e := w.Get(id); e != nil {
		return e.Children
	}
	return nil
}

// Create attaches a new entity under parent.
func (w *World) Create(parent EntityID, s Spec) (*Entity, error) {
	p := w.Get(parent)
	if p == nil {
		return nil, fmt.Errorf("create %s: %w", s.Kind, ErrNoParent)
	}
	if s.Layer < 0 {
		return nil, fmt.Errorf("create %s on layer %d: %w", s.Kind, s.Layer, ErrLayer)
	}
	e := &Entity{
		ID:         w.pool.Create(),
		Kind:       s.Kind,
		Parent:     p.ID,
		Layer:      s.Layer,
		InLayer:    !s.NoLayer,
		Collidable: s.Collidable,
		Transient:  s.Transient,
		Behavior:   s.Behavior,
		pos:        s.Pos,
		abs:        p.abs.Add(s.Pos),
	}
	w.store.Set(e.ID, e)
	p.Children = append(p.Children, e.ID)
	if e.InLayer {
		w.ensureLayer(e.Layer)
		w.layers[e.Layer] = append(w.layers[e.Layer], e.ID)
	}
	return e, nil
}

// MustCreate is Create for layouts built in code, where a missing parent is
// a programming error.
func (w *World) MustCreate(parent EntityID, s Spec) *Entity {
	e, err := w.Create(parent, s)
	if err != nil {
		panic(err)
	}
	return e
}

func (w *World) ensureLayer(i int) {
	for len(w.layers) <= i {
		w.layers = append(w.layers, nil)
	}
}

// SetPos moves e relative to its parent and re-derives the absolute
// position of e, its colliders and all descendants.
func (w *World) SetPos(e *Entity, pos geom.Vector) {
	e.pos = pos
	w.refreshAbs(e)
}

// Translate shifts e by delta.
func (w *World) Translate(e *Entity, delta geom.Vector) {
	w.SetPos(e, e.pos.Add(delta))
}

func (w *World) refreshAbs(e *Entity) {
	parent := w.Get(e.Parent)
	if parent == nil {
		panic(fmt.Errorf("entity %d: %w", e.ID, ErrNoParent))
	}
	e.abs = parent.abs.Add(e.pos)
	for _, c := range e.Colliders {
		c.setOrigin(e.abs)
	}
	for _, id := range e.Children {
		if child := w.Get(id); child != nil {
			w.refreshAbs(child)
		}
	}
}

// Reparent moves e under newParent keeping its absolute position, then
// marks it dirty. Layer membership is unaffected.
func (w *World) Reparent(e *Entity, newParent EntityID) error {
	np := w.Get(newParent)
	if np == nil {
		return fmt.Errorf("reparent %d: %w", e.ID, ErrNoParent)
	}
	for a := np; a != nil; a = w.Get(a.Parent) {
		if a.ID == e.ID {
			return fmt.Errorf("reparent %d under %d: %w", e.ID, newParent, ErrCycle)
		}
	}
	e.pos = e.abs.Sub(np.abs)
	if old := w.Get(e.Parent); old != nil {
		old.Children = removeID(old.Children, e.ID)
	}
	e.Parent = np.ID
	np.Children = append(np.Children, e.ID)
	w.refreshAbs(e)
	w.MarkDirty(e.ID)
	return nil
}

// ChangeLayer moves e to another layer list. Entities kept out of the
// partition only record the new index.
func (w *World) ChangeLayer(e *Entity, layer int) error {
	if layer < 0 {
		return fmt.Errorf("change layer of %d to %d: %w", e.ID, layer, ErrLayer)
	}
	e.blocker = ecs.Nil
	if !e.InLayer {
		e.Layer = layer
		return nil
	}
	if e.Layer < len(w.layers) {
		w.layers[e.Layer] = removeID(w.layers[e.Layer], e.ID)
	}
	e.Layer = layer
	w.ensureLayer(layer)
	w.layers[layer] = append(w.layers[layer], e.ID)
	return nil
}

// MarkDirty schedules id for the update phase. Repeated marks within a tick
// collapse into one update.
func (w *World) MarkDirty(id EntityID) {
	w.updates.add(id)
}

// Remove tears down id and everything it owns: render handles, children,
// colliders, triggers and animations, then detaches it from its layer and
// parent. Removing a dead or unknown ID is a no-op and returns false.
func (w *World) Remove(id EntityID) bool {
	e := w.Get(id)
	if e == nil || e == w.root || e.removed {
		return false
	}
	e.removed = true
	if h, ok := e.Behavior.(RemoveHook); ok {
		h.OnRemove(w, e)
	}
	for _, r := range append([]*RenderHandle(nil), e.Renders...) {
		w.removeRender(r)
	}
	for _, child := range append([]EntityID(nil), e.Children...) {
		w.Remove(child)
	}
	for _, c := range e.Colliders {
		c.orphan = true
	}
	e.Colliders = nil
	for _, t := range e.Triggers {
		w.removeTrigger(t)
	}
	e.Triggers = nil
	w.dropAnimations(e.ID)
	if e.InLayer && e.Layer < len(w.layers) {
		w.layers[e.Layer] = removeID(w.layers[e.Layer], e.ID)
	}
	if p := w.Get(e.Parent); p != nil {
		p.Children = removeID(p.Children, e.ID)
	}
	e.blocker = ecs.Nil
	w.store.Remove(e.ID)
	w.pool.Destroy(e.ID)
	return true
}

// Clear removes every entity but keeps the world itself.
func (w *World) Clear() {
	n := len(w.root.Children)
	for _, id := range append([]EntityID(nil), w.root.Children...) {
		w.Remove(id)
	}
	w.log.Debug("world cleared", zap.Int("top_level", n))
}

// Walk visits id and its descendants depth-first in child order.
// Returning false from fn skips the entity's subtree.
func (w *World) Walk(id EntityID, fn func(e *Entity) bool) {
	e := w.Get(id)
	if e == nil || !fn(e) {
		return
	}
	for _, child := range append([]EntityID(nil), e.Children...) {
		w.Walk(child, fn)
	}
}

// RaiseToTop brings all of e's render handles, then its children's, to the
// front of the draw order.
func (w *World) RaiseToTop(e *Entity) {
	for _, r := range e.Renders {
		w.renderer.Raise(r.handle)
	}
	for _, id := range e.Children {
		if c := w.Get(id); c != nil {
			w.RaiseToTop(c)
		}
	}
}

// LowerToBottom sends e's subtree to the back, children first so that e
// ends up beneath them.
func (w *World) LowerToBottom(e *Entity) {
	for _, id := range e.Children {
		if c := w.Get(id); c != nil {
			w.LowerToBottom(c)
		}
	}
	for _, r := range e.Renders {
		w.renderer.Lower(r.handle)
	}
}

// orderedSet deduplicates by identity while keeping insertion order.
type orderedSet[T comparable] struct {
	items []T
	seen  map[T]struct{}
}

func newOrderedSet[T comparable]() orderedSet[T] {
	return orderedSet[T]{seen: make(map[T]struct{})}
}

func (s *orderedSet[T]) add(v T) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

// take returns the current items and empties the set.
func (s *orderedSet[T]) take() []T {
	items := s.items
	s.items = nil
	for k := range s.seen {
		delete(s.seen, k)
	}
	return items
}

func (s *orderedSet[T]) len() int { return len(s.items) }
