package render

import (
	"sync"

	"github.com/twinsim/twinsim/internal/geom"
	"github.com/twinsim/twinsim/internal/sim"
)

// Op kinds as they appear on the wire.
const (
	OpCreate = "create"
	OpMove   = "move"
	OpColor  = "color"
	OpRaise  = "raise"
	OpLower  = "lower"
	OpDelete = "delete"
)

// Op is one renderer call.
type Op struct {
	Op     string      `json:"op"`
	Handle sim.Handle  `json:"h"`
	Shape  *Shape      `json:"shape,omitempty"`
	Pos    *[2]float64 `json:"pos,omitempty"`
	Color  string      `json:"color,omitempty"`
}

// Shape is the wire form of sim.Shape.
type Shape struct {
	Type   string     `json:"type"`
	Pos    [2]float64 `json:"pos"`
	Size   [2]float64 `json:"size"`
	Fill   string     `json:"fill,omitempty"`
	Dash   []int      `json:"dash,omitempty"`
	Text   string     `json:"text,omitempty"`
	Anchor string     `json:"anchor,omitempty"`
	Widget string     `json:"widget,omitempty"`
}

func shapeOf(s sim.Shape) *Shape {
	return &Shape{
		Type:   s.Type.String(),
		Pos:    pair(s.Pos),
		Size:   pair(s.Size),
		Fill:   s.Fill,
		Dash:   s.Dash,
		Text:   s.Text,
		Anchor: s.Anchor,
		Widget: s.Widget,
	}
}

func pair(v geom.Vector) [2]float64 { return [2]float64{v.X, v.Y} }

// Item is a shape currently on the scene.
type Item struct {
	Handle sim.Handle `json:"h"`
	Shape  Shape      `json:"shape"`
}

// Recorder is a headless renderer. It keeps the current scene in draw
// order and, optionally, the list of calls since the last TakeOps.
// Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	next   sim.Handle
	items  map[sim.Handle]*Item
	order  []sim.Handle
	ops    []Op
	keep   bool
	counts map[string]int
}

var _ sim.Renderer = (*Recorder)(nil)

// NewRecorder returns an empty recorder. With keepOps unset only the scene
// is tracked.
func NewRecorder(keepOps bool) *Recorder {
	return &Recorder{
		items:  make(map[sim.Handle]*Item),
		keep:   keepOps,
		counts: make(map[string]int),
	}
}

func (r *Recorder) record(op Op) {
	r.counts[op.Op]++
	if r.keep {
		r.ops = append(r.ops, op)
	}
}

func (r *Recorder) Create(s sim.Shape) sim.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	h := r.next
	sh := shapeOf(s)
	r.items[h] = &Item{Handle: h, Shape: *sh}
	r.order = append(r.order, h)
	r.record(Op{Op: OpCreate, Handle: h, Shape: sh})
	return h
}

func (r *Recorder) Move(h sim.Handle, pos geom.Vector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := pair(pos)
	if it, ok := r.items[h]; ok {
		it.Shape.Pos = p
	}
	r.record(Op{Op: OpMove, Handle: h, Pos: &p})
}

func (r *Recorder) SetColor(h sim.Handle, color string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if it, ok := r.items[h]; ok {
		it.Shape.Fill = color
	}
	r.record(Op{Op: OpColor, Handle: h, Color: color})
}

func (r *Recorder) Raise(h sim.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unlink(h) {
		r.order = append(r.order, h)
	}
	r.record(Op{Op: OpRaise, Handle: h})
}

func (r *Recorder) Lower(h sim.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unlink(h) {
		r.order = append([]sim.Handle{h}, r.order...)
	}
	r.record(Op{Op: OpLower, Handle: h})
}

func (r *Recorder) Delete(h sim.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unlink(h)
	delete(r.items, h)
	r.record(Op{Op: OpDelete, Handle: h})
}

func (r *Recorder) unlink(h sim.Handle) bool {
	for i, x := range r.order {
		if x == h {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return true
		}
	}
	return false
}

// Scene returns a copy of every live shape, bottom first.
func (r *Recorder) Scene() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Item, 0, len(r.order))
	for _, h := range r.order {
		out = append(out, *r.items[h])
	}
	return out
}

// Get returns the shape behind h.
func (r *Recorder) Get(h sim.Handle) (Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[h]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// Len returns the number of live shapes.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Count returns how often op was called since the recorder was created.
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[op]
}

// TakeOps returns the recorded calls and starts a new list.
func (r *Recorder) TakeOps() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := r.ops
	r.ops = nil
	return ops
}
