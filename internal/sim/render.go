package sim

import (
	"fmt"
	"sync/atomic"

	"github.com/twinsim/twinsim/internal/geom"
)

// ShapeType is the drawing primitive of a render handle.
type ShapeType uint8

const (
	ShapeRect ShapeType = iota
	ShapeOval
	ShapeLine
	ShapeText
	ShapeWidget
)

func (s ShapeType) String() string {
	switch s {
	case ShapeRect:
		return "rect"
	case ShapeOval:
		return "oval"
	case ShapeLine:
		return "line"
	case ShapeText:
		return "text"
	case ShapeWidget:
		return "widget"
	}
	return fmt.Sprintf("ShapeType(%d)", uint8(s))
}

// Shape describes a drawing primitive. Pos is the top-left corner in
// absolute coordinates when handed to a Renderer.
type Shape struct {
	Type   ShapeType
	Pos    geom.Vector
	Size   geom.Vector
	Fill   string
	Dash   []int
	Text   string
	Anchor string
	Widget string // control name for ShapeWidget
}

// Handle is the renderer's opaque reference to a drawn shape.
type Handle uint64

// Renderer is the drawing backend. The engine owns the handles it creates
// and deletes them when their entity is removed.
type Renderer interface {
	Create(s Shape) Handle
	Move(h Handle, pos geom.Vector)
	SetColor(h Handle, color string)
	Raise(h Handle)
	Lower(h Handle)
	Delete(h Handle)
}

// NopRenderer hands out handles and draws nothing.
type NopRenderer struct{}

var nopHandles atomic.Uint64

func (NopRenderer) Create(Shape) Handle      { return Handle(nopHandles.Add(1)) }
func (NopRenderer) Move(Handle, geom.Vector) {}
func (NopRenderer) SetColor(Handle, string)  {}
func (NopRenderer) Raise(Handle)             {}
func (NopRenderer) Lower(Handle)             {}
func (NopRenderer) Delete(Handle)            {}

// RenderHandle ties a renderer handle to its owning entity.
type RenderHandle struct {
	Owner  EntityID
	Type   ShapeType
	offset geom.Vector
	handle Handle
	color  string
	orphan bool
}

// Draw creates a shape relative to owner. Box-like shapes are normalized
// so that the stored offset is their top-left corner.
func (w *World) Draw(owner *Entity, s Shape) *RenderHandle {
	if s.Type != ShapeText && s.Type != ShapeWidget {
		s.Pos, s.Size = s.Pos.NormBox(s.Size)
	}
	r := &RenderHandle{
		Owner:  owner.ID,
		Type:   s.Type,
		offset: s.Pos,
		color:  s.Fill,
	}
	s.Pos = owner.abs.Add(s.Pos)
	r.handle = w.renderer.Create(s)
	owner.Renders = append(owner.Renders, r)
	return r
}

func (r *RenderHandle) mustLive() {
	if r.orphan {
		panic(fmt.Errorf("render handle of entity %d: %w", r.Owner, ErrOrphan))
	}
}

// Handle returns the backend handle.
func (r *RenderHandle) Handle() Handle { return r.handle }

// Offset returns the position relative to the owner.
func (r *RenderHandle) Offset() geom.Vector { return r.offset }

// SetOffset moves the shape relative to its owner. The move is drawn at
// the next render flush once Render is called.
func (r *RenderHandle) SetOffset(off geom.Vector) {
	r.mustLive()
	r.offset = off
}

// Color returns the last fill set on the shape.
func (r *RenderHandle) Color() string { return r.color }

// SetColor recolours the shape immediately.
func (r *RenderHandle) SetColor(w *World, color string) {
	r.mustLive()
	if r.color == color {
		return
	}
	r.color = color
	w.renderer.SetColor(r.handle, color)
}

// Render schedules r for the render flush.
func (w *World) Render(r *RenderHandle) {
	r.mustLive()
	w.renders.add(r)
}

func (w *World) removeRender(r *RenderHandle) {
	w.renderer.Delete(r.handle)
	r.orphan = true
	if e := w.Get(r.Owner); e != nil {
		for i, x := range e.Renders {
			if x == r {
				e.Renders = append(e.Renders[:i], e.Renders[i+1:]...)
				break
			}
		}
	}
}

// RenderTree schedules every render handle of e and its descendants.
func (w *World) RenderTree(e *Entity) {
	for _, r := range e.Renders {
		w.renders.add(r)
	}
	for _, id := range e.Children {
		if c := w.Get(id); c != nil {
			w.RenderTree(c)
		}
	}
}
