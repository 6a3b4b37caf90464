package sim

import (
	"fmt"

	"github.com/twinsim/twinsim/internal/geom"
)

// ShapeKind selects the collider geometry.
type ShapeKind uint8

const (
	ShapeBox ShapeKind = iota
	ShapeCircle
)

// Collider is a box or circle attached to one entity. Its absolute
// placement is the owner's absolute position plus the offset; the box
// bounds are cached until either changes.
type Collider struct {
	Owner  EntityID
	Shape  ShapeKind
	Size   geom.Vector // box only, always non-negative
	Radius float64     // circle only

	offset   geom.Vector
	origin   geom.Vector
	min, max geom.Vector
	boxValid bool
	orphan   bool
}

// AddBox attaches an axis-aligned box. A negative size extends the box to
// the left/top of offset; the stored offset is the normalized top-left.
func (w *World) AddBox(owner *Entity, offset, size geom.Vector) *Collider {
	offset, size = offset.NormBox(size)
	c := &Collider{
		Owner:  owner.ID,
		Shape:  ShapeBox,
		Size:   size,
		offset: offset,
		origin: owner.abs,
	}
	owner.Colliders = append(owner.Colliders, c)
	return c
}

// AddCircle attaches a circle centred at offset.
func (w *World) AddCircle(owner *Entity, offset geom.Vector, radius float64) *Collider {
	c := &Collider{
		Owner:  owner.ID,
		Shape:  ShapeCircle,
		Radius: radius,
		offset: offset,
		origin: owner.abs,
	}
	owner.Colliders = append(owner.Colliders, c)
	return c
}

func (c *Collider) mustLive() {
	if c.orphan {
		panic(fmt.Errorf("collider of entity %d: %w", c.Owner, ErrOrphan))
	}
}

// Offset returns the position relative to the owner.
func (c *Collider) Offset() geom.Vector { return c.offset }

// SetOffset moves the collider relative to its owner.
func (c *Collider) SetOffset(off geom.Vector) {
	c.mustLive()
	c.offset = off
	c.boxValid = false
}

func (c *Collider) setOrigin(abs geom.Vector) {
	c.origin = abs
	c.boxValid = false
}

// Abs returns the absolute position of the collider's anchor: the box's
// top-left corner or the circle's centre.
func (c *Collider) Abs() geom.Vector {
	c.mustLive()
	return c.origin.Add(c.offset)
}

// Box returns the cached absolute bounds of a box collider, or the
// bounding square of a circle.
func (c *Collider) Box() (geom.Vector, geom.Vector) {
	c.mustLive()
	if !c.boxValid {
		p := c.origin.Add(c.offset)
		if c.Shape == ShapeCircle {
			r := geom.V(c.Radius, c.Radius)
			c.min, c.max = p.Sub(r), p.Add(r)
		} else {
			c.min, c.max = p, p.Add(c.Size)
		}
		c.boxValid = true
	}
	return c.min, c.max
}

// Overlaps tests two colliders. Touching boxes count as overlapping;
// circles must intersect strictly.
func (c *Collider) Overlaps(o *Collider) bool {
	switch {
	case c.Shape == ShapeBox && o.Shape == ShapeBox:
		return boxBox(c, o)
	case c.Shape == ShapeCircle && o.Shape == ShapeCircle:
		return o.Abs().Sub(c.Abs()).Length() < c.Radius+o.Radius
	case c.Shape == ShapeCircle:
		return circleBox(c, o)
	default:
		return circleBox(o, c)
	}
}

func boxBox(a, b *Collider) bool {
	amin, amax := a.Box()
	bmin, bmax := b.Box()
	return !(amin.X > bmax.X || amax.X < bmin.X ||
		amin.Y > bmax.Y || amax.Y < bmin.Y)
}

// circleBox accumulates the squared distance from the circle centre to the
// nearest point of the box, axis by axis; a centre inside the box adds zero.
func circleBox(circle, box *Collider) bool {
	bmin, bmax := box.Box()
	p := circle.Abs()
	sq := axisDist(p.X, bmin.X, bmax.X) + axisDist(p.Y, bmin.Y, bmax.Y)
	return sq <= circle.Radius*circle.Radius
}

func axisDist(p, lo, hi float64) float64 {
	switch {
	case p < lo:
		return (lo - p) * (lo - p)
	case p > hi:
		return (p - hi) * (p - hi)
	}
	return 0
}
