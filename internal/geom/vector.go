package geom

import (
	"fmt"
	"math"
	"strings"
)

// Vector is a 2D point or displacement in canvas space (y grows downwards).
type Vector struct {
	X float64
	Y float64
}

func V(x, y float64) Vector { return Vector{X: x, Y: y} }

func (v Vector) Add(o Vector) Vector { return Vector{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vector) Sub(o Vector) Vector { return Vector{X: v.X - o.X, Y: v.Y - o.Y} }
func (v Vector) Scale(f float64) Vector {
	return Vector{X: v.X * f, Y: v.Y * f}
}
func (v Vector) Dot(o Vector) float64 { return v.X*o.X + v.Y*o.Y }
func (v Vector) IsZero() bool         { return v.X == 0 && v.Y == 0 }

func (v Vector) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Norm returns the unit vector. The zero vector stays zero.
func (v Vector) Norm() Vector {
	l := v.Length()
	if l == 0 {
		return Vector{}
	}
	return Vector{X: v.X / l, Y: v.Y / l}
}

// Angle returns the direction in radians, east = 0, south = π/2.
func (v Vector) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}

// Rotate turns v by rad radians. Quarter turns are exact so that layouts
// built from orientations stay on integer coordinates.
func (v Vector) Rotate(rad float64) Vector {
	sin, cos := math.Sincos(rad)
	sin, cos = snap(sin), snap(cos)
	return Vector{
		X: v.X*cos - v.Y*sin,
		Y: v.X*sin + v.Y*cos,
	}
}

func snap(f float64) float64 {
	const eps = 1e-12
	switch {
	case math.Abs(f) < eps:
		return 0
	case math.Abs(f-1) < eps:
		return 1
	case math.Abs(f+1) < eps:
		return -1
	}
	return f
}

// NormBox turns a box given as origin v plus a possibly negative size into
// its top-left corner and positive size.
func (v Vector) NormBox(size Vector) (Vector, Vector) {
	far := v.Add(size)
	min := Vector{X: math.Min(v.X, far.X), Y: math.Min(v.Y, far.Y)}
	max := Vector{X: math.Max(v.X, far.X), Y: math.Max(v.Y, far.Y)}
	return min, max.Sub(min)
}

func (v Vector) String() string {
	return fmt.Sprintf("(%g, %g)", v.X, v.Y)
}

// Pair returns the two-element form used by layout files.
func (v Vector) Pair() []float64 { return []float64{v.X, v.Y} }

// Orientation names the four axis directions used by plant equipment.
type Orientation string

const (
	North Orientation = "north"
	South Orientation = "south"
	East  Orientation = "east"
	West  Orientation = "west"
)

// Vector returns the unit direction of o. Unknown names map to east.
func (o Orientation) Vector() Vector {
	switch o {
	case North:
		return Vector{X: 0, Y: -1}
	case South:
		return Vector{X: 0, Y: 1}
	case West:
		return Vector{X: -1, Y: 0}
	}
	return Vector{X: 1, Y: 0}
}

// Angle returns the rotation that turns an east-facing layout into o.
func (o Orientation) Angle() float64 { return o.Vector().Angle() }

// ParseOrientation accepts a direction name in any case.
func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(strings.ToLower(strings.TrimSpace(s))); o {
	case North, South, East, West:
		return o, nil
	}
	return "", fmt.Errorf("unknown orientation %q", s)
}

// OrientationOf maps an axis unit vector back to its name.
func OrientationOf(v Vector) (Orientation, bool) {
	for _, o := range []Orientation{East, South, West, North} {
		if o.Vector() == v {
			return o, true
		}
	}
	return "", false
}
