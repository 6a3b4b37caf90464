package persist

import (
	"errors"
	"fmt"
	"math"

	"github.com/twinsim/twinsim/internal/geom"
)

var (
	// ErrDeserialize is returned when a layout record cannot be rebuilt:
	// unknown type tag, malformed or missing kwargs.
	ErrDeserialize = errors.New("deserialization error")
	// ErrNotFound is returned by repositories for missing snapshots.
	ErrNotFound = errors.New("snapshot not found")
	// ErrNoCodec is returned when saving an entity whose kind has no codec.
	ErrNoCodec = errors.New("kind has no layout codec")
)

// Record is one node of a saved layout.
type Record struct {
	Type     string   `json:"type" yaml:"type"`
	Kwargs   Kwargs   `json:"kwargs,omitempty" yaml:"kwargs,omitempty"`
	Children []Record `json:"children" yaml:"children"`
}

// Count returns the number of records in the tree, r included.
func (r Record) Count() int {
	n := 1
	for _, c := range r.Children {
		n += c.Count()
	}
	return n
}

// Kwargs holds the named constructor parameters of one record. Values come
// back from JSON as float64 and from YAML as int or float64; the accessors
// accept both.
type Kwargs map[string]any

// Has reports whether name is set.
func (k Kwargs) Has(name string) bool {
	_, ok := k[name]
	return ok
}

// Vector reads a required [x, y] pair.
func (k Kwargs) Vector(name string) (geom.Vector, error) {
	v, ok := k[name]
	if !ok {
		return geom.Vector{}, fmt.Errorf("missing %q", name)
	}
	return toVector(name, v)
}

// VectorOr reads an optional [x, y] pair.
func (k Kwargs) VectorOr(name string, def geom.Vector) (geom.Vector, error) {
	v, ok := k[name]
	if !ok {
		return def, nil
	}
	return toVector(name, v)
}

func toVector(name string, v any) (geom.Vector, error) {
	var pair []float64
	switch t := v.(type) {
	case []float64:
		pair = t
	case []any:
		for _, x := range t {
			f, ok := toFloat(x)
			if !ok {
				return geom.Vector{}, fmt.Errorf("%q: %v is not a number", name, x)
			}
			pair = append(pair, f)
		}
	case geom.Vector:
		return t, nil
	default:
		return geom.Vector{}, fmt.Errorf("%q: want [x, y], got %T", name, v)
	}
	if len(pair) != 2 {
		return geom.Vector{}, fmt.Errorf("%q: want 2 elements, got %d", name, len(pair))
	}
	return geom.V(pair[0], pair[1]), nil
}

// Float reads an optional number.
func (k Kwargs) Float(name string, def float64) (float64, error) {
	v, ok := k[name]
	if !ok {
		return def, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("%q: want number, got %T", name, v)
	}
	return f, nil
}

// Int reads an optional integral number.
func (k Kwargs) Int(name string, def int) (int, error) {
	v, ok := k[name]
	if !ok {
		return def, nil
	}
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("%q: want integer, got %v", name, v)
	}
	return int(f), nil
}

// Bool reads an optional flag.
func (k Kwargs) Bool(name string, def bool) (bool, error) {
	v, ok := k[name]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%q: want bool, got %T", name, v)
	}
	return b, nil
}

// String reads an optional string.
func (k Kwargs) String(name string, def string) (string, error) {
	v, ok := k[name]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q: want string, got %T", name, v)
	}
	return s, nil
}

// Orientation reads an optional direction name.
func (k Kwargs) Orientation(name string, def geom.Orientation) (geom.Orientation, error) {
	v, ok := k[name]
	if !ok {
		return def, nil
	}
	switch t := v.(type) {
	case geom.Orientation:
		return t, nil
	case string:
		o, err := geom.ParseOrientation(t)
		if err != nil {
			return "", fmt.Errorf("%q: %w", name, err)
		}
		return o, nil
	}
	// a unit [x, y] pair is accepted too
	vec, err := toVector(name, v)
	if err != nil {
		return "", err
	}
	o, ok := geom.OrientationOf(vec)
	if !ok {
		return "", fmt.Errorf("%q: %v is not an axis direction", name, vec)
	}
	return o, nil
}

// Maps reads an optional list of objects.
func (k Kwargs) Maps(name string) ([]map[string]any, bool, error) {
	v, ok := k[name]
	if !ok {
		return nil, false, nil
	}
	switch t := v.(type) {
	case []map[string]any:
		return t, true, nil
	case []any:
		out := make([]map[string]any, 0, len(t))
		for i, x := range t {
			m, ok := x.(map[string]any)
			if !ok {
				return nil, true, fmt.Errorf("%q[%d]: want object, got %T", name, i, x)
			}
			out = append(out, m)
		}
		return out, true, nil
	}
	return nil, true, fmt.Errorf("%q: want list, got %T", name, v)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case uint64:
		return float64(t), true
	}
	return 0, false
}
