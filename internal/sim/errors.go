package sim

import "errors"

var (
	// ErrNoParent is returned when an entity is created under, or moved to,
	// a parent that does not exist.
	ErrNoParent = errors.New("parent entity does not exist")
	// ErrCycle is returned when reparenting would make an entity its own ancestor.
	ErrCycle = errors.New("reparent would create a cycle")
	// ErrLayer is returned for negative layer indices.
	ErrLayer = errors.New("invalid layer index")
	// ErrOrphan is the panic value for a collider, trigger or render handle
	// used after its owner was removed.
	ErrOrphan = errors.New("owner entity was removed")
)
