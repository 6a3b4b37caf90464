package persist

import (
	"fmt"

	"github.com/twinsim/twinsim/internal/sim"
)

// WorldTag is the type tag of a whole-world document.
const WorldTag = "World"

// Codec saves and rebuilds one entity kind.
type Codec struct {
	// Params returns the constructor parameters the entity was built with.
	Params func(e *sim.Entity) Kwargs
	// Build constructs the entity under parent. It must not leave anything
	// behind in the world when it returns an error.
	Build func(w *sim.World, parent sim.EntityID, kw Kwargs) (*sim.Entity, error)
}

// Table maps every kind to its codec. Kinds without a codec are never
// saved and cannot be loaded.
type Table [sim.KindCount]*Codec

// Save walks the tree under from depth-first and returns its record.
// Transient entities and their subtrees are skipped.
func Save(w *sim.World, t *Table, from sim.EntityID) (Record, error) {
	e := w.Get(from)
	if e == nil {
		return Record{}, fmt.Errorf("save %d: %w", from, sim.ErrNoParent)
	}
	if from == w.Root() {
		rec := Record{Type: WorldTag, Children: []Record{}}
		if err := saveChildren(w, t, e, &rec); err != nil {
			return Record{}, err
		}
		return rec, nil
	}
	return saveOne(w, t, e)
}

func saveOne(w *sim.World, t *Table, e *sim.Entity) (Record, error) {
	c := t[e.Kind]
	if c == nil || c.Params == nil {
		return Record{}, fmt.Errorf("save %s %d: %w", e.Kind, e.ID, ErrNoCodec)
	}
	rec := Record{Type: e.Kind.String(), Kwargs: c.Params(e), Children: []Record{}}
	if err := saveChildren(w, t, e, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func saveChildren(w *sim.World, t *Table, e *sim.Entity, rec *Record) error {
	for _, id := range e.Children {
		child := w.Get(id)
		if child == nil || child.Transient {
			continue
		}
		cr, err := saveOne(w, t, child)
		if err != nil {
			return err
		}
		rec.Children = append(rec.Children, cr)
	}
	return nil
}

// Load rebuilds rec under parent. A World record loads its children. After
// the whole tree is built every loaded entity is marked dirty once so the
// first tick draws it. Load is all or nothing: on error everything it built
// is removed again and the error wraps ErrDeserialize.
func Load(w *sim.World, t *Table, parent sim.EntityID, rec Record) ([]sim.EntityID, error) {
	var loaded []sim.EntityID
	var built []sim.EntityID // top-level entities, for rollback

	recs, path := []Record{rec}, ""
	if rec.Type == WorldTag {
		recs, path = rec.Children, WorldTag
	}
	for i, r := range recs {
		e, err := load(w, t, parent, r, fmt.Sprintf("%s/%d", path, i), &loaded)
		if e != nil {
			built = append(built, e.ID)
		}
		if err != nil {
			for _, id := range built {
				w.Remove(id)
			}
			return nil, err
		}
	}
	for _, id := range loaded {
		w.MarkDirty(id)
	}
	return loaded, nil
}

func load(w *sim.World, t *Table, parent sim.EntityID, r Record, path string, loaded *[]sim.EntityID) (*sim.Entity, error) {
	path = fmt.Sprintf("%s(%s)", path, r.Type)
	kind, ok := sim.ParseKind(r.Type)
	if !ok || t[kind] == nil || t[kind].Build == nil {
		return nil, fmt.Errorf("%w: %s: unknown type %q", ErrDeserialize, path, r.Type)
	}
	kw := r.Kwargs
	if kw == nil {
		kw = Kwargs{}
	}
	e, err := t[kind].Build(w, parent, kw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeserialize, path, err)
	}
	*loaded = append(*loaded, e.ID)
	for i, c := range r.Children {
		if _, err := load(w, t, e.ID, c, fmt.Sprintf("%s/%d", path, i), loaded); err != nil {
			return e, err
		}
	}
	return e, nil
}
