package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinsim/twinsim/internal/geom"
)

func newBlock(w *World, pos geom.Vector, layer int) *Entity {
	e := w.MustCreate(w.Root(), Spec{Kind: KindEntity, Pos: pos, Layer: layer, Collidable: true})
	w.AddBox(e, geom.Vector{}, geom.V(10, 10))
	return e
}

func TestTryMoveIntoOpenSpace(t *testing.T) {
	w := newTestWorld(t)
	e := newBlock(w, geom.V(0, 0), 0)
	newBlock(w, geom.V(100, 0), 0)

	assert.True(t, w.TryMove(e, geom.V(5, 0), nil))
	assert.Equal(t, geom.V(5, 0), e.Pos())
	assert.Equal(t, 1, w.DirtyCount())
}

func TestTryMoveBlockedRollsBack(t *testing.T) {
	w := newTestWorld(t)
	e := newBlock(w, geom.V(0, 0), 0)
	wall := newBlock(w, geom.V(15, 0), 0)

	assert.False(t, w.TryMove(e, geom.V(10, 0), nil))
	assert.Equal(t, geom.V(0, 0), e.Pos())
	assert.Equal(t, geom.V(0, 0), e.Abs())
	assert.Equal(t, wall.ID, e.Blocker())
	assert.Zero(t, w.DirtyCount())

	// second attempt is rejected by the cached blocker
	assert.False(t, w.TryMove(e, geom.V(10, 0), nil))
	assert.Equal(t, geom.V(0, 0), e.Pos())
}

func TestTryMoveIgnoresOtherLayers(t *testing.T) {
	w := newTestWorld(t)
	e := newBlock(w, geom.V(0, 0), 0)
	newBlock(w, geom.V(15, 0), 1)

	assert.True(t, w.TryMove(e, geom.V(10, 0), nil))
}

func TestTryMoveIgnoreSetAndList(t *testing.T) {
	w := newTestWorld(t)
	e := newBlock(w, geom.V(0, 0), 0)
	a := newBlock(w, geom.V(15, 0), 0)

	assert.True(t, w.TryMove(e, geom.V(10, 0), []EntityID{a.ID}))
	w.SetPos(e, geom.Vector{})

	e.Ignore = append(e.Ignore, a.ID)
	assert.True(t, w.TryMove(e, geom.V(10, 0), nil))
}

func TestTryMoveNonCollidable(t *testing.T) {
	w := newTestWorld(t)
	e := newBlock(w, geom.V(0, 0), 0)
	ghost := newBlock(w, geom.V(15, 0), 0)
	ghost.Collidable = false

	assert.True(t, w.TryMove(e, geom.V(10, 0), nil))
}

func TestBlockerClearedOnLayerChange(t *testing.T) {
	w := newTestWorld(t)
	e := newBlock(w, geom.V(0, 0), 0)
	newBlock(w, geom.V(15, 0), 0)
	require.False(t, w.TryMove(e, geom.V(10, 0), nil))

	require.NoError(t, w.ChangeLayer(e, 1))
	assert.Zero(t, e.Blocker())
	assert.True(t, w.TryMove(e, geom.V(10, 0), nil))
}

func TestBlockerRemovedIsSkipped(t *testing.T) {
	w := newTestWorld(t)
	e := newBlock(w, geom.V(0, 0), 0)
	wall := newBlock(w, geom.V(15, 0), 0)
	require.False(t, w.TryMove(e, geom.V(10, 0), nil))

	w.Remove(wall.ID)
	assert.True(t, w.TryMove(e, geom.V(10, 0), nil))
}

type alwaysOverlap struct{}

func (alwaysOverlap) Overlaps(*World, *Entity, *Entity) (bool, bool) { return true, true }

func TestOverlapHookOverridesGeometry(t *testing.T) {
	w := newTestWorld(t)
	e := newBlock(w, geom.V(0, 0), 0)
	far := newBlock(w, geom.V(500, 500), 0)
	far.Behavior = alwaysOverlap{}

	assert.True(t, w.Overlaps(far, e))
	assert.False(t, w.TryMove(e, geom.V(1, 0), nil))
}
