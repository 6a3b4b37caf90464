package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/twinsim/twinsim/internal/core/event"
	coresys "github.com/twinsim/twinsim/internal/core/system"
	"github.com/twinsim/twinsim/internal/persist"
	"github.com/twinsim/twinsim/internal/sim"
)

// storeTimeout bounds every store call made from the tick goroutine.
const storeTimeout = 5 * time.Second

// PersistenceSystem writes handshake transitions to the journal and
// periodically saves the layout as a snapshot. Phase 8 (Persist).
type PersistenceSystem struct {
	world     *sim.World
	codecs    *persist.Table
	store     persist.Store
	bus       *event.Bus
	name      string
	log       *zap.Logger
	tickCount int
	interval  int // auto-save every N ticks, 0 disables
	pending   []persist.JournalEntry
}

func NewPersistenceSystem(w *sim.World, codecs *persist.Table, store persist.Store, bus *event.Bus, name string, intervalTicks int, log *zap.Logger) *PersistenceSystem {
	s := &PersistenceSystem{
		world:    w,
		codecs:   codecs,
		store:    store,
		bus:      bus,
		name:     name,
		log:      log,
		interval: intervalTicks,
	}
	event.Subscribe(bus, s.onTransition)
	return s
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) onTransition(ev event.HandshakeTransition) {
	s.pending = append(s.pending, persist.NewJournalEntry(ev.Module, s.world.Ticks(), ev.From, ev.To, ev.Order, ev.Msg, ev.At))
}

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.flushJournal()

	if s.interval <= 0 {
		return
	}
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	if _, err := s.SaveNow(); err != nil {
		s.log.Error("layout autosave failed", zap.Error(err))
	}
}

// SaveNow flushes the journal and stores a snapshot of the whole layout
// immediately. Called on shutdown so no state is lost.
func (s *PersistenceSystem) SaveNow() (*persist.Snapshot, error) {
	s.flushJournal()

	rec, err := persist.Save(s.world, s.codecs, s.world.Root())
	if err != nil {
		return nil, err
	}
	snap := persist.NewSnapshot(s.name, s.world.Ticks(), rec)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	event.Emit(s.bus, event.SnapshotSaved{ID: snap.ID.String(), Name: snap.Name, Entities: snap.Entities})
	s.log.Debug("layout snapshot saved",
		zap.String("name", snap.Name),
		zap.Uint64("tick", snap.Tick),
		zap.Int("entities", snap.Entities))
	return snap, nil
}

// flushJournal writes queued transitions in one batch. On failure the
// batch is kept and retried next tick.
func (s *PersistenceSystem) flushJournal() {
	if len(s.pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.AppendJournal(ctx, s.pending); err != nil {
		s.log.Error("handshake journal write failed", zap.Int("entries", len(s.pending)), zap.Error(err))
		return
	}
	s.pending = s.pending[:0]
}

// Pending returns the number of transitions not yet written.
func (s *PersistenceSystem) Pending() int { return len(s.pending) }
