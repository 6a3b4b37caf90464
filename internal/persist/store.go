package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/twinsim/twinsim/internal/config"
)

// Snapshot is a stored copy of the world's layout.
type Snapshot struct {
	ID        uuid.UUID
	Name      string
	Tick      uint64
	Entities  int
	Layout    Record
	CreatedAt time.Time
}

// SnapshotInfo is a Snapshot without its layout, for listings.
type SnapshotInfo struct {
	ID        uuid.UUID
	Name      string
	Tick      uint64
	Entities  int
	CreatedAt time.Time
}

// JournalEntry records one sim-side handshake transition.
type JournalEntry struct {
	ID     uuid.UUID
	Module string
	Tick   uint64
	From   string
	To     string
	Order  int32
	Msg    int32
	At     time.Time
}

// Store keeps layout snapshots and the handshake journal.
type Store interface {
	SaveSnapshot(ctx context.Context, s *Snapshot) error
	// LatestSnapshot returns ErrNotFound when name has no snapshot.
	LatestSnapshot(ctx context.Context, name string) (*Snapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]SnapshotInfo, error)
	AppendJournal(ctx context.Context, entries []JournalEntry) error
	Journal(ctx context.Context, module string, limit int) ([]JournalEntry, error)
	Close() error
}

// NewSnapshot stamps a layout for storage.
func NewSnapshot(name string, tick uint64, layout Record) *Snapshot {
	return &Snapshot{
		ID:        uuid.Must(uuid.NewV7()),
		Name:      name,
		Tick:      tick,
		Entities:  layout.Count() - 1,
		Layout:    layout,
		CreatedAt: time.Now().UTC(),
	}
}

// NewJournalEntry stamps a handshake transition for the journal.
func NewJournalEntry(module string, tick uint64, from, to string, order, msg int32, at time.Time) JournalEntry {
	return JournalEntry{
		ID:     uuid.Must(uuid.NewV7()),
		Module: module,
		Tick:   tick,
		From:   from,
		To:     to,
		Order:  order,
		Msg:    msg,
		At:     at,
	}
}

// Open connects the store selected by cfg.Driver and applies pending
// migrations. Driver "none" returns a nil Store.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "none", "":
		return nil, nil
	case "postgres":
		db, err := NewDB(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if err := RunMigrations(ctx, db.Pool); err != nil {
			db.Close()
			return nil, err
		}
		return NewPGStore(db), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.DSN)
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func encodeLayout(rec Record) ([]byte, error) {
	data, err := Marshal(FormatJSON, rec)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot layout: %w", err)
	}
	return data, nil
}

func decodeLayout(data []byte) (Record, error) {
	return Unmarshal(FormatJSON, data)
}
