package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the embedded Store for single-machine setups.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and migrates it.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite %q: %w", pragma, err)
		}
	}
	if err := RunSQLiteMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	layout, err := encodeLayout(snap.Layout)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO layout_snapshots (id, name, tick, entities, layout, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID.String(), snap.Name, int64(snap.Tick), snap.Entities, string(layout), snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot %s: %w", snap.Name, err)
	}
	return nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, name string) (*Snapshot, error) {
	snap := &Snapshot{}
	var tick int64
	var layout string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, tick, entities, layout, created_at
		 FROM layout_snapshots WHERE name = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, name,
	).Scan(&snap.ID, &snap.Name, &tick, &snap.Entities, &layout, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", name, err)
	}
	snap.Tick = uint64(tick)
	if snap.Layout, err = decodeLayout([]byte(layout)); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, tick, entities, created_at
		 FROM layout_snapshots ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var tick int64
		if err := rows.Scan(&info.ID, &info.Name, &tick, &info.Entities, &info.CreatedAt); err != nil {
			return nil, err
		}
		info.Tick = uint64(tick)
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendJournal(ctx context.Context, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO handshake_journal (id, module, tick, from_state, to_state, order_no, msg, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("journal prepare: %w", err)
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.ID.String(), e.Module, int64(e.Tick), e.From, e.To, e.Order, e.Msg, e.At,
		); err != nil {
			return fmt.Errorf("journal insert: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Journal(ctx context.Context, module string, limit int) ([]JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, module, tick, from_state, to_state, order_no, msg, at
		 FROM handshake_journal WHERE module = ?
		 ORDER BY at DESC, rowid DESC LIMIT ?`, module, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var tick int64
		if err := rows.Scan(&e.ID, &e.Module, &tick, &e.From, &e.To, &e.Order, &e.Msg, &e.At); err != nil {
			return nil, err
		}
		e.Tick = uint64(tick)
		out = append(out, e)
	}
	return out, rows.Err()
}
