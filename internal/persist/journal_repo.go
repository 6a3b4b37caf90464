package persist

import (
	"context"
	"fmt"
)

type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// AppendJournal writes a batch of transitions in a single transaction.
func (r *JournalRepo) AppendJournal(ctx context.Context, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO handshake_journal (id, module, tick, from_state, to_state, order_no, msg, at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, e.Module, int64(e.Tick), e.From, e.To, e.Order, e.Msg, e.At,
		); err != nil {
			return fmt.Errorf("journal insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Journal returns the newest transitions of module, newest first.
func (r *JournalRepo) Journal(ctx context.Context, module string, limit int) ([]JournalEntry, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, module, tick, from_state, to_state, order_no, msg, at
		 FROM handshake_journal WHERE module = $1
		 ORDER BY at DESC LIMIT $2`, module, limit,
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
