package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

func (r *SnapshotRepo) SaveSnapshot(ctx context.Context, s *Snapshot) error {
	layout, err := encodeLayout(s.Layout)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO layout_snapshots (id, name, tick, entities, layout, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Name, int64(s.Tick), s.Entities, layout, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot %s: %w", s.Name, err)
	}
	return nil
}

func (r *SnapshotRepo) LatestSnapshot(ctx context.Context, name string) (*Snapshot, error) {
	s := &Snapshot{}
	var tick int64
	var layout []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, name, tick, entities, layout, created_at
		 FROM layout_snapshots WHERE name = $1
		 ORDER BY created_at DESC LIMIT 1`, name,
	).Scan(&s.ID, &s.Name, &tick, &s.Entities, &layout, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", name, err)
	}
	s.Tick = uint64(tick)
	if s.Layout, err = decodeLayout(layout); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SnapshotRepo) ListSnapshots(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, name, tick, entities, created_at
		 FROM layout_snapshots ORDER BY created_at DESC LIMIT $1`, limit,
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
