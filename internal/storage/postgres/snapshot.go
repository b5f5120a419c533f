package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/session"
)

const (
	loadSnapshotSQL = `SELECT data FROM session_snapshots WHERE key = $1`

	saveSnapshotSQL = `INSERT INTO session_snapshots (key, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`

	deleteStaleSnapshotsSQL = `DELETE FROM session_snapshots WHERE updated_at < now() - make_interval(secs => $1)`
)

var _ session.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore keeps session snapshots in the session_snapshots table.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Load returns the snapshot stored at key or session.ErrSnapshotNotFound.
func (s *SnapshotStore) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, loadSnapshotSQL, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load snapshot %q", key)
	}
	return data, nil
}

// Save overwrites the snapshot at key.
func (s *SnapshotStore) Save(ctx context.Context, key string, data []byte) error {
	if _, err := s.pool.Exec(ctx, saveSnapshotSQL, key, data); err != nil {
		return errors.Wrapf(err, "save snapshot %q", key)
	}
	return nil
}

// DeleteOlderThan removes snapshots not written within maxAge and returns
// how many were removed.
func (s *SnapshotStore) DeleteOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, deleteStaleSnapshotsSQL, maxAge.Seconds())
	if err != nil {
		return 0, errors.Wrap(err, "delete stale snapshots")
	}
	return tag.RowsAffected(), nil
}
