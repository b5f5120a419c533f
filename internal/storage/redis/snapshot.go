// Package redis keeps session snapshots in Redis with a sliding TTL.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/storefront/internal/domain/session"
)

// DefaultTTL is how long an untouched snapshot survives.
const DefaultTTL = 30 * 24 * time.Hour

var _ session.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore implements session.SnapshotStore on a Redis client. Every
// Save refreshes the TTL of the key.
type SnapshotStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewSnapshotStore returns a store that expires keys after ttl. A zero ttl
// means DefaultTTL.
func NewSnapshotStore(client redis.UniversalClient, ttl time.Duration) *SnapshotStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SnapshotStore{client: client, ttl: ttl}
}

// Load returns the snapshot stored at key or session.ErrSnapshotNotFound.
func (s *SnapshotStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, snapshotKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get %q", key)
	}
	return data, nil
}

// Save overwrites the snapshot at key.
func (s *SnapshotStore) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, snapshotKey(key), data, s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set %q", key)
	}
	return nil
}

// Ping reports whether the server is reachable.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func snapshotKey(key string) string {
	return "snapshot:" + key
}
