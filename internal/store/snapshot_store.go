package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/archprep/mockportal-backend/internal/config"
	"github.com/archprep/mockportal-backend/internal/exam"
)

// ErrSnapshotNotFound is returned by Load when no snapshot exists for the
// user.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists at most one in-progress attempt snapshot per user.
// Saving overwrites unconditionally.
type SnapshotStore interface {
	Save(ctx context.Context, userID int, snap exam.Snapshot) error
	Load(ctx context.Context, userID int) (*exam.Snapshot, error)
	Delete(ctx context.Context, userID int) error
}

// RedisSnapshotStore keeps snapshots as JSON values keyed per user.
type RedisSnapshotStore struct {
	rdb *redis.Client
}

func NewRedisSnapshotStore(rdb *redis.Client) *RedisSnapshotStore {
	return &RedisSnapshotStore{rdb: rdb}
}

func (s *RedisSnapshotStore) Save(ctx context.Context, userID int, snap exam.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.StudentSnapshotKey(userID), payload, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *RedisSnapshotStore) Load(ctx context.Context, userID int) (*exam.Snapshot, error) {
	payload, err := s.rdb.Get(ctx, config.CacheKey.StudentSnapshotKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap exam.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		// A corrupt payload is handled like a structurally invalid snapshot:
		// the caller discards it and starts fresh.
		return nil, fmt.Errorf("decode snapshot: %w", exam.ErrInvalidSnapshot)
	}
	return &snap, nil
}

func (s *RedisSnapshotStore) Delete(ctx context.Context, userID int) error {
	if err := s.rdb.Del(ctx, config.CacheKey.StudentSnapshotKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
