package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/archprep/mockportal-backend/internal/config"
	"github.com/archprep/mockportal-backend/internal/model"
)

// Queue is the producer side of the persistence queues. Services push here;
// the workers drain asynchronously so request handlers never wait on
// Postgres writes.
type Queue struct {
	rdb *redis.Client
}

// NewQueue creates the queue producer.
func NewQueue(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// EnqueueAttempt pushes a finished attempt onto the persistence queue.
func (q *Queue) EnqueueAttempt(ctx context.Context, a model.TestAttempt) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, data).Err(); err != nil {
		return fmt.Errorf("enqueue attempt: %w", err)
	}
	return nil
}

// EnqueueSessionViolation pushes a login-sharing violation onto the
// persistence queue.
func (q *Queue) EnqueueSessionViolation(ctx context.Context, v model.SessionViolation) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal session violation: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data).Err(); err != nil {
		return fmt.Errorf("enqueue session violation: %w", err)
	}
	return nil
}
