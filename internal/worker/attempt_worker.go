package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/archprep/mockportal-backend/internal/config"
	"github.com/archprep/mockportal-backend/internal/model"
	"github.com/archprep/mockportal-backend/internal/repository"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// AttemptWorker drains finished attempts off the Redis queue and persists
// them to Postgres in batches.
type AttemptWorker struct {
	attempts *repository.AttemptRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

func NewAttemptWorker(attempts *repository.AttemptRepository, rdb *redis.Client, log zerolog.Logger) *AttemptWorker {
	return &AttemptWorker{
		attempts: attempts,
		rdb:      rdb,
		log:      log.With().Str("component", "attempt_worker").Logger(),
	}
}

func (w *AttemptWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AttemptWorker started")

	buffer := make([]model.TestAttempt, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlush = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistAttemptsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Queue empty, loop back to check flush timer
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var attempt model.TestAttempt
		if err := json.Unmarshal([]byte(result[1]), &attempt); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed attempt payload")
			continue
		}

		buffer = append(buffer, attempt)
	}
}

// flushSafe attempts bulk insert, then row-by-row fallback, then requeue.
func (w *AttemptWorker) flushSafe(ctx context.Context, batch []model.TestAttempt) {
	if _, err := w.attempts.CreateBatch(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *AttemptWorker) fallbackInsert(ctx context.Context, batch []model.TestAttempt) {
	requeueList := make([]model.TestAttempt, 0)

	for i := range batch {
		a := batch[i]
		if err := w.attempts.Create(ctx, &a); err != nil {
			w.log.Error().Err(err).Int("user_id", a.UserID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, a)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *AttemptWorker) requeue(ctx context.Context, items []model.TestAttempt) {
	pipe := w.rdb.Pipeline()
	for i := range items {
		data, _ := json.Marshal(items[i])
		pipe.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue attempts to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed attempts back to Redis")
	// Avoid thrashing if the DB is down hard.
	time.Sleep(2 * time.Second)
}

func (w *AttemptWorker) shutdown(buffer []model.TestAttempt) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
