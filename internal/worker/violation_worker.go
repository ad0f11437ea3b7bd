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

// ViolationWorker persists login-sharing violations queued by the auth
// service. Volume is low, so it writes row-by-row without batching.
type ViolationWorker struct {
	devices *repository.DeviceSessionRepository
	rdb     *redis.Client
	log     zerolog.Logger
}

func NewViolationWorker(devices *repository.DeviceSessionRepository, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		devices: devices,
		rdb:     rdb,
		log:     log.With().Str("component", "violation_worker").Logger(),
	}
}

func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ViolationWorker started")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistViolationsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue
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

		var violation model.SessionViolation
		if err := json.Unmarshal([]byte(result[1]), &violation); err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed violation payload")
			continue
		}

		if err := w.devices.RecordViolation(ctx, &violation); err != nil {
			w.log.Error().Err(err).Int("user_id", violation.UserID).Msg("Insert failed, requeueing violation")
			data, _ := json.Marshal(violation)
			if err := w.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data).Err(); err != nil {
				w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue violation. Data loss occurred.")
			}
			time.Sleep(2 * time.Second)
		}
	}
}
