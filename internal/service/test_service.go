package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/archprep/mockportal-backend/internal/config"
	"github.com/archprep/mockportal-backend/internal/model"
)

// catalogTTL bounds how stale the cached catalog can get.
const catalogTTL = 5 * time.Minute

// TestStore is the test lookup surface TestService depends on.
type TestStore interface {
	ListSummaries(ctx context.Context) ([]model.TestSummary, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error)
}

// TestService serves the test catalog and full test payloads, with a Redis
// cache in front of Postgres so test starts do not hit the database.
type TestService struct {
	tests TestStore
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(tests TestStore, rdb *redis.Client, log zerolog.Logger) *TestService {
	return &TestService{
		tests: tests,
		rdb:   rdb,
		log:   log.With().Str("component", "test_service").Logger(),
	}
}

// Catalog returns the summary list of available tests.
func (s *TestService) Catalog(ctx context.Context) ([]model.TestSummary, error) {
	cached, err := s.rdb.Get(ctx, config.CacheKey.TestCatalogKey()).Bytes()
	if err == nil {
		var summaries []model.TestSummary
		if err := json.Unmarshal(cached, &summaries); err == nil {
			return summaries, nil
		}
		// Corrupt cache entry falls through to the database.
	}

	summaries, err := s.tests.ListSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}

	if data, err := json.Marshal(summaries); err == nil {
		if err := s.rdb.Set(ctx, config.CacheKey.TestCatalogKey(), data, catalogTTL).Err(); err != nil {
			s.log.Warn().Err(err).Msg("failed to cache test catalog")
		}
	}
	return summaries, nil
}

// GetTest returns a full test definition, cache first.
func (s *TestService) GetTest(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	cached, err := s.rdb.Get(ctx, config.CacheKey.TestPayloadKey(id.String())).Bytes()
	if err == nil {
		var def model.TestDefinition
		if err := json.Unmarshal(cached, &def); err == nil {
			return &def, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("test payload cache read failed")
	}

	def, err := s.tests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cachePayload(ctx, def)
	return def, nil
}

// Prewarm loads every test payload into Redis. Called at startup so the
// first wave of test starts is served from cache.
func (s *TestService) Prewarm(ctx context.Context) error {
	summaries, err := s.tests.ListSummaries(ctx)
	if err != nil {
		return fmt.Errorf("list tests for prewarm: %w", err)
	}

	for _, sum := range summaries {
		def, err := s.tests.GetByID(ctx, sum.ID)
		if err != nil {
			return fmt.Errorf("load test %s: %w", sum.ID, err)
		}
		s.cachePayload(ctx, def)
	}

	s.log.Info().Int("tests", len(summaries)).Msg("test payload cache prewarmed")
	return nil
}

// InvalidateCatalog drops the cached catalog after an admin edits tests.
func (s *TestService) InvalidateCatalog(ctx context.Context) {
	if err := s.rdb.Del(ctx, config.CacheKey.TestCatalogKey()).Err(); err != nil {
		s.log.Warn().Err(err).Msg("failed to invalidate catalog cache")
	}
}

// InvalidateTest drops a single test's pinned payload, e.g. after deletion.
func (s *TestService) InvalidateTest(ctx context.Context, id uuid.UUID) {
	if err := s.rdb.Del(ctx, config.CacheKey.TestPayloadKey(id.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("failed to invalidate test payload cache")
	}
}

func (s *TestService) cachePayload(ctx context.Context, def *model.TestDefinition) {
	data, err := json.Marshal(def)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, config.CacheKey.TestPayloadKey(def.ID.String()), data, 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("test_id", def.ID.String()).Msg("failed to cache test payload")
	}
}
