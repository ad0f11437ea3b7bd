package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSnapshotKey returns the cache key for a student's saved test state.
// At most one snapshot exists per student; writes overwrite the prior one.
func (r *CacheKeyStruct) StudentSnapshotKey(userID int) string {
	return fmt.Sprintf("student:%d:snapshot", userID)
}

// TestPayloadKey returns the cache key for a test's question payload.
func (r *CacheKeyStruct) TestPayloadKey(testID string) string {
	return fmt.Sprintf("test:%s:payload", testID)
}

// TestCatalogKey returns the cache key for the published test catalog.
func (r *CacheKeyStruct) TestCatalogKey() string {
	return "test:catalog"
}

// ProctorEventsChannel returns the Redis PubSub channel for the live
// violation monitor.
func (r *CacheKeyStruct) ProctorEventsChannel() string {
	return "proctor:events"
}

var CacheKey = NewCacheKeyStruct()
