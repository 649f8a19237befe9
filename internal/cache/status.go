// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// status.go provides a Valkey-backed cache of per-composition output
// status. Editors poll render progress at short intervals; the cache
// absorbs those reads so the database only sees a query when an output's
// state actually changed.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"framepress/internal/models"
)

const (
	// statusKeyPrefix is the Valkey key prefix for cached output sets.
	statusKeyPrefix = "status:"

	// DefaultStatusTTL bounds staleness if an invalidation is ever lost.
	DefaultStatusTTL = 30 * time.Second
)

// StatusCache caches a composition's output records in Valkey. Every
// render-state write invalidates the composition's entry, so polls
// between changes are served without touching Postgres. All methods are
// best effort: a cache error degrades to a miss, never to a failure.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatusCache creates a status cache backed by the given Valkey client.
func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	if ttl == 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusCache{client: client, ttl: ttl}
}

func statusKey(compositionID uuid.UUID) string {
	return statusKeyPrefix + compositionID.String()
}

// Get retrieves the cached output set for a composition. The second
// return value is false on miss or decode failure.
func (sc *StatusCache) Get(ctx context.Context, compositionID uuid.UUID) ([]models.Output, bool) {
	val, err := sc.client.Get(ctx, statusKey(compositionID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("status cache get error", "composition", compositionID, "error", err)
		return nil, false
	}

	var outputs []models.Output
	if err := json.Unmarshal(val, &outputs); err != nil {
		slog.Warn("status cache decode error", "composition", compositionID, "error", err)
		return nil, false
	}
	return outputs, true
}

// Set stores the output set for a composition with the configured TTL.
func (sc *StatusCache) Set(ctx context.Context, compositionID uuid.UUID, outputs []models.Output) {
	val, err := json.Marshal(outputs)
	if err != nil {
		slog.Warn("status cache encode error", "composition", compositionID, "error", err)
		return
	}
	if err := sc.client.Set(ctx, statusKey(compositionID), val, sc.ttl).Err(); err != nil {
		slog.Warn("status cache set error", "composition", compositionID, "error", err)
	}
}

// Invalidate removes a composition's cached output set. Called on every
// dispatch and on every render result that lands.
func (sc *StatusCache) Invalidate(ctx context.Context, compositionID uuid.UUID) {
	if err := sc.client.Del(ctx, statusKey(compositionID)).Err(); err != nil {
		slog.Warn("status cache invalidate error", "composition", compositionID, "error", err)
	}
}
