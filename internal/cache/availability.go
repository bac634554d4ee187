// Package cache holds a short-lived redis snapshot of availability
// listings for the display read path. It is never consulted by the
// admission path, which always re-checks inside its own transaction.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"mesabook/internal/metrics"
	"mesabook/internal/models"
)

// DefaultTTL keeps availability snapshots fresh enough for display.
const DefaultTTL = 30 * time.Second

// AvailabilityCache caches slot listings per (restaurant, date). All
// operations are best effort: redis failures are logged and treated
// as misses.
type AvailabilityCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zerolog.Logger
}

// New creates an availability cache. ttl <= 0 uses DefaultTTL.
func New(rdb *redis.Client, ttl time.Duration, log *zerolog.Logger) *AvailabilityCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &AvailabilityCache{rdb: rdb, ttl: ttl, log: log}
}

// One hash per (restaurant, date); fields keyed by party size so a
// single DEL invalidates every cached listing of the day.
func dayKey(restaurantID int64, date string) string {
	return fmt.Sprintf("availability:%d:%s", restaurantID, date)
}

// Get returns a cached listing, or ok=false on miss or redis failure.
func (c *AvailabilityCache) Get(ctx context.Context, restaurantID int64, date string, partySize int) ([]models.AvailabilityResult, bool) {
	raw, err := c.rdb.HGet(ctx, dayKey(restaurantID, date), fmt.Sprint(partySize)).Result()
	if err == redis.Nil {
		metrics.IncCacheLookup("miss")
		return nil, false
	}
	if err != nil {
		metrics.IncCacheLookup("error")
		c.log.Warn().Err(err).Msg("availability cache read failed")
		return nil, false
	}

	var results []models.AvailabilityResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		metrics.IncCacheLookup("error")
		return nil, false
	}
	metrics.IncCacheLookup("hit")
	return results, true
}

// Set stores a listing snapshot.
func (c *AvailabilityCache) Set(ctx context.Context, restaurantID int64, date string, partySize int, results []models.AvailabilityResult) {
	payload, err := json.Marshal(results)
	if err != nil {
		return
	}
	key := dayKey(restaurantID, date)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, fmt.Sprint(partySize), payload)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn().Err(err).Msg("availability cache write failed")
	}
}

// Invalidate drops every cached listing for the (restaurant, date)
// after an admission or status change.
func (c *AvailabilityCache) Invalidate(ctx context.Context, restaurantID int64, date string) {
	if err := c.rdb.Del(ctx, dayKey(restaurantID, date)).Err(); err != nil {
		c.log.Warn().Err(err).Msg("availability cache invalidation failed")
	}
}
