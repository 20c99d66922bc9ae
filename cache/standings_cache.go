// Package cache holds Redis-backed read caches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"predmarket/models"
)

// StandingsCache caches leaderboard standings previews in Redis.
type StandingsCache struct {
	client *redis.Client
}

// NewStandingsCache creates a cache over the given Redis client.
func NewStandingsCache(client *redis.Client) *StandingsCache {
	return &StandingsCache{client: client}
}

// Get returns the cached standings for key, with a hit flag. A missing key
// is not an error.
func (c *StandingsCache) Get(ctx context.Context, key string) ([]*models.LeaderboardEntry, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read standings cache: %w", err)
	}

	var entries []*models.LeaderboardEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, false, fmt.Errorf("failed to decode standings cache: %w", err)
	}
	return entries, true, nil
}

// Set stores standings under key with the given TTL.
func (c *StandingsCache) Set(ctx context.Context, key string, entries []*models.LeaderboardEntry, ttl time.Duration) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode standings cache: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write standings cache: %w", err)
	}
	return nil
}
