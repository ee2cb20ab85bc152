// Package locations caches the enumerated location list per portal
// username. Enumerating locations costs a full chain-picker crawl, so the
// list is kept warm between jobs.
package locations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stretchops/studio-automation/pkg/logging"
)

// ErrNotCached indicates no location list is cached for the username.
var ErrNotCached = errors.New("locations: not cached")

const defaultTTL = 6 * time.Hour

// Cache stores location lists in Redis with a TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCache builds a Cache. A zero ttl uses the 6 hour default.
func NewCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *Cache {
	if client == nil {
		panic("locations: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(portalUsername string) string {
	return "portal:locations:" + portalUsername
}

// Put stores the location list for a portal username.
func (c *Cache) Put(ctx context.Context, portalUsername string, locations []string) error {
	if portalUsername == "" {
		return errors.New("locations: portal username required")
	}
	payload, err := json.Marshal(locations)
	if err != nil {
		return fmt.Errorf("locations: encode list: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(portalUsername), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("locations: cache write: %w", err)
	}
	return nil
}

// Get returns the cached list or ErrNotCached.
func (c *Cache) Get(ctx context.Context, portalUsername string) ([]string, error) {
	payload, err := c.client.Get(ctx, cacheKey(portalUsername)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("locations: cache read: %w", err)
	}

	var locations []string
	if err := json.Unmarshal(payload, &locations); err != nil {
		// A corrupt entry is treated as a miss; the next Put heals it.
		c.logger.Warn("discarding corrupt location cache entry", "username", portalUsername)
		return nil, ErrNotCached
	}
	return locations, nil
}

// Invalidate drops the cached list, used when a credential changes.
func (c *Cache) Invalidate(ctx context.Context, portalUsername string) error {
	if err := c.client.Del(ctx, cacheKey(portalUsername)).Err(); err != nil {
		return fmt.Errorf("locations: cache invalidate: %w", err)
	}
	return nil
}
