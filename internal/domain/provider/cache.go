package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache is the subset of *redis.Client the directory cache needs.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Directory answers the provider lookups the calendar views make on every
// request.
type Directory interface {
	ActiveProviderIDs(ctx context.Context, businessID int64) ([]int64, error)
	ProviderBelongs(ctx context.Context, businessID, providerID int64) (bool, error)
}

// CachedDirectory keeps each business's active provider ids in Redis.
// Ownership checks always go to the store. Redis errors fall back to the
// store and are logged.
type CachedDirectory struct {
	next   Directory
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedDirectory(next Directory, cache Cache, ttl time.Duration, logger zerolog.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedDirectory{next: next, cache: cache, ttl: ttl, logger: logger}
}

func activeKey(businessID int64) string {
	return "providers:active:" + strconv.FormatInt(businessID, 10)
}

func (d *CachedDirectory) ActiveProviderIDs(ctx context.Context, businessID int64) ([]int64, error) {
	key := activeKey(businessID)
	raw, err := d.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var ids []int64
		if jerr := json.Unmarshal(raw, &ids); jerr == nil {
			return ids, nil
		}
		d.logger.Warn().Str("key", key).Msg("discarding malformed provider cache entry")
	case !errors.Is(err, redis.Nil):
		d.logger.Warn().Err(err).Str("key", key).Msg("provider cache read failed")
	}

	ids, err := d.next.ActiveProviderIDs(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	data, _ := json.Marshal(ids)
	if err := d.cache.Set(ctx, key, data, d.ttl).Err(); err != nil {
		d.logger.Warn().Err(err).Str("key", key).Msg("provider cache write failed")
	}
	return ids, nil
}

func (d *CachedDirectory) ProviderBelongs(ctx context.Context, businessID, providerID int64) (bool, error) {
	return d.next.ProviderBelongs(ctx, businessID, providerID)
}

// Invalidate drops the cached id list after a provider is added or toggled.
func (d *CachedDirectory) Invalidate(ctx context.Context, businessID int64) {
	if err := d.cache.Del(ctx, activeKey(businessID)).Err(); err != nil {
		d.logger.Warn().Err(err).Int64("business_id", businessID).Msg("provider cache invalidation failed")
	}
}
