package sites

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sitehive/sitehive-backend/internal/projects"
)

// Evictor invalidates cached site lookups after a project mutates. The nop
// implementation backs deployments running without redis.
type Evictor interface {
	Evict(ctx context.Context, username, projectName string)
}

type NopEvictor struct{}

func (NopEvictor) Evict(context.Context, string, string) {}

const siteCacheKeyPrefix = "site:lookup:"

// SiteCache is a read-through cache in front of a Lookup. Site serving is by
// far the hottest path and every request otherwise costs a two-table join;
// records are tiny, so a short TTL plus explicit eviction on mutation keeps
// the cache honest. Cache failures degrade to the wrapped Lookup.
type SiteCache struct {
	next Lookup
	rdb  *redis.Client
	ttl  time.Duration
	log  *slog.Logger
}

func NewSiteCache(next Lookup, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *SiteCache {
	return &SiteCache{next: next, rdb: rdb, ttl: ttl, log: log}
}

func (c *SiteCache) SiteLookup(ctx context.Context, username, projectName string) (*projects.SiteRecord, error) {
	key := cacheKey(username, projectName)

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var rec projects.SiteRecord
		if jsonErr := json.Unmarshal(data, &rec); jsonErr == nil {
			return &rec, nil
		}
		// Unreadable payload: fall through and overwrite it.
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("site cache get", "key", key, "err", err)
	}

	rec, err := c.next.SiteLookup(ctx, username, projectName)
	if err != nil {
		return nil, err
	}

	if payload, jsonErr := json.Marshal(rec); jsonErr == nil {
		if setErr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.log.Warn("site cache set", "key", key, "err", setErr)
		}
	}
	return rec, nil
}

func (c *SiteCache) AddVisit(ctx context.Context, projectID string) error {
	return c.next.AddVisit(ctx, projectID)
}

func (c *SiteCache) Evict(ctx context.Context, username, projectName string) {
	if err := c.rdb.Del(ctx, cacheKey(username, projectName)).Err(); err != nil {
		c.log.Warn("site cache evict", "err", err)
	}
}

func cacheKey(username, projectName string) string {
	return siteCacheKeyPrefix + username + ":" + projectName
}
