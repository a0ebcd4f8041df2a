package authconfiginfra

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/secufusion/iamplane/pkg/iam/authconfig"
	"github.com/secufusion/iamplane/pkg/logx"
)

const cachePrefix = "iam:authconfig:"

// RedisCache is a read-through cache of resolved auth details. Failures are
// logged and treated as misses so the database stays authoritative.
type RedisCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisCache(rdb redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, host string) (*authconfig.AuthDetails, bool) {
	data, err := c.rdb.Get(ctx, cachePrefix+host).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logx.WithContext(ctx).WithError(err).WithField("host", host).Warn("authconfig cache read failed")
		return nil, false
	}

	var details authconfig.AuthDetails
	if err := json.Unmarshal(data, &details); err != nil {
		logx.WithContext(ctx).WithError(err).WithField("host", host).Warn("authconfig cache entry unreadable")
		return nil, false
	}
	return &details, true
}

func (c *RedisCache) Set(ctx context.Context, host string, details *authconfig.AuthDetails) {
	data, err := json.Marshal(details)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cachePrefix+host, data, c.ttl).Err(); err != nil {
		logx.WithContext(ctx).WithError(err).WithField("host", host).Warn("authconfig cache write failed")
	}
}

func (c *RedisCache) Evict(ctx context.Context, hosts ...string) {
	if len(hosts) == 0 {
		return
	}
	keys := make([]string, len(hosts))
	for i, h := range hosts {
		keys[i] = cachePrefix + h
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		logx.WithContext(ctx).WithError(err).WithField("hosts", hosts).Warn("authconfig cache evict failed")
	}
}
