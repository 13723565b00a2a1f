package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"coldchain/internal/directory/models"
	id "coldchain/pkg/domain"
	"coldchain/pkg/platform/sentinel"
)

const (
	roleCacheKeyPrefix = "dir:participant:"
	// negativeMarker caches "not registered" so repeated lookups for unknown
	// identities do not hammer Postgres.
	negativeMarker = "!"
)

// Backend is the store the cache sits in front of.
type Backend interface {
	CreateIfAbsent(ctx context.Context, p *models.Participant) error
	FindByIdentity(ctx context.Context, identity id.Identity) (*models.Participant, error)
	Delete(ctx context.Context, identity id.Identity) error
}

// RedisCache is a read-through cache decorator for directory lookups. Role
// checks run on every lifecycle operation, so they are by far the hottest
// read path. Mutations invalidate the cached entry.
type RedisCache struct {
	backend Backend
	client  *redis.Client
	ttl     time.Duration
}

func NewRedisCache(backend Backend, client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{backend: backend, client: client, ttl: ttl}
}

func (c *RedisCache) CreateIfAbsent(ctx context.Context, p *models.Participant) error {
	if err := c.backend.CreateIfAbsent(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx, p.Identity)
	return nil
}

func (c *RedisCache) FindByIdentity(ctx context.Context, identity id.Identity) (*models.Participant, error) {
	key := roleCacheKeyPrefix + identity.String()

	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if raw == negativeMarker {
			return nil, sentinel.ErrNotFound
		}
		var p models.Participant
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return &p, nil
		}
		// Corrupt cache entry: fall through to the backend.
	case !errors.Is(err, redis.Nil):
		// Redis being down must not take the directory down with it.
		return c.backend.FindByIdentity(ctx, identity)
	}

	p, err := c.backend.FindByIdentity(ctx, identity)
	if errors.Is(err, sentinel.ErrNotFound) {
		_ = c.client.Set(ctx, key, negativeMarker, c.ttl).Err()
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(p); err == nil {
		_ = c.client.Set(ctx, key, encoded, c.ttl).Err()
	}
	return p, nil
}

func (c *RedisCache) Delete(ctx context.Context, identity id.Identity) error {
	if err := c.backend.Delete(ctx, identity); err != nil {
		return err
	}
	c.invalidate(ctx, identity)
	return nil
}

func (c *RedisCache) invalidate(ctx context.Context, identity id.Identity) {
	_ = c.client.Del(ctx, roleCacheKeyPrefix+identity.String()).Err()
}
