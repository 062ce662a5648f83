// Package cache keeps encoded tool results keyed by the upload's content.
// Both tools are deterministic, so a hit is identical to recomputing.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"time"

	"github.com/ds124wfegd/imagetools/internal/entity"
	"github.com/redis/go-redis/v9"
)

type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
	Close() error
}

// Key derives the cache key for running tool with method over data.
func Key(data []byte, tool entity.Tool, method entity.Method) string {
	sum := md5.Sum(data)
	key := "result:" + string(tool) + ":" + hex.EncodeToString(sum[:])
	if method != "" {
		key += ":" + string(method)
	}
	return key
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) ResultCache {
	return &redisCache{client: client, ttl: ttl}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, data []byte) error {
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

// noopCache is used when Redis is disabled or unreachable.
type noopCache struct{}

func NewNoopCache() ResultCache {
	return noopCache{}
}

func (noopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (noopCache) Set(context.Context, string, []byte) error         { return nil }
func (noopCache) Close() error                                       { return nil }
