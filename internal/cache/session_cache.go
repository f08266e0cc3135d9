package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"chatsurvey/internal/model"
)

// SessionCache holds live runtime sessions between requests. A miss is not an
// error: Get returns nil, nil and the caller rebuilds from durable storage.
type SessionCache interface {
	Get(ctx context.Context, id string) (*model.RuntimeSession, error)
	Set(ctx context.Context, session *model.RuntimeSession) error
	Delete(ctx context.Context, id string) error
}

type redisSessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionCache shares sessions across processes. Entries expire ttl
// after their last write.
func NewRedisSessionCache(client *redis.Client, ttl time.Duration) SessionCache {
	return &redisSessionCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *redisSessionCache) key(id string) string {
	return "runtime:session:" + id
}

func (c *redisSessionCache) Set(ctx context.Context, session *model.RuntimeSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(session.SessionID), data, c.ttl).Err()
}

func (c *redisSessionCache) Get(ctx context.Context, id string) (*model.RuntimeSession, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session model.RuntimeSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *redisSessionCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
