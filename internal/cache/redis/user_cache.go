package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	domain "github.com/open-builders/giveaway-raffle/internal/domain/user"
)

// UserCache provides Redis-based caching for users.
type UserCache struct {
	client goredis.Cmdable
	ttl    time.Duration
}

func NewUserCache(client goredis.Cmdable, ttl time.Duration) *UserCache {
	return &UserCache{client: client, ttl: ttl}
}

func (c *UserCache) keyByID(id int64) string { return fmt.Sprintf("user:id:%d", id) }

// Set stores the user under its id key.
func (c *UserCache) Set(ctx context.Context, u *domain.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.keyByID(u.ID), b, c.ttl).Err()
}

// GetByID returns the cached user. A miss is reported as (nil, nil).
func (c *UserCache) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	v, err := c.client.Get(ctx, c.keyByID(id)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u domain.User
	if err := json.Unmarshal(v, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Invalidate removes the cached entry for the user.
func (c *UserCache) Invalidate(ctx context.Context, id int64) error {
	return c.client.Del(ctx, c.keyByID(id)).Err()
}
