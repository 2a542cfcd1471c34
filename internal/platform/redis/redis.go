package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the shared connection behind locks, the user cache, the
// response cache and the command stream.
type Client struct {
	*redis.Client
}

// Options selects the Redis server.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Open connects and pings within a short timeout so a wrong address fails
// startup instead of the first request.
func Open(ctx context.Context, opts Options) (*Client, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("empty redis addr")
	}
	c := redis.NewClient(&redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return &Client{Client: c}, nil
}
