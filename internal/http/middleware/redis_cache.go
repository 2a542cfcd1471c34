package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// RedisCache caches successful GET responses for a short TTL. Entries are
// keyed by the authenticated user and the full URL, so it must run after
// InitDataMiddleware.
func RedisCache(rdb redis.Cmdable, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet || ttl <= 0 {
			return c.Next()
		}

		key := "httpcache:" + strconv.FormatInt(UserID(c), 10) + ":" + string(c.Request().URI().FullURI())

		if bs, err := rdb.Get(c.UserContext(), key).Bytes(); err == nil && len(bs) > 0 {
			var entry cachedResponse
			if json.Unmarshal(bs, &entry) == nil {
				if entry.ContentType != "" {
					c.Set(fiber.HeaderContentType, entry.ContentType)
				}
				c.Set("X-Cache", "HIT")
				c.Status(entry.Status)
				return c.Send(entry.Body)
			}
		} else if err != nil && err != redis.Nil {
			log.Debug().Err(err).Str("key", key).Msg("response cache read failed")
		}

		if err := c.Next(); err != nil {
			return err
		}

		status := c.Response().StatusCode()
		if status >= 200 && status < 300 {
			ct := string(c.Response().Header.ContentType())
			body := c.Response().Body()
			entry := cachedResponse{Status: status, ContentType: ct, Body: append([]byte(nil), body...)}
			if payload, err := json.Marshal(entry); err == nil {
				_ = rdb.SetEx(context.Background(), key, payload, ttl).Err()
			}
		}
		c.Set("X-Cache", "MISS")
		return nil
	}
}
