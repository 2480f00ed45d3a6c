package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimitConfig bounds per-user websocket connections and message
// sends per fixed window.
type RateLimitConfig struct {
	ConnectionLimit  int
	ConnectionWindow time.Duration
	MessageLimit     int
	MessageWindow    time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		ConnectionLimit:  10,
		ConnectionWindow: 60 * time.Second,
		MessageLimit:     60,
		MessageWindow:    60 * time.Second,
	}
}

type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config}
}

// AllowConnection checks whether a user may open another websocket.
func (r *RateLimiter) AllowConnection(ctx context.Context, userID string) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:connections", userID)
	return r.checkLimit(ctx, key, r.config.ConnectionLimit, r.config.ConnectionWindow)
}

// AllowMessage checks whether a user may send another message.
func (r *RateLimiter) AllowMessage(ctx context.Context, userID string) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:messages", userID)
	return r.checkLimit(ctx, key, r.config.MessageLimit, r.config.MessageWindow)
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}
