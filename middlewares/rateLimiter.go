package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request counter per client IP, kept in redis.
// client is resolved per request since redis may connect after the router is built;
// while it returns nil requests pass through.
type RateLimiter struct {
	client func() *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client func() *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) key(c *gin.Context) string {
	return "ratelimit:" + c.ClientIP()
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	client := rl.client()
	if client == nil {
		c.Next()
		return
	}
	ctx := c.Request.Context()
	key := rl.key(c)

	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		// redis trouble never blocks the api
		_ = c.Error(err)
		c.Next()
		return
	}
	if count == 1 {
		if err := client.Expire(ctx, key, rl.window).Err(); err != nil {
			_ = c.Error(err)
		}
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, utils.NewErrorResponse(utils.ErrorCodeRateLimited,
			fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds()))))
		return
	}

	c.Next()
}
