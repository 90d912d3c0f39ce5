package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisRateLimiter is a fixed-window limiter shared by every instance that
// points at the same Redis.
type RedisRateLimiter struct {
	rdb      redis.Scripter
	limit    int
	window   time.Duration
	prefix   string
	failOpen bool
	logger   zerolog.Logger
}

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

func NewRedisRateLimiter(rdb redis.Scripter, limit int, window time.Duration, prefix string, failOpen bool, logger zerolog.Logger) *RedisRateLimiter {
	if limit <= 0 {
		limit = 600
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisRateLimiter{rdb: rdb, limit: limit, window: window, prefix: prefix, failOpen: failOpen, logger: logger}
}

func (rl *RedisRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			count, err := rl.incr(c.Request().Context(), rl.prefix+":"+clientKey(c))
			if err != nil {
				rl.logger.Warn().Err(err).Str("request_id", RequestIDFrom(c)).Msg("redis rate limiter error")
				if rl.failOpen {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusServiceUnavailable, "rate limiter unavailable")
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			remaining := int64(rl.limit) - count
			if remaining < 0 {
				remaining = 0
			}
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if count > int64(rl.limit) {
				h.Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

func (rl *RedisRateLimiter) incr(ctx context.Context, key string) (int64, error) {
	res, err := fixedWindowScript.Run(ctx, rl.rdb, []string{key}, rl.window.Milliseconds()).Result()
	if err != nil {
		return 0, err
	}
	switch v := res.(type) {
	case int64:
		return v, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected redis script result type %T", res)
	}
}
