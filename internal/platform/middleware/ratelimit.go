package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/slotbook/scheduler/internal/platform/db"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL is how long an unused client limiter is kept.
	IdleTTL time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		BurstSize:         40,
		IdleTTL:           10 * time.Minute,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore holds one token bucket per client key.
type limiterStore struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	cfg     RateLimitConfig
	now     func() time.Time
}

func newLimiterStore(cfg RateLimitConfig) *limiterStore {
	return &limiterStore{clients: make(map[string]*clientLimiter), cfg: cfg, now: time.Now}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cl, ok := s.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.BurstSize)}
		s.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// sweep drops limiters idle for longer than IdleTTL.
func (s *limiterStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.cfg.IdleTTL)
	for k, cl := range s.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(s.clients, k)
		}
	}
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// clientKey scopes limits by business when one is resolved, then by IP.
func clientKey(c echo.Context) string {
	key := c.RealIP()
	if bid := db.BusinessFromContext(c.Request().Context()); bid > 0 {
		key = strconv.FormatInt(bid, 10) + ":" + key
	}
	return key
}

// RateLimit is an in-process token bucket limiter per client. Use
// RedisRateLimiter when several instances share the load.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRateLimitConfig().RequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = int(math.Ceil(cfg.RequestsPerSecond))
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig().IdleTTL
	}
	store := newLimiterStore(cfg)
	var requests atomic.Uint64
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if requests.Add(1)%1024 == 0 {
				store.sweep()
			}

			lim := store.get(clientKey(c))
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			if !lim.Allow() {
				retry := lim.Reserve()
				delay := retry.Delay()
				retry.Cancel()
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
