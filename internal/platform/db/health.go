package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type PoolStats struct {
	TotalConns      int32  `json:"totalConns"`
	IdleConns       int32  `json:"idleConns"`
	AcquiredConns   int32  `json:"acquiredConns"`
	MaxConns        int32  `json:"maxConns"`
	AcquireCount    int64  `json:"acquireCount"`
	AcquireDuration string `json:"acquireDuration"`
}

func GetPoolStats(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// ReadinessHandler runs every check under a shared timeout and reports 503 if
// any fails. Pool statistics are attached when pool is non-nil.
func ReadinessHandler(pool *pgxpool.Pool, checks ...Check) echo.HandlerFunc {
	if pool != nil {
		checks = append([]Check{{Name: "postgres", Fn: pool.Ping}}, checks...)
	}
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, chk := range checks {
			if err := chk.Fn(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[chk.Name] = err.Error()
				continue
			}
			results[chk.Name] = "ok"
		}

		body := map[string]interface{}{"checks": results}
		if status == http.StatusOK {
			body["status"] = "healthy"
		} else {
			body["status"] = "unhealthy"
		}
		if pool != nil {
			body["pool"] = GetPoolStats(pool)
		}
		return c.JSON(status, body)
	}
}
