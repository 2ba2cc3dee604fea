package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is a snapshot of connection pool usage for the health endpoint.
type PoolStats struct {
	TotalConns    int32 `json:"totalConns"`
	IdleConns     int32 `json:"idleConns"`
	AcquiredConns int32 `json:"acquiredConns"`
	MaxConns      int32 `json:"maxConns"`
}

// HealthHandler reports liveness of the server and its database connection.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		overall := "ok"
		dbStatus := "ok"
		status := http.StatusOK
		if err := pool.Ping(ctx); err != nil {
			overall = "degraded"
			dbStatus = "unreachable"
			status = http.StatusServiceUnavailable
		}

		stats := pool.Stat()
		return c.JSON(status, map[string]interface{}{
			"status":   overall,
			"time":     time.Now().UTC().Format(time.RFC3339),
			"database": dbStatus,
			"pool": PoolStats{
				TotalConns:    stats.TotalConns(),
				IdleConns:     stats.IdleConns(),
				AcquiredConns: stats.AcquiredConns(),
				MaxConns:      stats.MaxConns(),
			},
		})
	}
}
