package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// HealthReport is the body of GET /health/db.
type HealthReport struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Pool   *PoolStats      `json:"pool"`
	Schema map[string]bool `json:"schema,omitempty"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// NewHealthReport builds the health body from a ping result and the schema
// check. A missing table or index makes the database unhealthy, since every
// patient operation would fail against it.
func NewHealthReport(stats *PoolStats, pingErr error, schema []SchemaObject) *HealthReport {
	report := &HealthReport{Status: "healthy", Pool: stats}
	if pingErr != nil {
		stats.Healthy = false
		report.Status = "unhealthy"
		report.Error = pingErr.Error()
		return report
	}

	report.Schema = make(map[string]bool, len(schema))
	for _, obj := range schema {
		report.Schema[obj.Name] = obj.Present
		if !obj.Present {
			report.Status = "unhealthy"
			report.Error = "schema incomplete: missing " + obj.Kind + " " + obj.Name
		}
	}
	return report
}

// HealthHandler returns a handler for the database health check endpoint.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		var schema []SchemaObject
		err := pool.Ping(ctx)
		if err == nil {
			schema, err = SchemaStatus(ctx, pool)
		}

		report := NewHealthReport(GetPoolStats(pool), err, schema)
		if report.Status != "healthy" {
			return c.JSON(http.StatusServiceUnavailable, report)
		}
		return c.JSON(http.StatusOK, report)
	}
}
