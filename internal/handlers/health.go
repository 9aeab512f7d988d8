package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lensly/catalog-service/internal/database"
)

// PoolHealth reports connection pool pressure alongside liveness.
type PoolHealth struct {
	Total    int32 `json:"total"`
	Idle     int32 `json:"idle"`
	Acquired int32 `json:"acquired"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string      `json:"status"`
	Database string      `json:"database"`
	Pool     *PoolHealth `json:"pool,omitempty"`
}

// HealthCheck reports service liveness and the database connection
// state, with pool statistics when connected.
func HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:   "ok",
		Database: "not configured",
	}

	if database.Pool() != nil {
		if err := database.Status(c.Request.Context()); err != nil {
			response.Database = "disconnected"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
		response.Database = "connected"
		if stat := database.Stats(); stat != nil {
			response.Pool = &PoolHealth{
				Total:    stat.TotalConns(),
				Idle:     stat.IdleConns(),
				Acquired: stat.AcquiredConns(),
			}
		}
	}

	c.JSON(http.StatusOK, response)
}
