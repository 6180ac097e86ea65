package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/use-agent/quotegrab/models"
	"github.com/use-agent/quotegrab/scraper"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports limiter utilisation and degrades status when > 80% of session
// slots are in use.
func Health(sc *scraper.Scraper) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sc.Stats()

		status := "healthy"
		if stats.Capacity > 0 && stats.InFlight > int(float64(stats.Capacity)*0.8) {
			status = "degraded"
		}

		resp := models.HealthResponse{
			Status:       status,
			Uptime:       sc.Uptime().Round(time.Second).String(),
			Engine:       sc.EngineName(),
			LimiterStats: stats,
			Version:      Version,
		}
		if vm, err := mem.VirtualMemory(); err == nil {
			resp.HostMemPct = vm.UsedPercent
		} else {
			slog.Debug("host memory unavailable", "error", err)
		}

		c.JSON(http.StatusOK, resp)
	}
}
