package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/adpack/collector"
	"github.com/use-agent/adpack/exporter"
	"github.com/use-agent/adpack/models"
	"github.com/use-agent/adpack/store"
)

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when the browser connection is gone; everything else
// keeps working without it (state queries, in-flight exports).
func Health(col *collector.Collector, ex *exporter.Exporter, st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := st.State()
		browserState := col.State()

		status := "healthy"
		if browserState == "disconnected" {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:        status,
			Uptime:        col.Uptime().Round(time.Second).String(),
			BrowserState:  browserState,
			SelectedCount: len(snap.Order),
			ExportActive:  ex.Active(),
			Version:       "0.1.0",
		})
	}
}
