package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/adpack/api/handler"
	"github.com/use-agent/adpack/api/middleware"
	"github.com/use-agent/adpack/collector"
	"github.com/use-agent/adpack/config"
	"github.com/use-agent/adpack/exporter"
	"github.com/use-agent/adpack/store"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
//
// appCtx is the application-lifetime context; background export runs are
// bound to it rather than to the triggering request.
func NewRouter(appCtx context.Context, col *collector.Collector, st *store.Store, ex *exporter.Exporter, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health endpoint, no auth required.
	v1.GET("/health", handler.Health(col, ex, st))

	// Protected group with auth and rate limiting.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Scan + state
	protected.POST("/scan", handler.Scan(col, cfg.Collector))
	protected.GET("/state", handler.State(st))

	// Selection
	protected.POST("/select/toggle", handler.ToggleSelect(col, st))
	protected.POST("/select/all", handler.SelectAll(col, st))
	protected.POST("/select/clear", handler.ClearSelect(st))

	// Export
	protected.POST("/export/bulk", handler.BulkExport(appCtx, ex))
	protected.POST("/export/ad", handler.AdExport(col, ex))

	return r
}
