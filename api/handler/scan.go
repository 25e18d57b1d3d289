package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/adpack/collector"
	"github.com/use-agent/adpack/config"
	"github.com/use-agent/adpack/models"
	"github.com/use-agent/adpack/store"
)

// Scan returns a handler for POST /api/v1/scan.
//
// Cards are re-extracted on every scan; nothing about the page is cached
// between calls.
func Scan(col *collector.Collector, colCfg config.CollectorConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScanRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, models.ScanResponse{
					Success: false,
					Error: &models.ErrorDetail{
						Code:    models.ErrCodeInvalidInput,
						Message: err.Error(),
					},
				})
				return
			}
		}

		ctx := c.Request.Context()
		if req.Navigate {
			if err := col.Navigate(ctx, colCfg.LibraryURL); err != nil {
				respondScanError(c, err)
				return
			}
		}

		records, err := col.Scan(ctx)
		if err != nil {
			respondScanError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.ScanResponse{
			Success: true,
			Records: records,
			Total:   len(records),
		})
	}
}

func respondScanError(c *gin.Context, err error) {
	c.JSON(statusFor(err), models.ScanResponse{
		Success: false,
		Error:   models.AsDetail(err),
	})
}

// State returns a handler for GET /api/v1/state.
func State(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := st.State()
		c.JSON(http.StatusOK, models.StateResponse{
			SelectedIDs:   snap.Order,
			SelectedCount: len(snap.Order),
			Progress:      snap.Progress,
			PanelVisible:  snap.PanelVisible,
		})
	}
}
