package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/adpack/collector"
	"github.com/use-agent/adpack/exporter"
	"github.com/use-agent/adpack/models"
)

// BulkExport returns a handler for POST /api/v1/export/bulk.
//
// The run executes in the background bound to the application context;
// the response is 202 with the run ID, and progress is observed through
// GET /api/v1/state.
func BulkExport(appCtx context.Context, ex *exporter.Exporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BulkExportRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondExportError(c, models.NewExportError(
					models.ErrCodeInvalidInput, err.Error(), nil))
				return
			}
		}
		req.Defaults()

		mode, err := models.ParseExportMode(req.Mode)
		if err != nil {
			respondExportError(c, err)
			return
		}

		runID, err := ex.Start(appCtx, mode)
		if err != nil {
			respondExportError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, models.ExportResponse{
			Success: true,
			RunID:   runID,
		})
	}
}

// AdExport returns a handler for POST /api/v1/export/ad: the synchronous
// single-card export paths.
func AdExport(col *collector.Collector, ex *exporter.Exporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AdExportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondExportError(c, models.NewExportError(
				models.ErrCodeInvalidInput, err.Error(), nil))
			return
		}

		rec, ok := col.Lookup(req.ID)
		if !ok {
			respondExportError(c, models.NewExportError(models.ErrCodeCardNotFound,
				"no card with library ID "+req.ID+" in the last scan", nil))
			return
		}

		ctx := c.Request.Context()
		var savedAs string
		var err error
		switch req.Variant {
		case "zip":
			savedAs, err = ex.DownloadZip(ctx, rec)
		case "adcopy":
			savedAs, err = ex.DownloadAdCopy(ctx, rec)
		case "raw":
			html, _ := col.CardHTML(req.ID)
			var saved []string
			saved, err = ex.DownloadRaw(ctx, rec, html)
			if len(saved) > 0 {
				savedAs = saved[0]
			}
		case "video":
			if !rec.HasVideo() {
				respondExportError(c, models.NewExportError(models.ErrCodeNoSuchAsset,
					"this ad has no video", nil))
				return
			}
			savedAs, err = ex.DownloadFile(ctx, rec.VideoURL, rec.FilePrefix()+"_video.mp4")
		case "image":
			if !rec.HasImage() {
				respondExportError(c, models.NewExportError(models.ErrCodeNoSuchAsset,
					"this ad has no image", nil))
				return
			}
			savedAs, err = ex.DownloadFile(ctx, rec.ImageURL, rec.FilePrefix()+"_image.jpg")
		}
		if err != nil {
			respondExportError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.ExportResponse{
			Success: true,
			SavedAs: savedAs,
		})
	}
}

func respondExportError(c *gin.Context, err error) {
	c.JSON(statusFor(err), models.ExportResponse{
		Success: false,
		Error:   models.AsDetail(err),
	})
}

// statusFor translates error codes to HTTP status codes.
func statusFor(err error) int {
	ee, ok := err.(*models.ExportError)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ee.Code {
	case models.ErrCodeInvalidInput, models.ErrCodeEmptySelection, models.ErrCodeNoSuchAsset:
		return http.StatusBadRequest // 400
	case models.ErrCodeExportActive:
		return http.StatusConflict // 409
	case models.ErrCodeCardNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeCourierTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeBrowserCrash, models.ErrCodeFetchFailed:
		return http.StatusBadGateway // 502
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
