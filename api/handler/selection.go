package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/adpack/collector"
	"github.com/use-agent/adpack/models"
	"github.com/use-agent/adpack/store"
)

// ToggleSelect returns a handler for POST /api/v1/select/toggle.
//
// The card is re-scanned and re-extracted before toggling, so the stored
// record reflects the page as it stands now, not as it stood at the last
// scan.
func ToggleSelect(col *collector.Collector, st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ToggleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondSelectError(c, models.NewExportError(
				models.ErrCodeInvalidInput, err.Error(), nil))
			return
		}

		if _, err := col.Scan(c.Request.Context()); err != nil {
			respondSelectError(c, err)
			return
		}
		rec, ok := col.Lookup(req.ID)
		if !ok {
			respondSelectError(c, models.NewExportError(models.ErrCodeCardNotFound,
				"no card with library ID "+req.ID+" on the current page", nil))
			return
		}

		st.ToggleSelection(rec.ID, rec)
		stateResponse(c, st)
	}
}

// SelectAll returns a handler for POST /api/v1/select/all. It scans the
// page and selects every card found, keeping positions of records that
// were already selected.
func SelectAll(col *collector.Collector, st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := col.Scan(c.Request.Context())
		if err != nil {
			respondSelectError(c, err)
			return
		}

		entries := make([]store.Entry, 0, len(records))
		for _, rec := range records {
			entries = append(entries, store.Entry{ID: rec.ID, Record: rec})
		}
		st.BulkSelect(entries)
		stateResponse(c, st)
	}
}

// ClearSelect returns a handler for POST /api/v1/select/clear.
func ClearSelect(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		st.Clear()
		stateResponse(c, st)
	}
}

func stateResponse(c *gin.Context, st *store.Store) {
	snap := st.State()
	c.JSON(http.StatusOK, models.StateResponse{
		SelectedIDs:   snap.Order,
		SelectedCount: len(snap.Order),
		Progress:      snap.Progress,
		PanelVisible:  snap.PanelVisible,
	})
}

func respondSelectError(c *gin.Context, err error) {
	c.JSON(statusFor(err), models.ExportResponse{
		Success: false,
		Error:   models.AsDetail(err),
	})
}
