package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lensly/catalog-service/internal/observability"
)

// defaultObservabilityWindow is used when the caller omits the window.
const defaultObservabilityWindow = 7 * 24 * time.Hour

// ObservabilityRequest represents query parameters for the history feed
type ObservabilityRequest struct {
	Vendor string `form:"vendor" binding:"required"`
	Start  string `form:"start"`
	End    string `form:"end"`
	Limit  int    `form:"limit" binding:"min=0,max=200"`
	Cursor string `form:"cursor"`
}

// Observability returns the intermixed run/alert history for a vendor.
// GET /internal/observability?vendor=moscot&start=...&end=...&limit=50&cursor=...
func (a *API) Observability(c *gin.Context) {
	var req ObservabilityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid_request", "detail": err.Error()})
		return
	}

	vendor, err := a.vendors.Get(c.Request.Context(), req.Vendor)
	if err != nil {
		a.respondError(c, err)
		return
	}

	end := time.Now().UTC()
	if req.End != "" {
		end, err = time.Parse(time.RFC3339, req.End)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid_request", "detail": "end must be RFC3339"})
			return
		}
	}
	start := end.Add(-defaultObservabilityWindow)
	if req.Start != "" {
		start, err = time.Parse(time.RFC3339, req.Start)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid_request", "detail": "start must be RFC3339"})
			return
		}
	}

	page, err := a.obs.Query(c.Request.Context(), observability.Params{
		VendorID:   vendor.ID,
		VendorSlug: vendor.Slug,
		Start:      start,
		End:        end,
		Limit:      req.Limit,
		Cursor:     req.Cursor,
	})
	if err != nil {
		a.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}
