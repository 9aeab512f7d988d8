package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lensly/catalog-service/internal/runs"
	"github.com/lensly/catalog-service/internal/types"
)

// TriggerSyncRequest is the optional body of a manual sync trigger.
type TriggerSyncRequest struct {
	RunBy string `json:"runBy"`
}

// TriggerSync runs one vendor's sync pipeline.
// POST /internal/sync/:vendor
func (a *API) TriggerSync(c *gin.Context) {
	slug := c.Param("vendor")

	var req TriggerSyncRequest
	_ = c.ShouldBindJSON(&req)
	if req.RunBy == "" {
		req.RunBy = "api"
	}

	outcome, err := a.engine.RunOne(c.Request.Context(), slug, types.SourceManual, req.RunBy)
	if outcome == nil && err != nil {
		a.respondError(c, err)
		return
	}

	// A recorded failure is still a completed command: the outcome
	// carries the classified error.
	c.JSON(http.StatusOK, outcome)
}

// TriggerSyncAll runs every configured vendor, best effort.
// POST /internal/sync
func (a *API) TriggerSyncAll(c *gin.Context) {
	var req TriggerSyncRequest
	_ = c.ShouldBindJSON(&req)
	if req.RunBy == "" {
		req.RunBy = "api"
	}

	outcomes, err := a.engine.RunAll(c.Request.Context(), types.SourceManual, req.RunBy)
	if err != nil {
		a.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}

// ListRunsRequest represents query parameters for listing runs
type ListRunsRequest struct {
	Vendor string `form:"vendor"`
	Status string `form:"status"`
	Limit  int    `form:"limit" binding:"min=0,max=100"`
	Offset int    `form:"offset" binding:"min=0"`
}

// ListRuns returns run rows newest-first.
// GET /internal/sync/runs?vendor=moscot&status=failed&limit=20&offset=0
func (a *API) ListRuns(c *gin.Context) {
	var req ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid_request", "detail": err.Error()})
		return
	}

	filter := runs.ListFilter{
		Status: types.RunStatus(req.Status),
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	if req.Vendor != "" {
		vendor, err := a.vendors.Get(c.Request.Context(), req.Vendor)
		if err != nil {
			a.respondError(c, err)
			return
		}
		filter.VendorID = vendor.ID
	}

	runRows, err := a.runs.List(c.Request.Context(), filter)
	if err != nil {
		a.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runRows, "count": len(runRows)})
}
