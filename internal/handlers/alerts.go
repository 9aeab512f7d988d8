package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lensly/catalog-service/internal/alerts"
)

// IngestAlert stores an operator alert and returns the toast receipt.
// POST /internal/alerts
func (a *API) IngestAlert(c *gin.Context) {
	var req alerts.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid_payload", "detail": err.Error()})
		return
	}

	receipt, err := a.alerts.Ingest(c.Request.Context(), req)
	if err != nil {
		a.respondError(c, err)
		return
	}

	a.metrics.RecordAlert(strings.ToLower(strings.TrimSpace(req.Level)))
	c.JSON(http.StatusOK, receipt)
}
