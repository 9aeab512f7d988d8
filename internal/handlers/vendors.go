package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lensly/catalog-service/internal/syncerrors"
	"github.com/lensly/catalog-service/internal/vendors"
)

// probeTimeout bounds the connectivity check behind the test endpoint.
const probeTimeout = 30 * time.Second

// CreateVendorRequest is the body of a vendor registration.
type CreateVendorRequest struct {
	Slug        string `json:"slug" binding:"required"`
	DisplayName string `json:"displayName"`
}

// CreateVendor registers a draft vendor with no integration yet.
// POST /internal/vendors
func (a *API) CreateVendor(c *gin.Context) {
	var req CreateVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid_payload", "detail": err.Error()})
		return
	}

	vendor, err := a.vendors.Create(c.Request.Context(), req.Slug, req.DisplayName)
	if err != nil {
		a.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, vendor)
}

// ListVendors returns every vendor with masked credentials.
// GET /internal/vendors
func (a *API) ListVendors(c *gin.Context) {
	list, err := a.vendors.List(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"vendors": list, "count": len(list)})
}

// SaveCredentials creates or replaces a vendor's integration.
// PUT /internal/vendors/:vendor/credentials
func (a *API) SaveCredentials(c *gin.Context) {
	slug := c.Param("vendor")

	var payload vendors.CredentialsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid_payload", "detail": err.Error()})
		return
	}

	integ, err := a.vendors.UpsertCredentials(c.Request.Context(), slug, payload)
	if err != nil {
		a.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, integ)
}

// TestVendor probes the vendor's integration and records the result on
// the integration row.
// POST /internal/vendors/:vendor/test
func (a *API) TestVendor(c *gin.Context) {
	slug := c.Param("vendor")

	vendor, err := a.vendors.GetWithSecrets(c.Request.Context(), slug)
	if err != nil {
		a.respondError(c, err)
		return
	}
	if vendor.Integration == nil {
		a.respondError(c, syncerrors.New(syncerrors.KindMissingCredentials, "vendor %s has no integration configured", slug))
		return
	}

	probeCtx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()
	_, probeErr := a.fetcher.Fetch(probeCtx, vendor.Integration)

	testedAt := time.Now().UTC()
	if err := a.vendors.RecordTestResult(c.Request.Context(), slug, probeErr == nil, testedAt); err != nil {
		a.respondError(c, err)
		return
	}

	resp := gin.H{"ok": probeErr == nil, "testedAt": testedAt}
	if probeErr != nil {
		resp["error"] = string(syncerrors.KindOf(probeErr))
		resp["detail"] = syncerrors.PersistedError(probeErr)
	}
	c.JSON(http.StatusOK, resp)
}
