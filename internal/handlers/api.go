// Package handlers exposes the catalog service's HTTP surface.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lensly/catalog-service/internal/alerts"
	"github.com/lensly/catalog-service/internal/engine"
	"github.com/lensly/catalog-service/internal/fetcher"
	"github.com/lensly/catalog-service/internal/metrics"
	"github.com/lensly/catalog-service/internal/observability"
	"github.com/lensly/catalog-service/internal/runs"
	"github.com/lensly/catalog-service/internal/syncerrors"
	"github.com/lensly/catalog-service/internal/vendors"
)

// API bundles the handler dependencies.
type API struct {
	engine   *engine.Engine
	vendors  *vendors.Store
	runs     *runs.Recorder
	obs      *observability.Service
	alerts   *alerts.Ingress
	fetcher  *fetcher.Fetcher
	metrics  *metrics.Recorder
	logger   zerolog.Logger
}

// NewAPI wires the HTTP handlers.
func NewAPI(
	eng *engine.Engine,
	vendorStore *vendors.Store,
	recorder *runs.Recorder,
	obs *observability.Service,
	ingress *alerts.Ingress,
	f *fetcher.Fetcher,
	rec *metrics.Recorder,
	logger zerolog.Logger,
) *API {
	return &API{
		engine:  eng,
		vendors: vendorStore,
		runs:    recorder,
		obs:     obs,
		alerts:  ingress,
		fetcher: f,
		metrics: rec,
		logger:  logger.With().Str("component", "http").Logger(),
	}
}

// respondError maps a classified error onto the HTTP contract. The kind
// travels in "error", the human detail in "detail"; server_error details
// never leave the process.
func (a *API) respondError(c *gin.Context, err error) {
	se := syncerrors.Classify(err)

	status := http.StatusInternalServerError
	switch se.Kind {
	case syncerrors.KindVendorNotFound:
		status = http.StatusNotFound
	case syncerrors.KindAlreadyRunning:
		status = http.StatusConflict
	case syncerrors.KindInvalidVendor,
		syncerrors.KindInvalidPayload,
		syncerrors.KindInvalidRequest,
		syncerrors.KindMissingCredentials:
		status = http.StatusBadRequest
	}

	detail := se.Detail
	if se.Kind == syncerrors.KindServerError {
		a.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		detail = ""
	}

	c.JSON(status, gin.H{
		"ok":     false,
		"error":  string(se.Kind),
		"detail": detail,
	})
}
