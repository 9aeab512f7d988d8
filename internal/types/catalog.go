package types

import (
	"encoding/json"
	"time"
)

// IntegrationType distinguishes how a vendor's catalog is obtained.
type IntegrationType string

const (
	IntegrationAPI     IntegrationType = "API"
	IntegrationScraper IntegrationType = "SCRAPER"
)

// APIAuthType selects the auth header shape for API integrations.
type APIAuthType string

const (
	AuthNone         APIAuthType = "none"
	AuthBearer       APIAuthType = "bearer"
	AuthBasic        APIAuthType = "basic"
	AuthCustomHeader APIAuthType = "custom-header"
)

// Category is the canonical product category.
type Category string

const (
	CategoryFrames      Category = "Frames"
	CategoryLenses      Category = "Lenses"
	CategoryAccessories Category = "Accessories"
	CategoryOther       Category = "Other"
)

// RunSource identifies what triggered a sync run.
type RunSource string

const (
	SourceManual    RunSource = "manual"
	SourceAutomated RunSource = "automated"
)

// RunStatus is the canonical run lifecycle state set. The legacy
// "completed" value is migrated to "success" at schema bootstrap.
type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed
}

// AlertLevel is the severity of an operator alert.
type AlertLevel string

const (
	AlertInfo  AlertLevel = "info"
	AlertWarn  AlertLevel = "warn"
	AlertError AlertLevel = "error"
)

// ValidAlertLevel reports whether l is one of the accepted levels.
func ValidAlertLevel(l AlertLevel) bool {
	switch l {
	case AlertInfo, AlertWarn, AlertError:
		return true
	}
	return false
}

// NormalizedItem is one catalog entry in canonical form, produced by a
// vendor adapter for a single run. It lives in memory only; the persisted
// projection is VendorCatalogItem.
type NormalizedItem struct {
	SKU        string         `json:"sku"`
	Name       string         `json:"name"`
	Category   Category       `json:"category"`
	Price      *int           `json:"price,omitempty"` // minor units
	Currency   string         `json:"currency,omitempty"`
	ImageURL   string         `json:"imageUrl,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RawPayload is the untransformed catalog payload handed to an adapter.
type RawPayload struct {
	Body      json.RawMessage
	Source    string // "http" or "file"
	FetchedAt time.Time
}

// RunOutcome summarizes one finished sync run for callers. OK mirrors
// the error envelope convention so clients can branch on one field
// whether a command was rejected or ran and failed.
type RunOutcome struct {
	OK               bool       `json:"ok"`
	RunID            string     `json:"runId"`
	Vendor           string     `json:"vendor"`
	Status           RunStatus  `json:"status"`
	TotalItems       int        `json:"totalItems"`
	CreatedCount     int        `json:"createdCount"`
	UpdatedCount     int        `json:"updatedCount"`
	TombstonedCount  int        `json:"tombstonedCount"`
	DroppedCount     int        `json:"droppedCount"`
	PayloadHash      string     `json:"payloadHash,omitempty"`
	Error            string     `json:"error,omitempty"`
	StartedAt        time.Time  `json:"startedAt"`
	FinishedAt       *time.Time `json:"finishedAt,omitempty"`
	DurationMillis   int64      `json:"durationMs"`
}
