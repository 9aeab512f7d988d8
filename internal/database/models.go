package database

import (
	"time"

	"github.com/lensly/catalog-service/internal/types"
)

// Vendor is a row in the vendors table.
type Vendor struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Integration is nil for draft vendors, which must not be fetched.
	Integration *VendorIntegration `json:"integration,omitempty"`
}

// VendorIntegration is a row in the vendor_integrations table. APIKey is
// write-mostly: it never leaves the service in read responses, only a
// HasKey flag does.
type VendorIntegration struct {
	VendorID    string                `json:"vendorId"`
	Type        types.IntegrationType `json:"type"`
	ScraperPath string                `json:"scraperPath,omitempty"`
	APIBaseURL  string                `json:"apiBaseUrl,omitempty"`
	APIAuthType types.APIAuthType     `json:"apiAuthType,omitempty"`
	APIKey      string                `json:"-"`
	HasKey      bool                  `json:"hasKey"`
	LastTestAt  *time.Time            `json:"lastTestAt,omitempty"`
	LastTestOK  *bool                 `json:"lastTestOk,omitempty"`
	Meta        map[string]any        `json:"meta,omitempty"`
}

// CatalogItem is a row in the vendor_catalog_items table: the persisted
// projection of a NormalizedItem, keyed by (vendor_id, sku).
type CatalogItem struct {
	ID         string         `json:"id"`
	VendorID   string         `json:"vendorId"`
	SKU        string         `json:"sku"`
	Name       string         `json:"name"`
	Category   types.Category `json:"category"`
	Price      *int           `json:"price,omitempty"`
	Currency   string         `json:"currency,omitempty"`
	ImageURL   string         `json:"imageUrl,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	FieldsHash string         `json:"-"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	DeletedAt  *time.Time     `json:"deletedAt,omitempty"`
}

// SyncRun is a row in the vendor_sync_runs table: the atomic audit record
// of one engine invocation.
type SyncRun struct {
	ID              string          `json:"id"`
	VendorID        string          `json:"vendorId"`
	Status          types.RunStatus `json:"status"`
	StartedAt       time.Time       `json:"startedAt"`
	FinishedAt      *time.Time      `json:"finishedAt,omitempty"`
	DurationMillis  *int64          `json:"durationMs,omitempty"`
	Source          types.RunSource `json:"source"`
	RunBy           string          `json:"runBy"`
	TotalItems      *int            `json:"totalItems,omitempty"`
	CreatedCount    int             `json:"createdCount"`
	UpdatedCount    int             `json:"updatedCount"`
	TombstonedCount int             `json:"tombstonedCount"`
	PayloadHash     string          `json:"payloadHash,omitempty"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// SyncState is a row in the vendor_sync_states table: the latest-snapshot
// cache for one vendor, keyed by slug. It always reflects the most recent
// terminal run; LastHash and TotalItems stick to the last success so the
// no-op short circuit survives intervening failures.
type SyncState struct {
	Vendor         string     `json:"vendor"`
	LastRunAt      *time.Time `json:"lastRunAt,omitempty"`
	TotalItems     *int       `json:"totalItems,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
	LastDurationMs *int64     `json:"lastDurationMs,omitempty"`
	LastHash       string     `json:"lastHash,omitempty"`
	LastSource     string     `json:"lastSource,omitempty"`
	LastRunBy      string     `json:"lastRunBy,omitempty"`
}

// AlertEvent is a row in the alert_events table. Append-only.
type AlertEvent struct {
	ID         string            `json:"id"`
	Vendor     string            `json:"vendor,omitempty"`
	Level      types.AlertLevel  `json:"level"`
	Message    string            `json:"message"`
	ReceivedAt time.Time         `json:"receivedAt"`
	Context    map[string]string `json:"context,omitempty"`
}
