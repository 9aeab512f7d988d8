package database

import (
	"context"
	"fmt"
)

// schemaStatements is the idempotent DDL for the sync engine's tables.
// The unique partial index on vendor_sync_runs is the concurrency guard:
// it is what makes "at most one non-terminal run per vendor" hold under
// concurrent invocations.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS vendors (
		id UUID PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS vendor_integrations (
		vendor_id UUID PRIMARY KEY REFERENCES vendors(id) ON DELETE CASCADE,
		type TEXT NOT NULL CHECK (type IN ('API', 'SCRAPER')),
		scraper_path TEXT,
		api_base_url TEXT,
		api_auth_type TEXT,
		api_key TEXT,
		last_test_at TIMESTAMPTZ,
		last_test_ok BOOLEAN,
		meta JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (type <> 'API' OR api_base_url IS NOT NULL),
		CHECK (type <> 'SCRAPER' OR scraper_path IS NOT NULL)
	)`,

	`CREATE TABLE IF NOT EXISTS vendor_catalog_items (
		id UUID PRIMARY KEY,
		vendor_id UUID NOT NULL REFERENCES vendors(id) ON DELETE CASCADE,
		sku TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		price BIGINT,
		currency TEXT,
		image_url TEXT,
		attributes JSONB,
		fields_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ,
		UNIQUE (vendor_id, sku)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_items_vendor_live
		ON vendor_catalog_items (vendor_id) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS vendor_sync_runs (
		id TEXT PRIMARY KEY,
		vendor_id UUID NOT NULL REFERENCES vendors(id) ON DELETE CASCADE,
		status TEXT NOT NULL CHECK (status IN ('pending', 'running', 'success', 'failed')),
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		duration_ms BIGINT,
		source TEXT NOT NULL CHECK (source IN ('manual', 'automated')),
		run_by TEXT NOT NULL,
		total_items INT,
		created_count INT NOT NULL DEFAULT 0,
		updated_count INT NOT NULL DEFAULT 0,
		tombstoned_count INT NOT NULL DEFAULT 0,
		payload_hash TEXT,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_runs_one_inflight
		ON vendor_sync_runs (vendor_id) WHERE status IN ('pending', 'running')`,
	`CREATE INDEX IF NOT EXISTS idx_sync_runs_vendor_finished
		ON vendor_sync_runs (vendor_id, finished_at DESC)`,

	`CREATE TABLE IF NOT EXISTS vendor_sync_states (
		vendor TEXT PRIMARY KEY,
		last_run_at TIMESTAMPTZ,
		total_items INT,
		last_error TEXT,
		last_duration_ms BIGINT,
		last_hash TEXT,
		last_source TEXT,
		last_run_by TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS alert_events (
		id TEXT PRIMARY KEY,
		vendor TEXT,
		level TEXT NOT NULL CHECK (level IN ('info', 'warn', 'error')),
		message TEXT NOT NULL,
		received_at TIMESTAMPTZ NOT NULL,
		context JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alert_events_received
		ON alert_events (received_at DESC)`,

	// Migrate run rows written before the status rename.
	`UPDATE vendor_sync_runs SET status = 'success' WHERE status = 'completed'`,
}

// EnsureSchema creates or migrates the engine's tables. All statements
// are idempotent so it is safe to run at every startup.
func EnsureSchema(ctx context.Context) error {
	p := Pool()
	if p == nil {
		return fmt.Errorf("database not initialized")
	}
	for _, stmt := range schemaStatements {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}
	return nil
}
