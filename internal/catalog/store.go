// Package catalog implements the diff/apply engine: it canonicalizes
// normalized vendor items, fingerprints them, and reconciles them against
// the persisted vendor_catalog_items rows inside a single transaction.
package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lensly/catalog-service/internal/database"
	"github.com/lensly/catalog-service/internal/syncerrors"
	"github.com/lensly/catalog-service/internal/types"
)

// ApplyResult reports what a diff/apply pass changed.
type ApplyResult struct {
	CreatedCount    int
	UpdatedCount    int
	TombstonedCount int
	TotalItems      int
	Hash            string
	NoOp            bool
}

// Store persists catalog items for vendors.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a catalog store backed by the shared pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Apply reconciles the normalized items with the persisted catalog for
// one vendor. If the catalog hash equals priorHash the run short-circuits
// to a no-op with zero counts and no transaction. Otherwise all mutations
// happen in tx; the caller owns commit, so the run's terminal record can
// share the same transaction.
func (s *Store) Apply(ctx context.Context, tx pgx.Tx, vendorID string, items []types.NormalizedItem, priorHash string) (*ApplyResult, error) {
	hash := CatalogHash(items)
	result := &ApplyResult{Hash: hash, TotalItems: len(items)}

	if priorHash != "" && hash == priorHash {
		result.NoOp = true
		return result, nil
	}

	existing, err := liveFieldHashes(ctx, tx, vendorID)
	if err != nil {
		return nil, syncerrors.Apply("load", err)
	}

	plan := BuildPlan(existing, items)
	now := time.Now().UTC()

	for _, item := range plan.Creates {
		if err := insertItem(ctx, tx, vendorID, item, now); err != nil {
			return nil, syncerrors.Apply("insert", err)
		}
	}
	for _, item := range plan.Updates {
		if err := updateItem(ctx, tx, vendorID, item, now); err != nil {
			return nil, syncerrors.Apply("update", err)
		}
	}
	if len(plan.Tombstones) > 0 {
		tag, err := tx.Exec(ctx, `
			UPDATE vendor_catalog_items
			SET deleted_at = $1, updated_at = $1
			WHERE vendor_id = $2 AND sku = ANY($3) AND deleted_at IS NULL
		`, now, vendorID, plan.Tombstones)
		if err != nil {
			return nil, syncerrors.Apply("tombstone", err)
		}
		result.TombstonedCount = int(tag.RowsAffected())
	}

	result.CreatedCount = len(plan.Creates)
	result.UpdatedCount = len(plan.Updates)
	return result, nil
}

// liveFieldHashes loads sku → fields hash for the vendor's non-tombstoned rows.
func liveFieldHashes(ctx context.Context, tx pgx.Tx, vendorID string) (map[string]string, error) {
	rows, err := tx.Query(ctx, `
		SELECT sku, fields_hash
		FROM vendor_catalog_items
		WHERE vendor_id = $1 AND deleted_at IS NULL
	`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var sku, fh string
		if err := rows.Scan(&sku, &fh); err != nil {
			return nil, err
		}
		hashes[sku] = fh
	}
	return hashes, rows.Err()
}

func insertItem(ctx context.Context, tx pgx.Tx, vendorID string, item types.NormalizedItem, now time.Time) error {
	attrs, err := marshalAttrs(item.Attributes)
	if err != nil {
		return err
	}
	// A tombstoned row with the same sku resurrects in place; the
	// (vendor_id, sku) key is stable across delete/recreate cycles.
	_, err = tx.Exec(ctx, `
		INSERT INTO vendor_catalog_items
			(id, vendor_id, sku, name, category, price, currency, image_url, attributes, fields_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $11)
		ON CONFLICT (vendor_id, sku) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			image_url = EXCLUDED.image_url,
			attributes = EXCLUDED.attributes,
			fields_hash = EXCLUDED.fields_hash,
			updated_at = EXCLUDED.updated_at,
			deleted_at = NULL
	`, uuid.New().String(), vendorID, item.SKU, item.Name, string(item.Category),
		item.Price, nullable(item.Currency), nullable(item.ImageURL), attrs, FieldsHash(item), now)
	return err
}

func updateItem(ctx context.Context, tx pgx.Tx, vendorID string, item types.NormalizedItem, now time.Time) error {
	attrs, err := marshalAttrs(item.Attributes)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE vendor_catalog_items
		SET name = $3, category = $4, price = $5, currency = $6,
		    image_url = $7, attributes = $8::jsonb, fields_hash = $9, updated_at = $10
		WHERE vendor_id = $1 AND sku = $2
	`, vendorID, item.SKU, item.Name, string(item.Category),
		item.Price, nullable(item.Currency), nullable(item.ImageURL), attrs, FieldsHash(item), now)
	return err
}

// LiveItems returns the non-tombstoned catalog rows for a vendor, ordered
// by sku.
func (s *Store) LiveItems(ctx context.Context, vendorID string) ([]database.CatalogItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, vendor_id, sku, name, category, price, currency, image_url, attributes,
		       fields_hash, created_at, updated_at, deleted_at
		FROM vendor_catalog_items
		WHERE vendor_id = $1 AND deleted_at IS NULL
		ORDER BY sku
	`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// PurgeTombstones physically removes tombstoned rows older than the given
// cutoff. The engine never calls this; it exists for operator-driven
// retention via the CLI.
func (s *Store) PurgeTombstones(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM vendor_catalog_items
		WHERE deleted_at IS NOT NULL AND deleted_at < $1
	`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanItems(rows pgx.Rows) ([]database.CatalogItem, error) {
	var items []database.CatalogItem
	for rows.Next() {
		var it database.CatalogItem
		var price *int64
		var currency, imageURL *string
		var attrs []byte
		if err := rows.Scan(&it.ID, &it.VendorID, &it.SKU, &it.Name, &it.Category,
			&price, &currency, &imageURL, &attrs,
			&it.FieldsHash, &it.CreatedAt, &it.UpdatedAt, &it.DeletedAt); err != nil {
			return nil, err
		}
		if price != nil {
			p := int(*price)
			it.Price = &p
		}
		if currency != nil {
			it.Currency = *currency
		}
		if imageURL != nil {
			it.ImageURL = *imageURL
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &it.Attributes); err != nil {
				return nil, err
			}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func marshalAttrs(attrs map[string]any) (*string, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
