// Package vendors implements the vendor registry: slug → integration
// descriptor lookup backed by the vendors and vendor_integrations tables.
package vendors

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lensly/catalog-service/internal/database"
	"github.com/lensly/catalog-service/internal/syncerrors"
	"github.com/lensly/catalog-service/internal/types"
)

var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidSlug reports whether slug is a lowercase ASCII vendor identifier.
func ValidSlug(slug string) bool {
	return slugRe.MatchString(slug)
}

// CredentialsPayload is the write shape for upsertCredentials. Type is
// inferred when absent: apiBaseUrl present means API, otherwise SCRAPER.
type CredentialsPayload struct {
	ScraperPath string            `json:"scraperPath,omitempty"`
	APIBaseURL  string            `json:"apiBaseUrl,omitempty"`
	APIAuthType types.APIAuthType `json:"apiAuthType,omitempty"`
	APIKey      string            `json:"apiKey,omitempty"`
}

// InferType determines the integration type from the payload fields.
func (p CredentialsPayload) InferType() types.IntegrationType {
	if strings.TrimSpace(p.APIBaseURL) != "" {
		return types.IntegrationAPI
	}
	return types.IntegrationScraper
}

// Validate checks the payload carries enough to form a valid integration.
func (p CredentialsPayload) Validate() error {
	if strings.TrimSpace(p.APIBaseURL) == "" && strings.TrimSpace(p.ScraperPath) == "" {
		return syncerrors.New(syncerrors.KindInvalidPayload, "either apiBaseUrl or scraperPath is required")
	}
	switch p.APIAuthType {
	case "", types.AuthNone, types.AuthBearer, types.AuthBasic, types.AuthCustomHeader:
	default:
		return syncerrors.New(syncerrors.KindInvalidPayload, "unknown apiAuthType %q", p.APIAuthType)
	}
	return nil
}

// Store reads and writes vendor registry rows.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a vendor store backed by the shared pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create registers a new vendor with no integration (a draft vendor).
func (s *Store) Create(ctx context.Context, slug, displayName string) (*database.Vendor, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if !ValidSlug(slug) {
		return nil, syncerrors.New(syncerrors.KindInvalidVendor, "slug %q is not a valid vendor slug", slug)
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = slug
	}

	v := &database.Vendor{
		ID:          uuid.New().String(),
		Slug:        slug,
		DisplayName: strings.TrimSpace(displayName),
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO vendors (id, slug, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET display_name = EXCLUDED.display_name, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, v.ID, v.Slug, v.DisplayName).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// List returns all vendors with their integration joined, ordered by slug.
// Credentials are masked: only HasKey survives.
func (s *Store) List(ctx context.Context) ([]database.Vendor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT v.id, v.slug, v.display_name, v.created_at, v.updated_at,
		       i.vendor_id, i.type, i.scraper_path, i.api_base_url, i.api_auth_type,
		       (i.api_key IS NOT NULL AND i.api_key <> '') AS has_key,
		       i.last_test_at, i.last_test_ok, i.meta
		FROM vendors v
		LEFT JOIN vendor_integrations i ON i.vendor_id = v.id
		ORDER BY v.slug
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []database.Vendor
	for rows.Next() {
		v, err := scanVendor(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// Get returns one vendor by slug with its integration joined, masked.
func (s *Store) Get(ctx context.Context, slug string) (*database.Vendor, error) {
	return s.get(ctx, slug, false)
}

// GetWithSecrets returns the vendor including the raw API key. Only the
// fetch path may use this; the key stays in memory for the run only.
func (s *Store) GetWithSecrets(ctx context.Context, slug string) (*database.Vendor, error) {
	return s.get(ctx, slug, true)
}

func (s *Store) get(ctx context.Context, slug string, withSecrets bool) (*database.Vendor, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if !ValidSlug(slug) {
		return nil, syncerrors.New(syncerrors.KindInvalidVendor, "slug %q is not a valid vendor slug", slug)
	}

	keyExpr := `NULL`
	if withSecrets {
		keyExpr = `i.api_key`
	}
	row := s.pool.QueryRow(ctx, `
		SELECT v.id, v.slug, v.display_name, v.created_at, v.updated_at,
		       i.vendor_id, i.type, i.scraper_path, i.api_base_url, i.api_auth_type,
		       (i.api_key IS NOT NULL AND i.api_key <> '') AS has_key,
		       i.last_test_at, i.last_test_ok, i.meta, `+keyExpr+`
		FROM vendors v
		LEFT JOIN vendor_integrations i ON i.vendor_id = v.id
		WHERE v.slug = $1
	`, slug)

	v, err := scanVendorRow(row, true)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, syncerrors.New(syncerrors.KindVendorNotFound, "no vendor with slug %q", slug)
	}
	return v, err
}

// UpsertCredentials writes a new or updated integration for the vendor.
// The last_test_* columns are deliberately untouched; use RecordTestResult.
func (s *Store) UpsertCredentials(ctx context.Context, slug string, payload CredentialsPayload) (*database.VendorIntegration, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	v, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}

	integ := &database.VendorIntegration{
		VendorID:    v.ID,
		Type:        payload.InferType(),
		ScraperPath: strings.TrimSpace(payload.ScraperPath),
		APIBaseURL:  strings.TrimSpace(payload.APIBaseURL),
		APIAuthType: payload.APIAuthType,
		HasKey:      payload.APIKey != "",
	}
	if integ.Type == types.IntegrationAPI && integ.APIAuthType == "" {
		integ.APIAuthType = types.AuthNone
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO vendor_integrations (vendor_id, type, scraper_path, api_base_url, api_auth_type, api_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (vendor_id) DO UPDATE SET
			type = EXCLUDED.type,
			scraper_path = EXCLUDED.scraper_path,
			api_base_url = EXCLUDED.api_base_url,
			api_auth_type = EXCLUDED.api_auth_type,
			api_key = CASE WHEN EXCLUDED.api_key IS NULL THEN vendor_integrations.api_key ELSE EXCLUDED.api_key END,
			updated_at = NOW()
	`, v.ID, string(integ.Type), nullable(integ.ScraperPath), nullable(integ.APIBaseURL),
		nullable(string(integ.APIAuthType)), nullableKey(payload.APIKey))
	if err != nil {
		return nil, err
	}
	return integ, nil
}

// RecordTestResult updates only the last_test_at / last_test_ok columns.
func (s *Store) RecordTestResult(ctx context.Context, slug string, ok bool, at time.Time) error {
	v, err := s.Get(ctx, slug)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE vendor_integrations
		SET last_test_at = $2, last_test_ok = $3, updated_at = NOW()
		WHERE vendor_id = $1
	`, v.ID, at.UTC(), ok)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return syncerrors.New(syncerrors.KindMissingCredentials, "vendor %q has no integration to test", slug)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVendor(rows pgx.Rows, withSecrets bool) (*database.Vendor, error) {
	return scanVendorInto(rows, withSecrets, false)
}

func scanVendorRow(row pgx.Row, withKeyColumn bool) (*database.Vendor, error) {
	return scanVendorInto(row, withKeyColumn, withKeyColumn)
}

func scanVendorInto(sc rowScanner, hasKeyColumn, readKey bool) (*database.Vendor, error) {
	var v database.Vendor
	var (
		integVendorID, integType, scraperPath, apiBaseURL, authType *string
		hasKey                                                      *bool
		lastTestAt                                                  *time.Time
		lastTestOK                                                  *bool
		meta                                                        []byte
		apiKey                                                      *string
	)

	dest := []any{&v.ID, &v.Slug, &v.DisplayName, &v.CreatedAt, &v.UpdatedAt,
		&integVendorID, &integType, &scraperPath, &apiBaseURL, &authType,
		&hasKey, &lastTestAt, &lastTestOK, &meta}
	if hasKeyColumn {
		dest = append(dest, &apiKey)
	}
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}

	if integVendorID != nil {
		integ := &database.VendorIntegration{
			VendorID:   *integVendorID,
			Type:       types.IntegrationType(deref(integType)),
			LastTestAt: lastTestAt,
			LastTestOK: lastTestOK,
		}
		integ.ScraperPath = deref(scraperPath)
		integ.APIBaseURL = deref(apiBaseURL)
		integ.APIAuthType = types.APIAuthType(deref(authType))
		if hasKey != nil {
			integ.HasKey = *hasKey
		}
		if readKey && apiKey != nil {
			integ.APIKey = *apiKey
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &integ.Meta); err != nil {
				return nil, err
			}
		}
		v.Integration = integ
	}
	return &v, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullableKey maps an empty key to NULL so re-saving credentials without
// the key keeps the stored one (write-mostly secret semantics).
func nullableKey(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}
