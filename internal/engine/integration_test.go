package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lensly/catalog-service/config"
	"github.com/lensly/catalog-service/internal/adapters/sdk"
	"github.com/lensly/catalog-service/internal/alerts"
	"github.com/lensly/catalog-service/internal/catalog"
	"github.com/lensly/catalog-service/internal/database"
	"github.com/lensly/catalog-service/internal/fetcher"
	"github.com/lensly/catalog-service/internal/metrics"
	"github.com/lensly/catalog-service/internal/observability"
	"github.com/lensly/catalog-service/internal/runs"
	"github.com/lensly/catalog-service/internal/syncerrors"
	"github.com/lensly/catalog-service/internal/types"
	"github.com/lensly/catalog-service/internal/vendors"
)

// setupTestDB starts a PostgreSQL container and connects the shared pool.
func setupTestDB(ctx context.Context, t *testing.T) func() {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForListeningPort("5432/tcp").
					WithStartupTimeout(60*time.Second),
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(1).
					WithStartupTimeout(60*time.Second),
			),
		),
	)
	require.NoError(t, err, "start container")

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.Connect(ctx, connString, 5, 1, time.Hour, 30*time.Minute))
	require.NoError(t, database.EnsureSchema(ctx))

	return func() {
		database.Close()
		_ = container.Terminate(ctx)
	}
}

// intAdapter decodes the integration test's wire format.
type intAdapter struct{ slug string }

func (a *intAdapter) Slug() string { return a.slug }

func (a *intAdapter) Transform(raw json.RawMessage) ([]types.NormalizedItem, error) {
	var rows []struct {
		SKU        string `json:"sku"`
		Name       string `json:"name"`
		PriceCents *int   `json:"priceCents"`
		Currency   string `json:"currency"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	items := make([]types.NormalizedItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, types.NormalizedItem{
			SKU:      r.SKU,
			Name:     r.Name,
			Category: types.CategoryFrames,
			Price:    r.PriceCents,
			Currency: r.Currency,
		})
	}
	return items, nil
}

func TestEngineIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	teardown := setupTestDB(ctx, t)
	defer teardown()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	pool := database.Pool()

	// Vendor API stub whose payload and status can change between runs.
	var payload atomic.Value
	var status atomic.Int64
	status.Store(http.StatusOK)
	payload.Store(`[]`)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		code := int(status.Load())
		if code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, payload.Load().(string))
	}))
	defer server.Close()

	vendorStore := vendors.NewStore(pool)
	_, err := vendorStore.Create(ctx, "acme-optics", "ACME Optics")
	require.NoError(t, err)
	_, err = vendorStore.UpsertCredentials(ctx, "acme-optics", vendors.CredentialsPayload{
		APIBaseURL:  server.URL,
		APIAuthType: types.AuthBearer,
		APIKey:      "secret-token",
	})
	require.NoError(t, err)

	registry := sdk.NewRegistry()
	require.NoError(t, registry.Register("acme-optics", &intAdapter{slug: "acme-optics"}))

	recorder := runs.NewRecorder(pool, logger)
	ingress := alerts.NewIngress(pool, logger)
	catalogStore := catalog.NewStore(pool)
	eng := New(
		pool,
		vendorStore,
		fetcher.New(fetcher.ExecInvoker{}, t.TempDir(), logger),
		registry,
		catalogStore,
		recorder,
		ingress,
		metrics.NewRecorder(),
		config.SyncConfig{FetchTimeout: 10 * time.Second, ApplyTimeout: 10 * time.Second, MaxParallel: 2},
		logger,
	)

	vendor, err := vendorStore.Get(ctx, "acme-optics")
	require.NoError(t, err)

	t.Run("initial sync creates items", func(t *testing.T) {
		payload.Store(`[
			{"sku": "A-100", "name": "Aviator", "priceCents": 12900, "currency": "USD"},
			{"sku": "B-200", "name": "Boulevard", "priceCents": 15900, "currency": "USD"}
		]`)

		outcome, err := eng.RunOne(ctx, "acme-optics", types.SourceManual, "tester")
		require.NoError(t, err)
		assert.Equal(t, types.RunStatusSuccess, outcome.Status)
		assert.Equal(t, 2, outcome.CreatedCount)
		assert.Equal(t, 2, outcome.TotalItems)
		assert.NotEmpty(t, outcome.PayloadHash)

		items, err := catalogStore.LiveItems(ctx, vendor.ID)
		require.NoError(t, err)
		assert.Len(t, items, 2)

		state, err := recorder.State(ctx, "acme-optics")
		require.NoError(t, err)
		assert.Equal(t, outcome.PayloadHash, state.LastHash)
		require.NotNil(t, state.TotalItems)
		assert.Equal(t, 2, *state.TotalItems)
	})

	t.Run("unchanged payload is a noop", func(t *testing.T) {
		outcome, err := eng.RunOne(ctx, "acme-optics", types.SourceManual, "tester")
		require.NoError(t, err)
		assert.Equal(t, types.RunStatusSuccess, outcome.Status)
		assert.Zero(t, outcome.CreatedCount)
		assert.Zero(t, outcome.UpdatedCount)
		assert.Zero(t, outcome.TombstonedCount)
	})

	t.Run("diff applies creates updates and tombstones", func(t *testing.T) {
		payload.Store(`[
			{"sku": "B-200", "name": "Boulevard", "priceCents": 16900, "currency": "USD"},
			{"sku": "C-300", "name": "Cascade", "priceCents": 9900, "currency": "USD"}
		]`)

		outcome, err := eng.RunOne(ctx, "acme-optics", types.SourceManual, "tester")
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.CreatedCount)
		assert.Equal(t, 1, outcome.UpdatedCount)
		assert.Equal(t, 1, outcome.TombstonedCount)
		assert.Equal(t, 2, outcome.TotalItems)

		items, err := catalogStore.LiveItems(ctx, vendor.ID)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "B-200", items[0].SKU)
		assert.Equal(t, "C-300", items[1].SKU)
	})

	t.Run("tombstoned item resurrects on reappearance", func(t *testing.T) {
		payload.Store(`[
			{"sku": "A-100", "name": "Aviator", "priceCents": 12900, "currency": "USD"},
			{"sku": "B-200", "name": "Boulevard", "priceCents": 16900, "currency": "USD"},
			{"sku": "C-300", "name": "Cascade", "priceCents": 9900, "currency": "USD"}
		]`)

		outcome, err := eng.RunOne(ctx, "acme-optics", types.SourceManual, "tester")
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.CreatedCount)
		assert.Equal(t, 3, outcome.TotalItems)

		items, err := catalogStore.LiveItems(ctx, vendor.ID)
		require.NoError(t, err)
		assert.Len(t, items, 3)
	})

	t.Run("fetch failure records run and alert, preserves hash", func(t *testing.T) {
		status.Store(http.StatusServiceUnavailable)

		stateBefore, err := recorder.State(ctx, "acme-optics")
		require.NoError(t, err)

		outcome, runErr := eng.RunOne(ctx, "acme-optics", types.SourceManual, "tester")
		require.Error(t, runErr)
		assert.Equal(t, syncerrors.KindFetchHTTP, syncerrors.KindOf(runErr))
		assert.Equal(t, types.RunStatusFailed, outcome.Status)

		state, err := recorder.State(ctx, "acme-optics")
		require.NoError(t, err)
		assert.Contains(t, state.LastError, "fetch_failed/http")
		// The last successful hash survives the failure.
		assert.Equal(t, stateBefore.LastHash, state.LastHash)

		var alertCount int
		require.NoError(t, pool.QueryRow(ctx, `
			SELECT COUNT(*) FROM alert_events WHERE vendor = 'acme-optics' AND level = 'error'
		`).Scan(&alertCount))
		assert.Equal(t, 1, alertCount)

		// The noop short-circuit still works after the failure.
		status.Store(http.StatusOK)
		recovered, err := eng.RunOne(ctx, "acme-optics", types.SourceManual, "tester")
		require.NoError(t, err)
		assert.Equal(t, types.RunStatusSuccess, recovered.Status)
		assert.Zero(t, recovered.CreatedCount)
		assert.Zero(t, recovered.UpdatedCount)
		assert.Zero(t, recovered.TombstonedCount)
	})

	t.Run("at most one run in flight per vendor", func(t *testing.T) {
		first, err := recorder.Begin(ctx, vendor.ID, types.SourceManual, "tester")
		require.NoError(t, err)

		_, err = recorder.Begin(ctx, vendor.ID, types.SourceManual, "tester")
		require.Error(t, err)
		assert.Equal(t, syncerrors.KindAlreadyRunning, syncerrors.KindOf(err))

		recorder.CompleteFailure(ctx, first, "acme-optics", syncerrors.New(syncerrors.KindCancelled, "test cleanup"))
	})

	t.Run("run listing filters by status", func(t *testing.T) {
		failed, err := recorder.List(ctx, runs.ListFilter{
			VendorID: vendor.ID,
			Status:   types.RunStatusFailed,
			Limit:    50,
		})
		require.NoError(t, err)
		require.NotEmpty(t, failed)
		for _, run := range failed {
			assert.Equal(t, types.RunStatusFailed, run.Status)
		}
	})

	t.Run("observability window and pagination", func(t *testing.T) {
		obsVendor, err := vendorStore.Create(ctx, "lunor", "Lunor")
		require.NoError(t, err)

		base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		insertRun := func(id string, at time.Time) {
			_, err := pool.Exec(ctx, `
				INSERT INTO vendor_sync_runs
					(id, vendor_id, status, started_at, finished_at, duration_ms, source, run_by)
				VALUES ($1, $2, 'success', $3, $3, 0, 'automated', 'tester')
			`, id, obsVendor.ID, at)
			require.NoError(t, err)
		}
		insertRun("run_hist_a", base)
		insertRun("run_hist_b", base.Add(time.Hour))
		insertRun("run_hist_c", base.Add(2*time.Hour))
		// A same-instant pair whose ids order differently under locale
		// collation than under byte order, so the cursor tie-break is
		// actually exercised.
		insertRun("run_tie_B", base.Add(3*time.Hour))
		insertRun("run_tie_a", base.Add(3*time.Hour))

		_, err = pool.Exec(ctx, `
			INSERT INTO alert_events (id, vendor, level, message, received_at)
			VALUES ('alert_hist_1', 'lunor', 'warn', 'inventory drift', $1)
		`, base.Add(150*time.Minute))
		require.NoError(t, err)

		obs := observability.NewService(pool)

		// A half-open window catches only the run strictly inside it.
		page, err := obs.Query(ctx, observability.Params{
			VendorID:   obsVendor.ID,
			VendorSlug: "lunor",
			Start:      base.Add(30 * time.Minute),
			End:        base.Add(90 * time.Minute),
		})
		require.NoError(t, err)
		require.Len(t, page.Entries, 1)
		assert.Equal(t, "run_hist_b", page.Entries[0].ID)
		assert.Empty(t, page.NextCursor)

		// Start is inclusive, end is exclusive.
		page, err = obs.Query(ctx, observability.Params{
			VendorID:   obsVendor.ID,
			VendorSlug: "lunor",
			Start:      base.Add(time.Hour),
			End:        base.Add(2 * time.Hour),
		})
		require.NoError(t, err)
		require.Len(t, page.Entries, 1)
		assert.Equal(t, "run_hist_b", page.Entries[0].ID)

		// Walking the full window one entry per page must visit every
		// run and alert exactly once, newest first, with ties broken by
		// id byte order.
		var got []string
		params := observability.Params{
			VendorID:   obsVendor.ID,
			VendorSlug: "lunor",
			Start:      base,
			End:        base.Add(4 * time.Hour),
			Limit:      1,
		}
		for {
			page, err := obs.Query(ctx, params)
			require.NoError(t, err)
			for _, e := range page.Entries {
				got = append(got, e.ID)
			}
			if page.NextCursor == "" {
				break
			}
			params.Cursor = page.NextCursor
		}
		assert.Equal(t, []string{
			"run_tie_a", "run_tie_B", "alert_hist_1",
			"run_hist_c", "run_hist_b", "run_hist_a",
		}, got)
	})
}
