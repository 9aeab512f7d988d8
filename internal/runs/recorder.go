// Package runs persists the per-run audit records and the per-vendor
// latest-snapshot sync state. The run row is the atomic audit record:
// exactly one row per invocation, lifecycle pending → running →
// (success | failed).
package runs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/lensly/catalog-service/internal/catalog"
	"github.com/lensly/catalog-service/internal/database"
	"github.com/lensly/catalog-service/internal/pkg/ids"
	"github.com/lensly/catalog-service/internal/syncerrors"
	"github.com/lensly/catalog-service/internal/types"
)

const pgUniqueViolation = "23505"

// Recorder writes vendor_sync_runs and vendor_sync_states rows.
type Recorder struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewRecorder creates a recorder backed by the shared pool.
func NewRecorder(pool *pgxpool.Pool, logger zerolog.Logger) *Recorder {
	return &Recorder{pool: pool, logger: logger.With().Str("component", "runs").Logger()}
}

// Begin creates the pending run row for an invocation. The unique partial
// index on vendor_sync_runs enforces at-most-one non-terminal run per
// vendor; a second invocation surfaces already_running without creating
// a row.
func (r *Recorder) Begin(ctx context.Context, vendorID string, source types.RunSource, runBy string) (*database.SyncRun, error) {
	run := &database.SyncRun{
		ID:        ids.New("run"),
		VendorID:  vendorID,
		Status:    types.RunStatusPending,
		StartedAt: time.Now().UTC(),
		Source:    source,
		RunBy:     runBy,
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO vendor_sync_runs (id, vendor_id, status, started_at, source, run_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.ID, run.VendorID, string(run.Status), run.StartedAt, string(run.Source), run.RunBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, syncerrors.New(syncerrors.KindAlreadyRunning, "a sync run is already in flight for this vendor")
		}
		return nil, err
	}
	return run, nil
}

// MarkRunning transitions the run to running, immediately before fetch.
func (r *Recorder) MarkRunning(ctx context.Context, runID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE vendor_sync_runs SET status = $2 WHERE id = $1 AND status = $3
	`, runID, string(types.RunStatusRunning), string(types.RunStatusPending))
	return err
}

// CompleteSuccess records the terminal success transition together with
// the sync-state snapshot refresh in the caller's transaction, so the
// commit that applies the catalog patch also publishes the run outcome.
func (r *Recorder) CompleteSuccess(ctx context.Context, tx pgx.Tx, run *database.SyncRun, slug string, res *catalog.ApplyResult) error {
	finishedAt := time.Now().UTC()
	durationMs := finishedAt.Sub(run.StartedAt).Milliseconds()

	_, err := tx.Exec(ctx, `
		UPDATE vendor_sync_runs
		SET status = $2, finished_at = $3, duration_ms = $4, total_items = $5,
		    created_count = $6, updated_count = $7, tombstoned_count = $8, payload_hash = $9
		WHERE id = $1
	`, run.ID, string(types.RunStatusSuccess), finishedAt, durationMs, res.TotalItems,
		res.CreatedCount, res.UpdatedCount, res.TombstonedCount, res.Hash)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO vendor_sync_states
			(vendor, last_run_at, total_items, last_error, last_duration_ms, last_hash, last_source, last_run_by, updated_at)
		VALUES ($1, $2, $3, NULL, $4, $5, $6, $7, NOW())
		ON CONFLICT (vendor) DO UPDATE SET
			last_run_at = EXCLUDED.last_run_at,
			total_items = EXCLUDED.total_items,
			last_error = NULL,
			last_duration_ms = EXCLUDED.last_duration_ms,
			last_hash = EXCLUDED.last_hash,
			last_source = EXCLUDED.last_source,
			last_run_by = EXCLUDED.last_run_by,
			updated_at = NOW()
	`, slug, finishedAt, res.TotalItems, durationMs, res.Hash, string(run.Source), run.RunBy)
	return err
}

// CompleteFailure records the terminal failure transition and refreshes
// the sync state. The catalog is untouched by then (apply is atomic), so
// this runs in its own transaction. last_hash and total_items keep their
// last-success values: the no-op short circuit must survive intervening
// failures.
func (r *Recorder) CompleteFailure(ctx context.Context, run *database.SyncRun, slug string, runErr error) {
	finishedAt := time.Now().UTC()
	durationMs := finishedAt.Sub(run.StartedAt).Milliseconds()
	persisted := syncerrors.PersistedError(runErr)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Str("run_id", run.ID).Msg("failed to open failure-recording transaction")
		return
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE vendor_sync_runs
		SET status = $2, finished_at = $3, duration_ms = $4, error = $5
		WHERE id = $1
	`, run.ID, string(types.RunStatusFailed), finishedAt, durationMs, persisted); err != nil {
		r.logger.Error().Err(err).Str("run_id", run.ID).Msg("failed to record run failure")
		return
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO vendor_sync_states
			(vendor, last_run_at, last_error, last_duration_ms, last_source, last_run_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (vendor) DO UPDATE SET
			last_run_at = EXCLUDED.last_run_at,
			last_error = EXCLUDED.last_error,
			last_duration_ms = EXCLUDED.last_duration_ms,
			last_source = EXCLUDED.last_source,
			last_run_by = EXCLUDED.last_run_by,
			updated_at = NOW()
	`, slug, finishedAt, persisted, durationMs, string(run.Source), run.RunBy); err != nil {
		r.logger.Error().Err(err).Str("run_id", run.ID).Msg("failed to refresh sync state after failure")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Str("run_id", run.ID).Msg("failed to commit failure record")
	}
}

// State returns the latest-snapshot sync state for a vendor slug, or nil
// when the vendor has never completed a run.
func (r *Recorder) State(ctx context.Context, slug string) (*database.SyncState, error) {
	var st database.SyncState
	var lastErr, lastHash, lastSource, lastRunBy *string
	err := r.pool.QueryRow(ctx, `
		SELECT vendor, last_run_at, total_items, last_error, last_duration_ms, last_hash, last_source, last_run_by
		FROM vendor_sync_states
		WHERE vendor = $1
	`, slug).Scan(&st.Vendor, &st.LastRunAt, &st.TotalItems, &lastErr, &st.LastDurationMs, &lastHash, &lastSource, &lastRunBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.LastError = deref(lastErr)
	st.LastHash = deref(lastHash)
	st.LastSource = deref(lastSource)
	st.LastRunBy = deref(lastRunBy)
	return &st, nil
}

// PriorHash returns the last successful payload hash for a vendor, used
// by the no-op short circuit. Empty when the vendor has never succeeded.
func (r *Recorder) PriorHash(ctx context.Context, slug string) (string, error) {
	st, err := r.State(ctx, slug)
	if err != nil || st == nil {
		return "", err
	}
	return st.LastHash, nil
}

// ListFilter narrows a run listing.
type ListFilter struct {
	VendorID string
	Status   types.RunStatus
	Limit    int
	Offset   int
}

// List returns run rows newest-first with optional vendor/status filters.
func (r *Recorder) List(ctx context.Context, filter ListFilter) ([]database.SyncRun, error) {
	query, args := buildListQuery(filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []database.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func buildListQuery(filter ListFilter) (string, []any) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}

	query := `
		SELECT id, vendor_id, status, started_at, finished_at, duration_ms, source, run_by,
		       total_items, created_count, updated_count, tombstoned_count, payload_hash, error, created_at
		FROM vendor_sync_runs
		WHERE 1=1
	`
	args := []any{}
	if filter.VendorID != "" {
		args = append(args, filter.VendorID)
		query += fmt.Sprintf(" AND vendor_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY started_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return query, args
}

// FailInterrupted marks any run left non-terminal by a previous process
// as failed. Called once at startup, before the engine accepts work.
func (r *Recorder) FailInterrupted(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE vendor_sync_runs
		SET status = $1, finished_at = NOW(), error = $2
		WHERE status IN ($3, $4)
	`, string(types.RunStatusFailed), string(syncerrors.KindCancelled)+": process restart",
		string(types.RunStatusPending), string(types.RunStatusRunning))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanRun(rows pgx.Rows) (*database.SyncRun, error) {
	var run database.SyncRun
	var payloadHash, runErr *string
	if err := rows.Scan(&run.ID, &run.VendorID, &run.Status, &run.StartedAt, &run.FinishedAt,
		&run.DurationMillis, &run.Source, &run.RunBy, &run.TotalItems,
		&run.CreatedCount, &run.UpdatedCount, &run.TombstonedCount,
		&payloadHash, &runErr, &run.CreatedAt); err != nil {
		return nil, err
	}
	run.PayloadHash = deref(payloadHash)
	run.Error = deref(runErr)
	return &run, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
