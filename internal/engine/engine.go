// Package engine drives vendor catalog sync runs: resolve the vendor,
// fetch the raw payload, transform and normalize it, then diff/apply
// against the stored catalog inside one transaction together with the
// terminal run record.
package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/lensly/catalog-service/config"
	"github.com/lensly/catalog-service/internal/adapters/sdk"
	"github.com/lensly/catalog-service/internal/catalog"
	"github.com/lensly/catalog-service/internal/database"
	"github.com/lensly/catalog-service/internal/metrics"
	"github.com/lensly/catalog-service/internal/syncerrors"
	"github.com/lensly/catalog-service/internal/types"
)

// TxBeginner opens the transaction shared by diff/apply and the
// terminal run record. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// VendorSource resolves vendors with their integration credentials.
type VendorSource interface {
	GetWithSecrets(ctx context.Context, slug string) (*database.Vendor, error)
	List(ctx context.Context) ([]database.Vendor, error)
}

// PayloadFetcher retrieves a vendor's raw catalog payload.
type PayloadFetcher interface {
	Fetch(ctx context.Context, integ *database.VendorIntegration) (*types.RawPayload, error)
}

// AdapterIndex looks up the registered transform for a vendor slug.
type AdapterIndex interface {
	Get(slug string) (sdk.Adapter, bool)
}

// CatalogApplier writes normalized items against the stored catalog.
type CatalogApplier interface {
	Apply(ctx context.Context, tx pgx.Tx, vendorID string, items []types.NormalizedItem, priorHash string) (*catalog.ApplyResult, error)
}

// RunBook records run lifecycle transitions.
type RunBook interface {
	Begin(ctx context.Context, vendorID string, source types.RunSource, runBy string) (*database.SyncRun, error)
	MarkRunning(ctx context.Context, runID string) error
	CompleteSuccess(ctx context.Context, tx pgx.Tx, run *database.SyncRun, slug string, res *catalog.ApplyResult) error
	CompleteFailure(ctx context.Context, run *database.SyncRun, slug string, runErr error)
	PriorHash(ctx context.Context, slug string) (string, error)
}

// FailureNotifier records the operator alert written for a failed run.
type FailureNotifier interface {
	NotifyRunFailure(ctx context.Context, vendorSlug, detail string) error
}

// Engine composes the sync pipeline.
type Engine struct {
	pool     TxBeginner
	vendors  VendorSource
	fetcher  PayloadFetcher
	adapters AdapterIndex
	catalog  CatalogApplier
	runs     RunBook
	notifier FailureNotifier
	metrics  *metrics.Recorder
	sync     config.SyncConfig
	logger   zerolog.Logger
}

// New wires an engine from its collaborators.
func New(
	pool TxBeginner,
	vendors VendorSource,
	fetcher PayloadFetcher,
	adapters AdapterIndex,
	cat CatalogApplier,
	runs RunBook,
	notifier FailureNotifier,
	rec *metrics.Recorder,
	syncCfg config.SyncConfig,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		pool:     pool,
		vendors:  vendors,
		fetcher:  fetcher,
		adapters: adapters,
		catalog:  cat,
		runs:     runs,
		notifier: notifier,
		metrics:  rec,
		sync:     syncCfg,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// RunOne executes a full sync run for one vendor. Pre-flight failures
// (unknown vendor, missing credentials, no adapter, a run already in
// flight) return an error without recording a run; once a run row
// exists every failure is recorded on it before returning.
func (e *Engine) RunOne(ctx context.Context, slug string, source types.RunSource, runBy string) (outcome *types.RunOutcome, err error) {
	ctx, span := otel.Tracer("catalog-service/engine").Start(ctx, "sync.run",
		trace.WithAttributes(
			attribute.String("vendor.slug", slug),
			attribute.String("run.source", string(source)),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, string(syncerrors.KindOf(err)))
		}
		span.End()
	}()

	vendor, err := e.vendors.GetWithSecrets(ctx, slug)
	if err != nil {
		return nil, err
	}
	if vendor.Integration == nil {
		return nil, syncerrors.New(syncerrors.KindMissingCredentials, "vendor %s has no integration configured", slug)
	}
	adapter, ok := e.adapters.Get(slug)
	if !ok {
		return nil, syncerrors.New(syncerrors.KindInvalidVendor, "no adapter registered for %s", slug)
	}

	run, err := e.runs.Begin(ctx, vendor.ID, source, runBy)
	if err != nil {
		return nil, err
	}
	logger := e.logger.With().Str("vendor", slug).Str("run_id", run.ID).Logger()
	logger.Info().Str("source", string(source)).Str("run_by", runBy).Msg("sync run started")

	if err := e.runs.MarkRunning(ctx, run.ID); err != nil {
		return e.fail(ctx, run, slug, err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.sync.FetchTimeoutFor(slug))
	fetchStart := time.Now()
	payload, err := e.fetcher.Fetch(fetchCtx, vendor.Integration)
	cancel()
	if err != nil {
		return e.fail(ctx, run, slug, err)
	}
	e.metrics.RecordFetch(slug, payload.Source, time.Since(fetchStart))

	rawItems, err := adapter.Transform(payload.Body)
	if err != nil {
		return e.fail(ctx, run, slug, classifyTransform(err))
	}
	normalized, err := catalog.Normalize(rawItems)
	if err != nil {
		return e.fail(ctx, run, slug, err)
	}

	priorHash, err := e.runs.PriorHash(ctx, slug)
	if err != nil {
		return e.fail(ctx, run, slug, err)
	}

	applyCtx, cancelApply := context.WithTimeout(ctx, e.sync.ApplyTimeout)
	defer cancelApply()
	res, err := e.apply(applyCtx, run, vendor, normalized.Items, priorHash)
	if err != nil {
		return e.fail(ctx, run, slug, err)
	}

	duration := time.Since(run.StartedAt)
	e.metrics.RecordRun(slug, string(types.RunStatusSuccess), duration)
	e.metrics.RecordMutations(slug, res.CreatedCount, res.UpdatedCount, res.TombstonedCount)
	e.metrics.SetCatalogSize(slug, res.TotalItems)
	if res.NoOp {
		e.metrics.RecordNoop(slug)
	}
	logger.Info().
		Int("total_items", res.TotalItems).
		Int("created", res.CreatedCount).
		Int("updated", res.UpdatedCount).
		Int("tombstoned", res.TombstonedCount).
		Int("dropped", normalized.Dropped).
		Bool("noop", res.NoOp).
		Dur("duration", duration).
		Msg("sync run succeeded")

	finished := time.Now().UTC()
	return &types.RunOutcome{
		OK:              true,
		RunID:           run.ID,
		Vendor:          slug,
		Status:          types.RunStatusSuccess,
		TotalItems:      res.TotalItems,
		CreatedCount:    res.CreatedCount,
		UpdatedCount:    res.UpdatedCount,
		TombstonedCount: res.TombstonedCount,
		DroppedCount:    normalized.Dropped,
		PayloadHash:     res.Hash,
		StartedAt:       run.StartedAt,
		FinishedAt:      &finished,
		DurationMillis:  duration.Milliseconds(),
	}, nil
}

// apply runs the diff/apply and the terminal run record in one
// transaction, so the catalog mutation and the success row commit or
// roll back together.
func (e *Engine) apply(ctx context.Context, run *database.SyncRun, vendor *database.Vendor, items []types.NormalizedItem, priorHash string) (*catalog.ApplyResult, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, syncerrors.Apply("begin", err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	res, err := e.catalog.Apply(ctx, tx, vendor.ID, items, priorHash)
	if err != nil {
		return nil, err
	}
	if err := e.runs.CompleteSuccess(ctx, tx, run, vendor.Slug, res); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, syncerrors.Apply("commit", err)
	}
	return res, nil
}

func (e *Engine) fail(ctx context.Context, run *database.SyncRun, slug string, runErr error) (*types.RunOutcome, error) {
	if errors.Is(runErr, context.Canceled) && !syncerrors.IsKind(runErr, syncerrors.KindFetchTimeout) {
		runErr = syncerrors.Wrap(syncerrors.KindCancelled, runErr, "run cancelled")
	}

	// Bookkeeping must survive the caller's cancellation.
	recordCtx := context.WithoutCancel(ctx)
	e.runs.CompleteFailure(recordCtx, run, slug, runErr)

	detail := syncerrors.PersistedError(runErr)
	if err := e.notifier.NotifyRunFailure(recordCtx, slug, detail); err != nil {
		e.logger.Error().Err(err).Str("vendor", slug).Msg("failed to record run failure alert")
	}
	e.metrics.RecordRun(slug, string(types.RunStatusFailed), time.Since(run.StartedAt))
	e.metrics.RecordRunError(slug, string(syncerrors.KindOf(runErr)))
	e.logger.Error().Err(runErr).Str("vendor", slug).Str("run_id", run.ID).Msg("sync run failed")

	finished := time.Now().UTC()
	return &types.RunOutcome{
		RunID:          run.ID,
		Vendor:         slug,
		Status:         types.RunStatusFailed,
		Error:          detail,
		StartedAt:      run.StartedAt,
		FinishedAt:     &finished,
		DurationMillis: time.Since(run.StartedAt).Milliseconds(),
	}, runErr
}

// RunAll syncs every vendor with a configured integration, best effort:
// one vendor's failure never stops the others. Runs execute in parallel
// up to the configured limit, and outcomes come back sorted by slug.
func (e *Engine) RunAll(ctx context.Context, source types.RunSource, runBy string) ([]types.RunOutcome, error) {
	vendorsList, err := e.vendors.List(ctx)
	if err != nil {
		return nil, err
	}

	limit := e.sync.MaxParallel
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	outcomes := make([]*types.RunOutcome, len(vendorsList))
	for i, v := range vendorsList {
		if v.Integration == nil {
			continue
		}
		g.Go(func() error {
			outcome, runErr := e.RunOne(gctx, v.Slug, source, runBy)
			if outcome == nil {
				// Pre-flight rejection: report it without a run id.
				outcome = &types.RunOutcome{
					Vendor: v.Slug,
					Status: types.RunStatusFailed,
					Error:  syncerrors.PersistedError(runErr),
				}
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]types.RunOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o != nil {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vendor < out[j].Vendor })
	return out, nil
}

// classifyTransform maps adapter transform failures onto the
// normalization error contract unless the adapter already classified
// them.
func classifyTransform(err error) error {
	var se *syncerrors.Error
	if errors.As(err, &se) {
		return err
	}
	return syncerrors.Wrap(syncerrors.KindMissingField, err, "adapter transform")
}
