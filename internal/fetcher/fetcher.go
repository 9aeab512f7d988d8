// Package fetcher pulls raw catalog payloads for one vendor: a single
// authenticated GET for API integrations, or a child-process invocation
// plus JSON read for scraper integrations. The fetcher never retries;
// retry policy belongs to the caller.
package fetcher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lensly/catalog-service/internal/database"
	"github.com/lensly/catalog-service/internal/syncerrors"
	"github.com/lensly/catalog-service/internal/types"
)

// maxBodyBytes caps how much of a vendor response is read into memory.
const maxBodyBytes = 64 << 20 // 64 MiB

// Fetcher resolves a vendor integration to its raw catalog payload.
type Fetcher struct {
	client  *http.Client
	invoker Invoker
	workDir string
	logger  zerolog.Logger
}

// New creates a fetcher. The invoker runs scraper executables; pass a
// fake in tests to avoid spawning processes.
func New(invoker Invoker, workDir string, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			// Per-request deadlines come from the caller's context;
			// this is a hard backstop only.
			Timeout: 10 * time.Minute,
		},
		invoker: invoker,
		workDir: workDir,
		logger:  logger.With().Str("component", "fetcher").Logger(),
	}
}

// Fetch pulls the raw payload for one integration. The context carries
// the fetch deadline; expiry maps to fetch_failed/timeout.
func (f *Fetcher) Fetch(ctx context.Context, integ *database.VendorIntegration) (*types.RawPayload, error) {
	if integ == nil {
		return nil, syncerrors.New(syncerrors.KindMissingCredentials, "vendor has no integration configured")
	}

	switch integ.Type {
	case types.IntegrationAPI:
		return f.fetchHTTP(ctx, integ)
	case types.IntegrationScraper:
		return f.fetchScraper(ctx, integ)
	default:
		return nil, syncerrors.New(syncerrors.KindMissingCredentials, "unknown integration type %q", integ.Type)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, integ *database.VendorIntegration) (*types.RawPayload, error) {
	if integ.APIBaseURL == "" {
		return nil, syncerrors.New(syncerrors.KindMissingCredentials, "API integration has no apiBaseUrl")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, integ.APIBaseURL, nil)
	if err != nil {
		return nil, syncerrors.Wrap(syncerrors.KindFetchHTTP, err, "building request for %s", integ.APIBaseURL)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Lensly-CatalogService/1.0")
	applyAuth(req, integ)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxExpired(ctx, err) {
			return nil, syncerrors.Wrap(syncerrors.KindFetchTimeout, err, "GET %s timed out", integ.APIBaseURL)
		}
		return nil, syncerrors.Wrap(syncerrors.KindFetchHTTP, err, "GET %s", integ.APIBaseURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxExpired(ctx, err) {
			return nil, syncerrors.Wrap(syncerrors.KindFetchTimeout, err, "reading %s timed out", integ.APIBaseURL)
		}
		return nil, syncerrors.Wrap(syncerrors.KindFetchHTTP, err, "reading response from %s", integ.APIBaseURL)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, syncerrors.New(syncerrors.KindFetchHTTP, "GET %s returned status %d", integ.APIBaseURL, resp.StatusCode)
	}

	if !json.Valid(body) {
		return nil, syncerrors.New(syncerrors.KindFetchParse, "response from %s is not valid JSON", integ.APIBaseURL)
	}

	f.logger.Debug().Str("url", integ.APIBaseURL).Int("bytes", len(body)).Msg("fetched catalog over HTTP")
	return &types.RawPayload{Body: body, Source: "http", FetchedAt: time.Now().UTC()}, nil
}

// applyAuth sets the auth header per the integration's apiAuthType:
// bearer, basic (key already user:pass), custom X-API-Key, or none.
func applyAuth(req *http.Request, integ *database.VendorIntegration) {
	if integ.APIKey == "" {
		return
	}
	switch integ.APIAuthType {
	case types.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+integ.APIKey)
	case types.AuthBasic:
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(integ.APIKey)))
	case types.AuthCustomHeader:
		req.Header.Set("X-API-Key", integ.APIKey)
	case types.AuthNone:
		// explicit no-auth even when a key is stored
	}
}

func ctxExpired(ctx context.Context, err error) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded)
}
