package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/lensly/catalog-service/internal/database"
	"github.com/lensly/catalog-service/internal/syncerrors"
	"github.com/lensly/catalog-service/internal/types"
)

// maxStderrBytes bounds the stderr captured into a fetch_failed/scraper
// error detail.
const maxStderrBytes = 4 << 10 // 4 KiB

// Invoker runs a scraper executable and returns its stdout and stderr.
// The implementation must reap the child process even when ctx is
// cancelled; a leaked process is a correctness bug.
type Invoker interface {
	Invoke(ctx context.Context, path, workDir string) (stdout, stderr []byte, err error)
}

// ExecInvoker runs scrapers as real child processes.
type ExecInvoker struct{}

// Invoke spawns the executable with no arguments, inheriting the
// environment. Cancellation kills the process group; WaitDelay makes
// sure Wait returns and the child is reaped even if it ignores the kill.
func (ExecInvoker) Invoke(ctx context.Context, path, workDir string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, path)
	cmd.Dir = workDir
	cmd.Env = os.Environ()
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func (f *Fetcher) fetchScraper(ctx context.Context, integ *database.VendorIntegration) (*types.RawPayload, error) {
	if integ.ScraperPath == "" {
		return nil, syncerrors.New(syncerrors.KindMissingCredentials, "SCRAPER integration has no scraperPath")
	}

	stdout, stderr, err := f.invoker.Invoke(ctx, integ.ScraperPath, f.workDir)
	if err != nil {
		if ctxExpired(ctx, err) {
			return nil, syncerrors.Wrap(syncerrors.KindFetchTimeout, err, "scraper %s timed out", integ.ScraperPath)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, syncerrors.New(syncerrors.KindFetchScraper,
				"scraper %s exited with code %d: %s", integ.ScraperPath, exitErr.ExitCode(), truncate(stderr, maxStderrBytes))
		}
		return nil, syncerrors.Wrap(syncerrors.KindFetchScraper, err, "running scraper %s", integ.ScraperPath)
	}

	body, err := scraperOutput(stdout, f.workDir)
	if err != nil {
		return nil, err
	}

	f.logger.Debug().Str("path", integ.ScraperPath).Int("bytes", len(body)).Msg("fetched catalog via scraper")
	return &types.RawPayload{Body: body, Source: "file", FetchedAt: time.Now().UTC()}, nil
}

// scraperOutput interprets a scraper's stdout per the contract: either
// the full JSON payload on stdout, or a JSON file whose path is the last
// non-empty stdout line.
func scraperOutput(stdout []byte, workDir string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return nil, syncerrors.New(syncerrors.KindFetchParse, "scraper produced no output")
	}

	if json.Valid(trimmed) {
		return trimmed, nil
	}

	lines := strings.Split(string(trimmed), "\n")
	var path string
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			path = l
			break
		}
	}
	if !filepath.IsAbs(path) && workDir != "" {
		path = filepath.Join(workDir, path)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, syncerrors.Wrap(syncerrors.KindFetchParse, err, "reading scraper output file %s", path)
	}
	if !json.Valid(body) {
		return nil, syncerrors.New(syncerrors.KindFetchParse, "scraper output file %s is not valid JSON", path)
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n]
	}
	return s
}
