package syncerrors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindFetchHTTP, KindOf(New(KindFetchHTTP, "status 503")))
	assert.Equal(t, KindServerError, KindOf(errors.New("plain error")))

	wrapped := fmt.Errorf("outer: %w", New(KindAlreadyRunning, "in flight"))
	assert.Equal(t, KindAlreadyRunning, KindOf(wrapped))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindFetchHTTP, cause, "GET /catalog")

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "fetch_failed/http: GET /catalog", err.Error())
}

func TestApplyBuildsDetailKind(t *testing.T) {
	err := Apply("tombstone", errors.New("deadlock detected"))

	assert.Equal(t, Kind("apply_failed/tombstone"), err.Kind)
	assert.Equal(t, "deadlock detected", err.Detail)
}

func TestPersistedErrorWithholdsServerDetail(t *testing.T) {
	got := PersistedError(errors.New("password=hunter2 refused"))

	assert.Equal(t, "server_error", got)
	assert.NotContains(t, got, "hunter2")
}

func TestPersistedErrorTruncates(t *testing.T) {
	err := New(KindFetchScraper, "%s", strings.Repeat("x", 3*maxPersistedDetail))

	got := PersistedError(err)
	assert.Len(t, got, maxPersistedDetail)
	assert.True(t, strings.HasPrefix(got, "fetch_failed/scraper: "))
}

func TestIsKind(t *testing.T) {
	assert.True(t, IsKind(New(KindDuplicateSKU, "sku A-1"), KindDuplicateSKU))
	assert.False(t, IsKind(New(KindDuplicateSKU, "sku A-1"), KindFetchHTTP))
	assert.True(t, IsKind(errors.New("anything"), KindServerError))
}
