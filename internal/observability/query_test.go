package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensly/catalog-service/internal/syncerrors"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC)
	encoded := encodeCursor(cursor{At: at, ID: "run_abc"})

	decoded, err := decodeCursor(encoded)
	require.NoError(t, err)
	assert.True(t, decoded.At.Equal(at))
	assert.Equal(t, "run_abc", decoded.ID)
}

func TestCursorRejectsGarbage(t *testing.T) {
	_, err := decodeCursor("not base64!!")
	assert.Error(t, err)

	_, err = decodeCursor(encodeCursor(cursor{At: time.Now()})[:4])
	assert.Error(t, err)
}

func TestQueryRejectsInvertedWindow(t *testing.T) {
	s := NewService(nil)
	_, err := s.Query(context.Background(), Params{
		VendorID: "ven_x",
		Start:    time.Now(),
		End:      time.Now().Add(-time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, syncerrors.KindInvalidRequest, syncerrors.KindOf(err))
}

func TestQueryRejectsMalformedCursor(t *testing.T) {
	s := NewService(nil)
	_, err := s.Query(context.Background(), Params{
		VendorID: "ven_x",
		Start:    time.Now().Add(-time.Hour),
		End:      time.Now(),
		Cursor:   "%%%",
	})
	require.Error(t, err)
	assert.Equal(t, syncerrors.KindInvalidRequest, syncerrors.KindOf(err))
}
