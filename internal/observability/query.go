// Package observability serves the windowed, paginated read of a
// vendor's historical runs and alert events, intermixed and ordered by
// time descending.
package observability

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lensly/catalog-service/internal/syncerrors"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entry is one row of the intermixed feed.
type Entry struct {
	Kind    string    `json:"kind"` // "run" or "alert"
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Summary string    `json:"summary"`
	Detail  string    `json:"detail,omitempty"`
}

// Params selects the window. Start is inclusive, End exclusive.
type Params struct {
	VendorID   string
	VendorSlug string
	Start      time.Time
	End        time.Time
	Limit      int
	Cursor     string
}

// Page is one page of results. NextCursor is empty on the last page.
type Page struct {
	Entries    []Entry `json:"entries"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

// Service reads the run and alert history.
type Service struct {
	pool *pgxpool.Pool
}

// NewService creates an observability reader backed by the shared pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Query returns one page of runs and alerts for a vendor within
// [start, end), newest first, with (at, id) as the total order so ties
// survive pagination.
func (s *Service) Query(ctx context.Context, p Params) (*Page, error) {
	if p.Start.After(p.End) {
		return nil, syncerrors.New(syncerrors.KindInvalidRequest, "start must not be after end")
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}

	var after *cursor
	if p.Cursor != "" {
		c, err := decodeCursor(p.Cursor)
		if err != nil {
			return nil, syncerrors.New(syncerrors.KindInvalidRequest, "malformed cursor")
		}
		after = c
	}

	runs, err := s.runEntries(ctx, p, after)
	if err != nil {
		return nil, err
	}
	alerts, err := s.alertEntries(ctx, p, after)
	if err != nil {
		return nil, err
	}

	entries := append(runs, alerts...)
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].At.Equal(entries[j].At) {
			return entries[i].At.After(entries[j].At)
		}
		return entries[i].ID > entries[j].ID
	})

	page := &Page{}
	if len(entries) > p.Limit {
		entries = entries[:p.Limit]
		last := entries[len(entries)-1]
		page.NextCursor = encodeCursor(cursor{At: last.At, ID: last.ID})
	}
	page.Entries = entries
	return page, nil
}

func (s *Service) runEntries(ctx context.Context, p Params, after *cursor) ([]Entry, error) {
	query := `
		SELECT id, started_at, status, created_count, updated_count, tombstoned_count, error
		FROM vendor_sync_runs
		WHERE vendor_id = $1 AND started_at >= $2 AND started_at < $3
	`
	args := []any{p.VendorID, p.Start, p.End}
	if after != nil {
		args = append(args, after.At, after.ID)
		// COLLATE "C" pins the id tie-break to byte order so the SQL
		// keyset filter agrees with the in-memory merge sort.
		query += fmt.Sprintf(` AND (started_at, id COLLATE "C") < ($%d, $%d)`, len(args)-1, len(args))
	}
	args = append(args, p.Limit+1)
	query += fmt.Sprintf(` ORDER BY started_at DESC, id COLLATE "C" DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var id, status string
		var at time.Time
		var created, updated, tombstoned int
		var runErr *string
		if err := rows.Scan(&id, &at, &status, &created, &updated, &tombstoned, &runErr); err != nil {
			return nil, err
		}
		entry := Entry{
			Kind:    "run",
			ID:      id,
			At:      at,
			Summary: fmt.Sprintf("sync %s", status),
		}
		if runErr != nil && *runErr != "" {
			entry.Detail = *runErr
		} else {
			entry.Detail = fmt.Sprintf("+%d ~%d -%d", created, updated, tombstoned)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Service) alertEntries(ctx context.Context, p Params, after *cursor) ([]Entry, error) {
	query := `
		SELECT id, received_at, level, message
		FROM alert_events
		WHERE vendor = $1 AND received_at >= $2 AND received_at < $3
	`
	args := []any{p.VendorSlug, p.Start, p.End}
	if after != nil {
		args = append(args, after.At, after.ID)
		query += fmt.Sprintf(` AND (received_at, id COLLATE "C") < ($%d, $%d)`, len(args)-1, len(args))
	}
	args = append(args, p.Limit+1)
	query += fmt.Sprintf(` ORDER BY received_at DESC, id COLLATE "C" DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var id, level, message string
		var at time.Time
		if err := rows.Scan(&id, &at, &level, &message); err != nil {
			return nil, err
		}
		out = append(out, Entry{
			Kind:    "alert",
			ID:      id,
			At:      at,
			Summary: fmt.Sprintf("alert %s", level),
			Detail:  message,
		})
	}
	return out, rows.Err()
}

// cursor pins a position in the (at, id) descending order.
type cursor struct {
	At time.Time
	ID string
}

func encodeCursor(c cursor) string {
	raw := c.At.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (*cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	at, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, fmt.Errorf("cursor missing separator")
	}
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, err
	}
	return &cursor{At: t, ID: id}, nil
}
