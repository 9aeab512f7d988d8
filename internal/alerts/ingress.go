// Package alerts persists operator alert events and builds the toast
// receipt shown by monitoring clients.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/lensly/catalog-service/internal/database"
	"github.com/lensly/catalog-service/internal/pkg/ids"
	"github.com/lensly/catalog-service/internal/syncerrors"
	"github.com/lensly/catalog-service/internal/types"
)

// IngestRequest is the alert ingress payload.
type IngestRequest struct {
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Vendors []string          `json:"vendors,omitempty"`
	Context map[string]string `json:"context,omitempty"`
}

// Toast carries the display hint returned to the caller.
type Toast struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tone        string `json:"tone"`
}

// Receipt acknowledges an accepted alert.
type Receipt struct {
	Received int   `json:"received"`
	Toast    Toast `json:"toast"`
}

// Ingress writes alert events.
type Ingress struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewIngress creates an alert writer backed by the shared pool.
func NewIngress(pool *pgxpool.Pool, logger zerolog.Logger) *Ingress {
	return &Ingress{pool: pool, logger: logger.With().Str("component", "alerts").Logger()}
}

// Ingest validates and stores an alert. A request naming vendors is
// fanned out into one event per distinct vendor so each vendor's
// history stays self-contained; without vendors a single unattached
// event is written.
func (i *Ingress) Ingest(ctx context.Context, req IngestRequest) (*Receipt, error) {
	level := types.AlertLevel(strings.ToLower(strings.TrimSpace(req.Level)))
	if !types.ValidAlertLevel(level) {
		return nil, syncerrors.New(syncerrors.KindInvalidPayload, "unknown alert level %q", req.Level)
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, syncerrors.New(syncerrors.KindInvalidPayload, "message is required")
	}

	vendors := distinctVendors(req.Vendors)
	events := make([]database.AlertEvent, 0, len(vendors)+1)
	now := time.Now().UTC()
	if len(vendors) == 0 {
		events = append(events, database.AlertEvent{
			ID:         ids.New("alert"),
			Level:      level,
			Message:    message,
			ReceivedAt: now,
			Context:    req.Context,
		})
	}
	for _, v := range vendors {
		events = append(events, database.AlertEvent{
			ID:         ids.New("alert"),
			Vendor:     v,
			Level:      level,
			Message:    message,
			ReceivedAt: now,
			Context:    req.Context,
		})
	}

	for _, ev := range events {
		if err := i.insert(ctx, ev); err != nil {
			return nil, syncerrors.Wrap(syncerrors.KindServerError, err, "store alert")
		}
	}

	i.logger.Info().
		Str("level", string(level)).
		Int("events", len(events)).
		Strs("vendors", vendors).
		Msg("alert ingested")

	return &Receipt{Received: len(events), Toast: buildToast(level, message, vendors)}, nil
}

// NotifyRunFailure records the engine-generated error alert for a
// failed sync run.
func (i *Ingress) NotifyRunFailure(ctx context.Context, vendorSlug, detail string) error {
	_, err := i.Ingest(ctx, IngestRequest{
		Level:   string(types.AlertError),
		Message: fmt.Sprintf("%s sync failed: %s", vendorSlug, detail),
		Vendors: []string{vendorSlug},
	})
	return err
}

func (i *Ingress) insert(ctx context.Context, ev database.AlertEvent) error {
	var vendor *string
	if ev.Vendor != "" {
		vendor = &ev.Vendor
	}
	var contextJSON *string
	if len(ev.Context) > 0 {
		raw, err := json.Marshal(ev.Context)
		if err != nil {
			return err
		}
		s := string(raw)
		contextJSON = &s
	}
	_, err := i.pool.Exec(ctx, `
		INSERT INTO alert_events (id, vendor, level, message, received_at, context)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
	`, ev.ID, vendor, string(ev.Level), ev.Message, ev.ReceivedAt, contextJSON)
	return err
}

func distinctVendors(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func buildToast(level types.AlertLevel, message string, vendors []string) Toast {
	title := "Alert received"
	switch {
	case len(vendors) == 1:
		title = fmt.Sprintf("Alert for %s", vendors[0])
	case len(vendors) > 1:
		title = fmt.Sprintf("Alert for %d vendors", len(vendors))
	}
	return Toast{
		Title:       title,
		Description: message,
		Tone:        toneFor(level),
	}
}

func toneFor(level types.AlertLevel) string {
	switch level {
	case types.AlertError:
		return "destructive"
	case types.AlertWarn:
		return "warning"
	default:
		return "default"
	}
}
