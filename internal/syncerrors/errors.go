// Package syncerrors defines the classified error kinds surfaced by the
// catalog sync engine. Every failure that reaches a caller or a run row
// carries one of these stable identifiers plus a human-readable detail.
package syncerrors

import (
	"errors"
	"fmt"
)

// Kind is a stable error identifier. Kinds are part of the external
// contract: they are persisted on failed runs and returned in API
// envelopes, so existing values must never be renamed.
type Kind string

const (
	KindInvalidVendor      Kind = "invalid_vendor"
	KindVendorNotFound     Kind = "vendor_not_found"
	KindInvalidPayload     Kind = "invalid_payload"
	KindInvalidRequest     Kind = "invalid_request"
	KindMissingCredentials Kind = "missing_credentials"

	KindFetchHTTP    Kind = "fetch_failed/http"
	KindFetchParse   Kind = "fetch_failed/parse"
	KindFetchScraper Kind = "fetch_failed/scraper"
	KindFetchTimeout Kind = "fetch_failed/timeout"

	KindDuplicateSKU Kind = "normalization_failed/duplicate_sku"
	KindMissingField Kind = "normalization_failed/missing_field"

	KindAlreadyRunning Kind = "already_running"
	KindCancelled      Kind = "cancelled"
	KindServerError    Kind = "server_error"
)

// applyPrefix is the prefix for database failures during diff/apply. The
// db-specific detail is appended after the slash.
const applyPrefix = "apply_failed"

// maxPersistedDetail caps the detail persisted on a run row. Longer
// details are still logged in full.
const maxPersistedDetail = 2048

// Error is a classified engine error.
type Error struct {
	Kind   Kind
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a classified error with a formatted detail.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error, preserving it for errors.Is/As.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), cause: cause}
}

// Apply creates an apply_failed/<detail-kind> error for database failures
// inside the diff/apply transaction.
func Apply(detailKind string, cause error) *Error {
	return &Error{
		Kind:   Kind(applyPrefix + "/" + detailKind),
		Detail: causeDetail(cause),
		cause:  cause,
	}
}

func causeDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// KindOf extracts the Kind from err. Unclassified errors map to
// server_error so internals never leak as contract identifiers.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindServerError
}

// Classify returns err as a classified *Error, wrapping unclassified
// errors as server_error.
func Classify(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{Kind: KindServerError, Detail: err.Error(), cause: err}
}

// PersistedError renders err for storage on a run row: the classified
// kind plus detail truncated to the persistence cap. server_error details
// are withheld entirely; callers must log them instead.
func PersistedError(err error) string {
	se := Classify(err)
	if se.Kind == KindServerError {
		return string(KindServerError)
	}
	msg := se.Error()
	if len(msg) > maxPersistedDetail {
		msg = msg[:maxPersistedDetail]
	}
	return msg
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
