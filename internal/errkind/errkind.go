// Package errkind tags errors with the small set of user-facing kinds the UI
// knows how to report. Packages keep wrapping with fmt.Errorf and %w; a kind
// is attached once, at the layer that can tell what went wrong.
package errkind

import (
	"errors"
	"fmt"
)

// Kind classifies an error for presentation.
type Kind string

const (
	// Unknown is returned by KindOf for untagged errors.
	Unknown Kind = "unknown"
	// Credential means an upstream service rejected the supplied key.
	Credential Kind = "credential"
	// Parse means an uploaded document could not be read.
	Parse Kind = "parse"
	// ServiceUnavailable means an upstream service failed, timed out or
	// returned something unusable.
	ServiceUnavailable Kind = "service_unavailable"
	// Config means the process configuration is unusable.
	Config Kind = "config"
	// Invalid means the caller sent a malformed request.
	Invalid Kind = "invalid"
	// NotReady means the action needs an index that has not been built yet.
	NotReady Kind = "not_ready"
)

// Error carries a Kind alongside the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with kind. It returns nil when err is nil. An error that
// already carries a kind keeps it.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if op == "" {
			return err
		}
		return &Error{Kind: existing.Kind, Op: op, Err: err}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// New creates a tagged error from a format string.
func New(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the outermost kind in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FromHTTPStatus maps an upstream HTTP status to a kind: 401 and 403 are
// credential failures, other 4xx mean the request was misconfigured, and
// everything else is treated as the service being unavailable.
func FromHTTPStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return Credential
	case status == 429:
		return ServiceUnavailable
	case status >= 400 && status < 500:
		return Config
	default:
		return ServiceUnavailable
	}
}
