// Package apperr classifies failures of remote calls into retryable kinds.
package apperr

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/uptrace/bun/driver/pgdriver"
)

type Kind string

const (
	// NetworkFailure means the remote could not be reached or did not answer in time.
	NetworkFailure Kind = "network_failure"
	// RemoteRejection means the remote answered with a structured error.
	RemoteRejection Kind = "remote_rejection"
)

// ErrNotFound is returned by lookups of a single record that does not exist.
var ErrNotFound = errors.New("not found")

// Error is a classified failure attached to the stream or call that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a retry affordance should be offered. Both kinds are transient
// from the caller's point of view.
func (e *Error) Retryable() bool {
	return e.Kind == NetworkFailure || e.Kind == RemoteRejection
}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind      Kind   `json:"kind"`
		Op        string `json:"op"`
		Message   string `json:"message"`
		Retryable bool   `json:"retryable"`
	}{e.Kind, e.Op, e.Err.Error(), e.Retryable()})
}

// Classify wraps err with its kind. It returns nil for a nil error and keeps an
// already classified error as is.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	return &Error{Kind: kindOf(err), Op: op, Err: err}
}

// IsCanceled reports whether err only reflects a canceled request.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

func kindOf(err error) Kind {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return RemoteRejection
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, ErrNotFound) {
		return RemoteRejection
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone):
		return NetworkFailure
	}
	return RemoteRejection
}
