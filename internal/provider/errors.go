package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// TransientError indicates a failure that is expected to clear on its own:
// network errors, rate limits, provider 5xx responses. Callers may retry or
// leave the account for the next scheduled cycle. A transient failure never
// flags an account for reauthorization.
type TransientError struct {
	// Op is the operation that failed (e.g., "fetch_tasks", "refresh_token")
	Op string

	// Err is the underlying error
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalAuthError indicates the stored credentials are unusable without user
// interaction: rejected refresh token, invalid client credentials, or a
// malformed stored credential. It is the only error class that sets the
// account's needs_reauth flag.
type FatalAuthError struct {
	Op  string
	Err error
}

func (e *FatalAuthError) Error() string {
	return fmt.Sprintf("%s: authorization failure: %v", e.Op, e.Err)
}

func (e *FatalAuthError) Unwrap() error { return e.Err }

// DataError indicates a malformed provider payload, such as an unparsable
// due date. A DataError on a single item is logged and the item skipped; it
// is never fatal to a whole fetch.
type DataError struct {
	Op  string
	Err error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s: bad provider data: %v", e.Op, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatalAuth reports whether err is (or wraps) a FatalAuthError.
func IsFatalAuth(err error) bool {
	var fe *FatalAuthError
	return errors.As(err, &fe)
}

// IsDataError reports whether err is (or wraps) a DataError.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// ClassifyHTTPStatus maps an HTTP response status from a provider API onto
// the error taxonomy. Auth-class statuses become fatal auth failures,
// rate limits and server errors become transient, payload rejections become
// data errors.
func ClassifyHTTPStatus(op string, status int, body string) error {
	if status < 400 {
		return nil
	}

	err := fmt.Errorf("unexpected status %d: %s", status, body)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &FatalAuthError{Op: op, Err: err}
	case status == http.StatusTooManyRequests || status >= 500:
		return &TransientError{Op: op, Err: err}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return &DataError{Op: op, Err: err}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// ClassifyTransportError wraps request-level failures (DNS, connection reset,
// timeouts) as transient. Context cancellation passes through unchanged so
// callers can distinguish shutdown from provider trouble.
func ClassifyTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &TransientError{Op: op, Err: err}
}
