package credential

import (
	"errors"
	"fmt"
)

// FetchError means the credential endpoint answered, but with a failure
// status or a body that could not be turned into a credential.
type FetchError struct {
	ReportID   string
	Reason     string
	HTTPStatus int // 0 when the failure was not tied to a response
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("credential fetch for %q failed (HTTP %d): %s", e.ReportID, e.HTTPStatus, e.Reason)
	}
	return fmt.Sprintf("credential fetch for %q failed: %s", e.ReportID, e.Reason)
}

// TransportError means the request could not complete at all.
type TransportError struct {
	ReportID string
	Err      error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("credential request for %q could not complete: %v", e.ReportID, e.Err)
}

// Unwrap returns the underlying network error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsFetchError reports whether err is or wraps a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// StatusCode returns the HTTP status carried by a *FetchError in err's chain,
// or 0.
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.HTTPStatus
	}
	return 0
}
