package auth

import (
	"errors"
	"fmt"
)

// FailureReason classifies why a remote identity call failed.
type FailureReason string

const (
	ReasonMissingToken    FailureReason = "missing_token"
	ReasonInvalidToken    FailureReason = "invalid_token"
	ReasonExpiredToken    FailureReason = "expired_token"
	ReasonNetworkError    FailureReason = "network_error"
	ReasonAuthServerError FailureReason = "auth_server_error"
	ReasonUnknownError    FailureReason = "unknown_error"
)

// Transient reports whether the failure came from the provider being
// unreachable rather than from the credentials themselves.
func (r FailureReason) Transient() bool {
	return r == ReasonNetworkError || r == ReasonAuthServerError
}

// Failure is the error returned by every remote identity operation.
type Failure struct {
	Reason FailureReason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Reason)
	}
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(reason FailureReason, err error) *Failure {
	return &Failure{Reason: reason, Err: err}
}

// ReasonOf extracts the failure reason from err. Errors that did not originate
// from a remote identity call classify as unknown_error.
func ReasonOf(err error) FailureReason {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return ReasonUnknownError
}
