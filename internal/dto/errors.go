package dto

import "errors"

var (
	// ErrPermissionDenied means the user refused location access. Terminal
	// for the attempt, actionable by the user.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrNoFixAvailable means both race sources failed to produce a fix.
	// Retryable.
	ErrNoFixAvailable = errors.New("no location fix available")
	// ErrInternalFailure wraps unexpected failures from external capabilities.
	ErrInternalFailure = errors.New("internal failure")
)

const (
	msgPermissionDenied = "Unable to access your location. Please allow location access and try again."
	msgNoFixAvailable   = "Unable to determine your location. Please try again."
	msgGenericFailure   = "Something went wrong while locating you. Please try again."
)

// UserMessage maps a top-level fetch error to the human-readable message
// published on the session. Cancellation never reaches this function; it is
// discarded before session state is touched.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return msgPermissionDenied
	case errors.Is(err, ErrNoFixAvailable):
		return msgNoFixAvailable
	default:
		return msgGenericFailure
	}
}
