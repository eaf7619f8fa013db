package jamf

import "errors"

var (
	errUnexpectedStatusCode = errors.New("unexpected status code")
	errNotAuthenticated     = errors.New("client not authenticated")
	errEmptyToken           = errors.New("empty token in response")

	// ErrAuthFailed is returned when Jamf rejects the configured credentials.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrNotFound is returned when a device id does not exist.
	ErrNotFound = errors.New("device not found")
)
