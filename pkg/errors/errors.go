package errors

import "errors"

// Sentinels shared across the dialer.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrValidation       = errors.New("validation error")
	ErrUnavailable      = errors.New("service unavailable")
	ErrLeadSource       = errors.New("lead source failed")
	ErrProviderRejected = errors.New("provider rejected call")
	ErrClosed           = errors.New("dialer closed")
)

// Is reports whether err is one of the sentinels.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Wrap adds context to an error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Join(errors.New(message), err)
}
