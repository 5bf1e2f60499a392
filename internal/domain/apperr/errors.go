// Package apperr holds the error taxonomy shared by services and transports.
package apperr

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrValidation      = errors.New("validation error")
	ErrInvalidTarget   = errors.New("invalid swipe target")
	ErrQuotaExceeded   = errors.New("daily swipe quota exceeded")
	ErrNotAMember      = errors.New("not a member of the match")
	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("already exists")
	ErrTransientStore  = errors.New("store temporarily unavailable")
	ErrTooFast         = errors.New("too fast")
)

// Transient wraps err so that errors.Is(err, ErrTransientStore) holds while
// keeping the original cause in the chain.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{cause: err}
}

type transientError struct {
	cause error
}

func (e *transientError) Error() string {
	return ErrTransientStore.Error() + ": " + e.cause.Error()
}

func (e *transientError) Unwrap() []error {
	return []error{ErrTransientStore, e.cause}
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientStore)
}
