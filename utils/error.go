package utils

import (
	"errors"
	"fmt"
)

var (
	ErrorRecordNotFound = errors.New("record not found")

	// ErrInvalidInput is returned before any query is issued.
	ErrInvalidInput = errors.New("invalid input")

	// ErrFeeConfigMissing means the event has no usable fee record; settlement fails closed.
	ErrFeeConfigMissing = errors.New("fee configuration missing")
)

// FetchError marks an upstream read failure (a channel source, the credential store, ...).
// It is never used for "zero records"; callers surface it as retryable.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewFetchError(source string, err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Source: source, Err: err}
}

// InvalidInput wraps ErrInvalidInput with a reason.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// IsFetchError reports whether err is (or wraps) an upstream fetch failure.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
