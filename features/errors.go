package features

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySignal       = errors.New("empty signal")
	ErrSilentSignal      = errors.New("silent signal")
	ErrInvalidSampleRate = errors.New("invalid sample rate")
)

// ExtractionError is returned whenever a signal cannot be reduced to a valid
// feature vector.
type ExtractionError struct {
	Message string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

func extractionError(msg string, cause error) error {
	return &ExtractionError{Message: msg, Cause: cause}
}
