package audio

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrNoAudio           = errors.New("file contains no audio data")
	ErrTooLong           = errors.New("recording exceeds the maximum duration")
)

// DecodeError is returned for unreadable or unsupported audio files.
type DecodeError struct {
	Message string
	Cause   error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

func decodeError(msg string, cause error) error {
	return &DecodeError{Message: msg, Cause: cause}
}
