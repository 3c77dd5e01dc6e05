package exporters

import (
	"errors"
	"fmt"
)

// ErrConfiguration is wrapped by every error returned while building a
// pipeline from invalid options or config.
var ErrConfiguration = errors.New("invalid pipeline configuration")

// DecodeError reports a snapshot payload, typically a wrapped message
// field, that is not valid JSON.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode snapshot: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

func configErrorf(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, a...))
}
