// Package errs holds the error kinds returned by the simulation packages.
// Callers match them with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports an invalid or inconsistent simulation input.
	// It is always returned before any photon is launched.
	ErrConfiguration = errors.New("configuration error")

	// ErrGeometry reports a position that no tissue region claims.
	ErrGeometry = errors.New("geometry error")

	// ErrNotSupported reports a combination of options
	// the post-processor cannot honour.
	ErrNotSupported = errors.New("not supported")

	// ErrIO reports a missing, short or corrupt file.
	ErrIO = errors.New("io error")
)

func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func Geometry(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrGeometry, fmt.Sprintf(format, args...))
}

func NotSupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotSupported, fmt.Sprintf(format, args...))
}

// IO wraps err as an ErrIO, keeping err in the chain.
func IO(err error, format string, args ...any) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrIO, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf("%w: %s: %w", ErrIO, fmt.Sprintf(format, args...), err)
}
