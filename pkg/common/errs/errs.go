// Package errs defines the two error kinds surfaced by the dsstore
// engine: format errors for malformed input and logic errors for
// caller misuse. Every error returned by the library wraps one of
// these sentinels, so callers can classify failures with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat indicates a malformed container: bad magic, an
	// out-of-bounds address, a truncated record, a bad node kind, a
	// cyclic tree reference, or a decode overrun.
	ErrFormat = errors.New("malformed store")

	// ErrLogic indicates caller misuse: a double-free, a duplicate key,
	// or an invalid field code. These are never recovered internally.
	ErrLogic = errors.New("logic error")
)

// Formatf builds a format error with a formatted description.
func Formatf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

// Logicf builds a logic error with a formatted description.
func Logicf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrLogic, fmt.Sprintf(format, args...))
}

// IsFormat reports whether err is a format error.
func IsFormat(err error) bool {
	return errors.Is(err, ErrFormat)
}

// IsLogic reports whether err is a logic error.
func IsLogic(err error) bool {
	return errors.Is(err, ErrLogic)
}
