package models

import (
	"errors"
	"fmt"
)

// Error taxonomy for the pipeline. Every failure path maps onto exactly one
// of these sentinels so callers can dispatch with errors.Is.
var (
	// ErrConfiguration indicates invalid or inconsistent parameters. It is
	// detected before any example is processed and aborts pipeline construction.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrInvalidInput indicates malformed example data. Scoped to one example.
	ErrInvalidInput = errors.New("invalid input")

	// ErrServiceUnavailable indicates the linguistic-analysis service is
	// unreachable or timed out. Scoped to one example.
	ErrServiceUnavailable = errors.New("linguistic service unavailable")

	// ErrStructural indicates a graph violates a structural precondition,
	// e.g. a zero-in-degree node when those are disallowed.
	ErrStructural = errors.New("structural precondition violated")
)

// ConfigErrorf wraps a formatted message in ErrConfiguration.
func ConfigErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// InvalidInputf wraps a formatted message in ErrInvalidInput.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// UnavailableErrorf wraps a formatted message in ErrServiceUnavailable.
func UnavailableErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrServiceUnavailable, fmt.Sprintf(format, args...))
}

// StructuralErrorf wraps a formatted message in ErrStructural.
func StructuralErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStructural, fmt.Sprintf(format, args...))
}

// IsConfiguration returns true if the error is a configuration error.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsInvalidInput returns true if the error is an invalid-input error.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsUnavailable returns true if the error is a service-unavailable error.
func IsUnavailable(err error) bool { return errors.Is(err, ErrServiceUnavailable) }

// IsStructural returns true if the error is a structural error.
func IsStructural(err error) bool { return errors.Is(err, ErrStructural) }

// ErrorCategory returns the taxonomy label for an error, for metrics and
// HTTP status mapping. Unrecognized errors map to "internal".
func ErrorCategory(err error) string {
	switch {
	case IsConfiguration(err):
		return "configuration"
	case IsInvalidInput(err):
		return "invalid_input"
	case IsUnavailable(err):
		return "service_unavailable"
	case IsStructural(err):
		return "structural"
	default:
		return "internal"
	}
}
