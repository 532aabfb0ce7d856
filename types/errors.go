package types

import (
	"errors"
	"fmt"
)

// Telemetry errors.
var (
	// ErrConfiguration is returned when a metric or hook declaration is invalid.
	// It is fatal at open time and surfaced from Open.
	ErrConfiguration = errors.New("telemetry configuration error")

	// ErrStorage is returned when a persistence read or write fails.
	// Storage errors are logged and counted, never propagated into
	// transport control flow.
	ErrStorage = errors.New("telemetry storage error")
)

// Validation errors.
var (
	// ErrEmptyMetricName is returned when a sample or metric has no name.
	ErrEmptyMetricName = errors.New("empty metric name")

	// ErrMetricNameTooLong is returned when a metric name exceeds MaxMetricNameSize.
	ErrMetricNameTooLong = errors.New("metric name too long")

	// ErrInvalidMetricName is returned when a metric name contains a reserved byte.
	ErrInvalidMetricName = errors.New("invalid metric name")

	// ErrContactIDTooLong is returned when a contact key exceeds MaxContactIDSize.
	ErrContactIDTooLong = errors.New("contact id too long")

	// ErrZeroTimestamp is returned when a sample carries no timestamp.
	ErrZeroTimestamp = errors.New("zero sample timestamp")

	// ErrInvalidValue is returned when a sample value is NaN or infinite.
	ErrInvalidValue = errors.New("invalid sample value")
)

// WrapConfigurationError wraps a cause as a configuration error with context.
func WrapConfigurationError(cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrConfiguration, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrConfiguration, msg, cause)
}

// WrapStorageError wraps a cause as a storage error with the operation name.
func WrapStorageError(cause error, op string) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, ErrStorage) {
		return fmt.Errorf("%s: %w", op, cause)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, cause)
}
