package types

import (
	"math"
	"strings"
)

// Validation limits for samples.
const (
	// MaxMetricNameSize is the maximum length of a metric name in bytes.
	MaxMetricNameSize = 64

	// MaxContactIDSize is the maximum length of a contact key in bytes.
	MaxContactIDSize = 128
)

// ValidateMetricName validates a metric name.
// Names are used as storage key prefixes, so the NUL separator is reserved.
func ValidateMetricName(name string) error {
	if name == "" {
		return ErrEmptyMetricName
	}
	if len(name) > MaxMetricNameSize {
		return ErrMetricNameTooLong
	}
	if strings.IndexByte(name, 0) >= 0 {
		return ErrInvalidMetricName
	}
	return nil
}

// ValidateSample validates a sample before it is persisted.
func ValidateSample(s Sample) error {
	if err := ValidateMetricName(s.Metric); err != nil {
		return err
	}
	if s.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return ErrInvalidValue
	}
	if len(s.ContactID) > MaxContactIDSize {
		return ErrContactIDTooLong
	}
	return nil
}
