package types

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrConfiguration,
		ErrStorage,
		ErrEmptyMetricName,
		ErrMetricNameTooLong,
		ErrInvalidMetricName,
		ErrContactIDTooLong,
		ErrZeroTimestamp,
		ErrInvalidValue,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j {
				require.NotErrorIs(t, err1, err2)
			}
		}
	}
}

func TestWrapConfigurationError(t *testing.T) {
	cause := errors.New("boom")

	err := WrapConfigurationError(cause, "metric %q", "latency")
	require.ErrorIs(t, err, ErrConfiguration)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), `metric "latency"`)

	err = WrapConfigurationError(nil, "unknown trigger %q", "before")
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), `unknown trigger "before"`)
}

func TestWrapStorageError(t *testing.T) {
	require.NoError(t, WrapStorageError(nil, "append"))

	cause := errors.New("disk full")
	err := WrapStorageError(cause, "append")
	require.ErrorIs(t, err, ErrStorage)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "append")

	// Already a storage error: not double-tagged.
	again := WrapStorageError(err, "flush")
	require.ErrorIs(t, again, ErrStorage)
	assert.Equal(t, 1, strings.Count(again.Error(), ErrStorage.Error()))
}
