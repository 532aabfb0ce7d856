package persistence

import (
	"fmt"

	"github.com/thomasdelaet/kad-telemetry/types"
)

// NoOpStore is a store that does nothing.
// Writes are dropped and reads return no samples.
// Use this when no persistence locator is configured.
type NoOpStore struct{}

// NewNoOpStore creates a new no-op store.
func NewNoOpStore() *NoOpStore {
	return &NoOpStore{}
}

// Append drops the sample.
func (s *NoOpStore) Append(_ types.Sample) error {
	return nil
}

// Query always returns no samples.
func (s *NoOpStore) Query(q Query) ([]types.Sample, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return nil, nil
}

// Close does nothing.
func (s *NoOpStore) Close() error {
	return nil
}

// failedStore stands in for a store that could not be opened.
// Every call reports the open failure as a storage error.
type failedStore struct {
	cause error
}

func newFailedStore(locator string, cause error) *failedStore {
	return &failedStore{cause: types.WrapStorageError(cause, fmt.Sprintf("opening %q", locator))}
}

func (s *failedStore) Append(_ types.Sample) error {
	return s.cause
}

func (s *failedStore) Query(_ Query) ([]types.Sample, error) {
	return nil, s.cause
}

func (s *failedStore) Close() error {
	return nil
}

// Verify stores implement Store interface.
var (
	_ Store = (*NoOpStore)(nil)
	_ Store = (*failedStore)(nil)
)
