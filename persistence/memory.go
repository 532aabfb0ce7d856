package persistence

import (
	"sync"

	"github.com/thomasdelaet/kad-telemetry/types"
)

// MemoryStore is an in-memory sample store.
// It is intended for tests and short-lived processes.
type MemoryStore struct {
	records []record
	seq     uint64
	closed  bool
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append persists a sample.
func (s *MemoryStore) Append(sample types.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	s.seq++
	s.records = append(s.records, record{sample: sample, seq: s.seq})
	return nil
}

// Query returns the samples matching q.
func (s *MemoryStore) Query(q Query) ([]types.Sample, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	matched := make([]record, 0)
	for _, r := range s.records {
		if q.Matches(r.sample) {
			matched = append(matched, r)
		}
	}
	return collect(matched, q.Limit), nil
}

// Len returns the number of stored samples.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Verify MemoryStore implements Store interface.
var _ Store = (*MemoryStore)(nil)
