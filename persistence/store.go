// Package persistence provides storage of telemetry samples and the
// shared, non-blocking handle metrics record through.
package persistence

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/thomasdelaet/kad-telemetry/types"
)

// Persistence errors.
var (
	ErrStoreClosed    = errors.New("store is closed")
	ErrQueueFull      = errors.New("write queue is full")
	ErrInvalidQuery   = errors.New("invalid query")
	ErrUnknownScheme  = errors.New("unknown locator scheme")
	ErrCorruptRecord  = errors.New("corrupt sample record")
	ErrEmptyStorePath = errors.New("empty store path")
	ErrReadOnly       = errors.New("handle is read-only")
)

// Store defines the interface for sample persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append persists a sample. Samples are kept in arrival order for
	// equal timestamps.
	Append(s types.Sample) error

	// Query returns the samples matching q, ordered by timestamp then
	// arrival.
	Query(q Query) ([]types.Sample, error)

	// Close closes the store and releases resources.
	Close() error
}

// Query selects samples. Zero fields do not filter.
type Query struct {
	// Metric restricts results to one metric.
	Metric string

	// ContactID restricts results to one contact key.
	ContactID string

	// Since is the inclusive lower timestamp bound.
	Since time.Time

	// Until is the exclusive upper timestamp bound.
	Until time.Time

	// Limit caps the number of samples returned, keeping the earliest.
	Limit int
}

// Validate checks the query for errors.
func (q Query) Validate() error {
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	if !q.Since.IsZero() && !q.Until.IsZero() && q.Until.Before(q.Since) {
		return fmt.Errorf("%w: until before since", ErrInvalidQuery)
	}
	return nil
}

// Matches returns true if the sample passes every filter of the query.
func (q Query) Matches(s types.Sample) bool {
	if q.Metric != "" && s.Metric != q.Metric {
		return false
	}
	if q.ContactID != "" && s.ContactID != q.ContactID {
		return false
	}
	if !q.Since.IsZero() && s.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !s.Timestamp.Before(q.Until) {
		return false
	}
	return true
}

// record is a stored sample with its arrival sequence number.
type record struct {
	sample types.Sample
	seq    uint64
}

// collect orders records by timestamp then arrival and applies the limit.
func collect(records []record, limit int) []types.Sample {
	sort.SliceStable(records, func(i, j int) bool {
		ti, tj := records[i].sample.Timestamp, records[j].sample.Timestamp
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return records[i].seq < records[j].seq
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	samples := make([]types.Sample, len(records))
	for i, r := range records {
		samples[i] = r.sample
	}
	return samples
}
