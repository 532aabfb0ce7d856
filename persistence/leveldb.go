package persistence

import (
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/thomasdelaet/kad-telemetry/types"
)

// LevelDBOptions contains configuration options for LevelDB.
type LevelDBOptions struct {
	// Sync flushes every write to disk before Append returns.
	// Default: false
	Sync bool

	// ReadOnly opens an existing database without write access.
	// Default: false
	ReadOnly bool
}

// DefaultLevelDBOptions returns sensible default options.
func DefaultLevelDBOptions() *LevelDBOptions {
	return &LevelDBOptions{}
}

// LevelDBStore implements Store using LevelDB.
type LevelDBStore struct {
	db   *leveldb.DB
	path string
	opts *LevelDBOptions
	seq  uint64
	mu   sync.Mutex
}

// NewLevelDBStore creates a new LevelDB-backed sample store.
func NewLevelDBStore(path string) (*LevelDBStore, error) {
	return NewLevelDBStoreWithOptions(path, DefaultLevelDBOptions())
}

// NewLevelDBStoreWithOptions creates a new LevelDB-backed sample store
// with custom options.
func NewLevelDBStoreWithOptions(path string, opts *LevelDBOptions) (*LevelDBStore, error) {
	if path == "" {
		return nil, ErrEmptyStorePath
	}
	if opts == nil {
		opts = DefaultLevelDBOptions()
	}

	db, err := leveldb.OpenFile(path, &opt.Options{
		ReadOnly:       opts.ReadOnly,
		ErrorIfMissing: opts.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("opening leveldb: %w", err)
	}

	store := &LevelDBStore{
		db:   db,
		path: path,
		opts: opts,
	}

	// Load metadata
	if err := store.loadMetadata(); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading metadata: %w", err)
	}

	return store, nil
}

// loadMetadata loads the last sequence number from the database.
func (s *LevelDBStore) loadMetadata() error {
	data, err := s.db.Get(keyMetaSeq, nil)
	if err == nil {
		s.seq = decodeUint64(data)
	} else if !errors.Is(err, leveldb.ErrNotFound) {
		return err
	}
	return nil
}

// Append persists a sample.
func (s *LevelDBStore) Append(sample types.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.seq + 1

	// Create batch for atomic write
	batch := new(leveldb.Batch)
	batch.Put(makeSampleKey(sample.Metric, sample.Timestamp, seq), makeSampleValue(sample))
	batch.Put(keyMetaSeq, encodeUint64(seq))

	if err := s.db.Write(batch, &opt.WriteOptions{Sync: s.opts.Sync}); err != nil {
		return fmt.Errorf("writing sample: %w", err)
	}

	s.seq = seq
	return nil
}

// Query returns the samples matching q.
func (s *LevelDBStore) Query(q Query) ([]types.Sample, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	iter := s.db.NewIterator(queryRange(q), nil)
	defer iter.Release()

	records := make([]record, 0)
	for iter.Next() {
		r, err := decodeRecord(iter.Key(), iter.Value())
		if err != nil {
			return nil, err
		}
		if !q.Matches(r.sample) {
			continue
		}
		records = append(records, r)
		if q.Metric != "" && q.Limit > 0 && len(records) >= q.Limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterating samples: %w", err)
	}

	return collect(records, q.Limit), nil
}

// queryRange narrows iteration to the keys a query can match. Time bounds
// only narrow the range when the metric is known.
func queryRange(q Query) *util.Range {
	prefix := metricPrefix(q.Metric)
	rng := util.BytesPrefix(prefix)
	if q.Metric == "" {
		return rng
	}
	if !q.Since.IsZero() {
		rng.Start = timeBound(q.Metric, q.Since)
	}
	if !q.Until.IsZero() {
		rng.Limit = timeBound(q.Metric, q.Until)
	}
	return rng
}

// Path returns the database directory.
func (s *LevelDBStore) Path() string {
	return s.path
}

// Close closes the store and releases resources.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

// Verify LevelDBStore implements Store interface.
var _ Store = (*LevelDBStore)(nil)
