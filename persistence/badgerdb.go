package persistence

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/thomasdelaet/kad-telemetry/logging"
	"github.com/thomasdelaet/kad-telemetry/types"
)

// BadgerDBStore implements Store using BadgerDB.
// BadgerDB is optimized for SSDs and offers better write performance
// than LevelDB for append-heavy workloads.
type BadgerDBStore struct {
	db   *badger.DB
	path string
	seq  uint64
	mu   sync.Mutex
}

// BadgerDBOptions contains configuration options for BadgerDB.
type BadgerDBOptions struct {
	// SyncWrites ensures durability by syncing writes to disk.
	// Default: false
	SyncWrites bool

	// Compression enables Snappy compression for values.
	// Default: true
	Compression bool

	// ValueLogFileSize is the maximum size of a single value log file.
	// Default: 64MB
	ValueLogFileSize int64

	// MemTableSize is the size of the memtable.
	// Default: 16MB
	MemTableSize int64

	// ReadOnly opens an existing database without write access.
	// Default: false
	ReadOnly bool

	// Logger receives BadgerDB log output.
	// If nil, logging is disabled.
	Logger *logging.Logger
}

// DefaultBadgerDBOptions returns sensible default options.
func DefaultBadgerDBOptions() *BadgerDBOptions {
	return &BadgerDBOptions{
		SyncWrites:       false,
		Compression:      true,
		ValueLogFileSize: 64 << 20, // 64MB
		MemTableSize:     16 << 20, // 16MB
	}
}

// NewBadgerDBStore creates a new BadgerDB-backed sample store.
func NewBadgerDBStore(path string) (*BadgerDBStore, error) {
	return NewBadgerDBStoreWithOptions(path, DefaultBadgerDBOptions())
}

// NewBadgerDBStoreWithOptions creates a new BadgerDB-backed sample store
// with custom options.
func NewBadgerDBStoreWithOptions(path string, opts *BadgerDBOptions) (*BadgerDBStore, error) {
	if path == "" {
		return nil, ErrEmptyStorePath
	}
	if opts == nil {
		opts = DefaultBadgerDBOptions()
	}

	badgerOpts := badger.DefaultOptions(path)
	badgerOpts = badgerOpts.WithSyncWrites(opts.SyncWrites)
	badgerOpts = badgerOpts.WithValueLogFileSize(opts.ValueLogFileSize)
	badgerOpts = badgerOpts.WithMemTableSize(opts.MemTableSize)
	badgerOpts = badgerOpts.WithReadOnly(opts.ReadOnly)

	if opts.Compression {
		badgerOpts = badgerOpts.WithCompression(options.Snappy)
	} else {
		badgerOpts = badgerOpts.WithCompression(options.None)
	}

	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(&badgerLogger{logger: opts.Logger.WithComponent("badger")})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("opening badgerdb: %w", err)
	}

	store := &BadgerDBStore{
		db:   db,
		path: path,
	}

	// Load metadata
	if err := store.loadMetadata(); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading metadata: %w", err)
	}

	return store, nil
}

// loadMetadata loads the last sequence number from the database.
func (s *BadgerDBStore) loadMetadata() error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyMetaSeq)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			s.seq = decodeUint64(val)
			return nil
		})
	})
}

// Append persists a sample.
func (s *BadgerDBStore) Append(sample types.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.seq + 1

	// Use transaction for atomic write
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(makeSampleKey(sample.Metric, sample.Timestamp, seq), makeSampleValue(sample)); err != nil {
			return err
		}
		return txn.Set(keyMetaSeq, encodeUint64(seq))
	})
	if err != nil {
		return fmt.Errorf("writing sample: %w", err)
	}

	s.seq = seq
	return nil
}

// Query returns the samples matching q.
func (s *BadgerDBStore) Query(q Query) ([]types.Sample, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	prefix := metricPrefix(q.Metric)
	start := prefix
	var end []byte
	if q.Metric != "" {
		if !q.Since.IsZero() {
			start = timeBound(q.Metric, q.Since)
		}
		if !q.Until.IsZero() {
			end = timeBound(q.Metric, q.Until)
		}
	}

	records := make([]record, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = prefix
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if end != nil && bytes.Compare(key, end) >= 0 {
				break
			}

			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			r, err := decodeRecord(key, value)
			if err != nil {
				return err
			}
			if !q.Matches(r.sample) {
				continue
			}
			records = append(records, r)
			if q.Metric != "" && q.Limit > 0 && len(records) >= q.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterating samples: %w", err)
	}

	return collect(records, q.Limit), nil
}

// Path returns the database directory.
func (s *BadgerDBStore) Path() string {
	return s.path
}

// Close closes the store and releases resources.
func (s *BadgerDBStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes BadgerDB log output to a logging.Logger.
type badgerLogger struct {
	logger *logging.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Verify BadgerDBStore implements Store interface.
var (
	_ Store         = (*BadgerDBStore)(nil)
	_ badger.Logger = (*badgerLogger)(nil)
)
