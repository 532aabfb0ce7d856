package persistence

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/thomasdelaet/kad-telemetry/logging"
	"github.com/thomasdelaet/kad-telemetry/metrics"
	"github.com/thomasdelaet/kad-telemetry/types"
)

// Handle is the persistence handle shared by the metrics of one decorated
// transport. Record never blocks: samples are queued to a single writer
// goroutine that applies them to the backend in arrival order.
type Handle struct {
	locator  string
	store    Store
	err      error
	readOnly bool

	logger  *logging.Logger
	metrics metrics.Metrics

	queue  chan request
	stop   chan struct{}
	exited chan struct{}

	closed bool
	mu     sync.RWMutex

	recorded atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
}

// request is a queued write, or a flush marker when flushed is set.
type request struct {
	sample  types.Sample
	flushed chan struct{}
}

// HandleStats reports the sample counters of a handle.
type HandleStats struct {
	// Recorded is the number of samples applied to the backend.
	Recorded uint64

	// Dropped is the number of samples rejected before queueing.
	Dropped uint64

	// Failed is the number of queued samples the backend rejected.
	Failed uint64
}

// Open opens the persistence handle for a locator. Open never fails: an
// empty locator yields a no-op handle, and a locator that cannot be opened
// yields a broken handle whose operations report the open failure as a
// storage error.
func Open(locator string, opts ...Option) *Handle {
	o := defaultHandleOptions()
	for _, opt := range opts {
		opt(o)
	}

	h := &Handle{
		locator:  locator,
		readOnly: o.readOnly,
		logger:   o.logger.WithComponent("persistence").With(logging.Locator(locator)),
		metrics:  o.metrics,
		queue:    make(chan request, o.queueSize),
		stop:     make(chan struct{}),
		exited:   make(chan struct{}),
	}

	store := o.store
	if store == nil {
		loc, err := ParseLocator(locator)
		if err == nil {
			store, err = openStore(loc, o)
		}
		if err != nil {
			failed := newFailedStore(locator, err)
			h.err = failed.cause
			store = failed
			h.logger.Error("failed to open persistence", logging.Error(err))
			h.metrics.IncStorageErrors(metrics.OpOpen)
		}
	}
	h.store = store

	go h.run()
	return h
}

// Locator returns the locator the handle was opened with.
func (h *Handle) Locator() string {
	return h.locator
}

// Err returns the open failure of a broken handle, or nil.
func (h *Handle) Err() error {
	return h.err
}

// IsBroken returns true if the backend could not be opened.
func (h *Handle) IsBroken() bool {
	return h.err != nil
}

// Stats returns the sample counters.
func (h *Handle) Stats() HandleStats {
	return HandleStats{
		Recorded: h.recorded.Load(),
		Dropped:  h.dropped.Load(),
		Failed:   h.failed.Load(),
	}
}

// Record queues a sample of the named metric. The sample's metric name is
// set to name and its timestamp normalized to UTC. A non-nil error means
// the sample was dropped; it always wraps types.ErrStorage.
func (h *Handle) Record(name string, s types.Sample) error {
	s.Metric = name
	s.Timestamp = s.Timestamp.UTC()

	if err := types.ValidateSample(s); err != nil {
		return h.drop(s, metrics.ReasonInvalid, types.WrapStorageError(err, "recording sample"))
	}
	if h.err != nil {
		return h.drop(s, metrics.ReasonBroken, h.err)
	}
	if h.readOnly {
		return h.drop(s, metrics.ReasonInvalid, types.WrapStorageError(ErrReadOnly, "recording sample"))
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return h.drop(s, metrics.ReasonClosed, types.WrapStorageError(ErrStoreClosed, "recording sample"))
	}

	select {
	case h.queue <- request{sample: s}:
		h.metrics.SetQueueDepth(len(h.queue))
		return nil
	default:
		return h.drop(s, metrics.ReasonQueueFull, types.WrapStorageError(ErrQueueFull, "recording sample"))
	}
}

func (h *Handle) drop(s types.Sample, reason string, err error) error {
	h.dropped.Add(1)
	h.metrics.IncSamplesDropped(s.Metric, reason)
	h.logger.Debug("sample dropped",
		logging.Metric(s.Metric),
		logging.Reason(reason),
		logging.Error(err),
	)
	return err
}

// Query returns the persisted samples matching q. Samples still queued
// are not visible until the writer applies them; call Flush first to
// read your own writes.
func (h *Handle) Query(q Query) ([]types.Sample, error) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return nil, types.WrapStorageError(ErrStoreClosed, "querying samples")
	}

	samples, err := h.store.Query(q)
	if err != nil {
		h.metrics.IncStorageErrors(metrics.OpQuery)
		return nil, types.WrapStorageError(err, "querying samples")
	}
	return samples, nil
}

// Flush waits until every sample queued before the call has been applied.
func (h *Handle) Flush(ctx context.Context) error {
	done := make(chan struct{})

	select {
	case h.queue <- request{flushed: done}:
	case <-h.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-h.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue, stops the writer and closes the backend.
// Close is idempotent.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.stop)
	h.mu.Unlock()

	<-h.exited

	if err := h.store.Close(); err != nil {
		h.metrics.IncStorageErrors(metrics.OpClose)
		return types.WrapStorageError(err, "closing store")
	}
	return nil
}

// run is the writer goroutine.
func (h *Handle) run() {
	defer close(h.exited)

	for {
		select {
		case req := <-h.queue:
			h.apply(req)
		case <-h.stop:
			for {
				select {
				case req := <-h.queue:
					h.apply(req)
				default:
					return
				}
			}
		}
	}
}

func (h *Handle) apply(req request) {
	if req.flushed != nil {
		close(req.flushed)
		return
	}

	s := req.sample
	if err := h.store.Append(s); err != nil {
		h.failed.Add(1)
		h.metrics.IncStorageErrors(metrics.OpAppend)
		h.logger.Warn("failed to persist sample",
			logging.Metric(s.Metric),
			logging.ContactID(s.ContactID),
			logging.Error(err),
		)
	} else {
		h.recorded.Add(1)
		h.metrics.IncSamplesRecorded(s.Metric)
		h.metrics.SetLastValue(s.Metric, s.ContactID, s.Value)
	}
	h.metrics.SetQueueDepth(len(h.queue))
}
