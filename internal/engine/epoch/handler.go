package epoch

import (
	"log/slog"
	"sync"
	"time"

	"Go2NetSonify/internal/metrics"
	"Go2NetSonify/internal/model"
	"Go2NetSonify/internal/pkg/queue"
)

// Handler is the ingestion side of the pipeline. Every arrival event goes
// through Accept, which stores the batch and pushes the previous second onto
// the closure queue once an arrival lands in a later second.
type Handler struct {
	mu       sync.Mutex
	store    *Store
	closures *queue.Unbounded[int64]
	prev     int64
	hasPrev  bool
	accepted uint64

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHandler creates an ingestion handler writing to store and signalling
// closed epochs on closures.
func NewHandler(store *Store, closures *queue.Unbounded[int64], m *metrics.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    store,
		closures: closures,
		metrics:  m,
		logger:   logger.With("component", "ingest"),
	}
}

// Accept handles one arrival event. The boundary check runs before the batch
// is stored: the arrival that crosses into a new second belongs to the new
// epoch, and the closed epoch ends with whatever arrived before it.
//
// A batch without an arrival time is stamped with the current time.
func (h *Handler) Accept(batch model.RecordBatch) (closed int64, ok bool) {
	if batch.Arrival.IsZero() {
		batch.Arrival = time.Now()
	}
	second := batch.Epoch()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.hasPrev && h.prev < second {
		closed, ok = h.prev, true
		h.closures.Push(closed)
		h.metrics.EpochClosed()
		h.logger.Debug("epoch closed", "epoch", closed, "next", second)
	}
	h.prev = second
	h.hasPrev = true

	if h.store.Put(batch) {
		h.logger.Warn("arrival time collision, earlier batch replaced",
			"arrival", batch.Arrival.Format(time.RFC3339Nano))
	}
	h.accepted++
	h.metrics.BatchIngested(len(batch.Records))
	h.metrics.SetPendingBatches(h.store.Len())
	return closed, ok
}

// Accepted returns the number of arrival events handled so far.
func (h *Handler) Accepted() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.accepted
}

// Current returns the epoch still accumulating arrivals, if any.
func (h *Handler) Current() (int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.prev, h.hasPrev
}
