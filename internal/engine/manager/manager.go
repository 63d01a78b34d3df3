package manager

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/engine/aggregator"
	"Go2NetSonify/internal/engine/emitter"
	"Go2NetSonify/internal/engine/epoch"
	"Go2NetSonify/internal/engine/pipeline"
	"Go2NetSonify/internal/metrics"
	"Go2NetSonify/internal/model"
	"Go2NetSonify/internal/pkg/queue"
)

// Status is a point-in-time view of the running pipeline.
type Status struct {
	RunID          string             `json:"run_id"`
	Source         string             `json:"source"`
	Ingested       uint64             `json:"ingested"`
	OpenEpoch      *int64             `json:"open_epoch,omitempty"`
	PendingEpochs  []int64            `json:"pending_epochs"`
	PendingClosure int                `json:"pending_closures"`
	Pipeline       pipeline.State     `json:"pipeline"`
	Last           *model.EpochResult `json:"last,omitempty"`
}

// Manager wires one source to the aggregation and emission stages. Three
// goroutines run: the source delivering arrivals, the aggregator closing
// epochs, and the emit loop feeding summaries through the metric pipeline to
// the senders. The stages are joined by two unbounded queues, so a slow stage
// never blocks the source.
type Manager struct {
	runID  string
	source model.Source

	store      *epoch.Store
	handler    *epoch.Handler
	closures   *queue.Unbounded[int64]
	summaries  *queue.Unbounded[*model.EpochSummary]
	aggregator *aggregator.Aggregator
	pipeline   *pipeline.Pipeline
	emitter    *emitter.Emitter

	metrics *metrics.Metrics
	logger  *slog.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	sourceWg sync.WaitGroup
	aggWg    sync.WaitGroup
	emitWg   sync.WaitGroup
	stopOnce sync.Once
}

// NewManager creates a manager. renderer may be nil and senders may be empty.
func NewManager(cfg *config.Config, runID string, source model.Source, senders []model.Sender,
	renderer model.Renderer, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	logger = logger.With("run_id", runID)

	store := epoch.NewStore()
	closures := queue.New[int64]()
	summaries := queue.New[*model.EpochSummary]()
	return &Manager{
		runID:      runID,
		source:     source,
		store:      store,
		handler:    epoch.NewHandler(store, closures, m, logger),
		closures:   closures,
		summaries:  summaries,
		aggregator: aggregator.New(store, closures, summaries, aggregator.NewSummarizer(cfg), m, logger),
		pipeline:   pipeline.New(cfg.Pipeline),
		emitter:    emitter.New(senders, renderer, m, logger),
		metrics:    m,
		logger:     logger.With("component", "manager"),
		done:       make(chan struct{}),
	}
}

// RunID identifies this process run in exported data.
func (m *Manager) RunID() string {
	return m.runID
}

// Start launches the three stages. It returns immediately.
func (m *Manager) Start(ctx context.Context) {
	srcCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.emitter.Start(ctx)
	m.emitWg.Add(1)
	go m.runEmitter()

	m.aggWg.Add(1)
	go func() {
		defer m.aggWg.Done()
		m.aggregator.Run()
	}()

	m.sourceWg.Add(1)
	go m.runSource(srcCtx)

	m.logger.Info("manager started", "source", m.source.Name(), "metrics", m.pipeline.Names())
}

func (m *Manager) runSource(ctx context.Context) {
	defer m.sourceWg.Done()
	defer close(m.done)

	err := m.source.Run(ctx, m.Ingest)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		m.logger.Info("source finished", "source", m.source.Name())
	default:
		m.err = err
		m.logger.Error("source failed", "source", m.source.Name(), "error", err)
	}
}

func (m *Manager) runEmitter() {
	defer m.emitWg.Done()
	for summary := range m.summaries.Out() {
		m.emitter.Consume(m.pipeline.Consume(summary))
	}
}

// Ingest hands one arrival event to the epoch handler. Sources call it
// sequentially.
func (m *Manager) Ingest(batch model.RecordBatch) {
	m.handler.Accept(batch)
}

// Done is closed when the source returns, or by Stop if Start was never
// called.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Err reports why the source stopped. It blocks until Done is closed.
func (m *Manager) Err() error {
	<-m.done
	return m.err
}

// Stop shuts the stages down in pipeline order. Epochs already closed are
// still summarized and emitted; the epoch that is still open is discarded.
func (m *Manager) Stop() error {
	var err error
	m.stopOnce.Do(func() {
		m.logger.Info("manager stopping")
		if m.cancel != nil {
			m.cancel()
		} else {
			close(m.done)
		}
		m.sourceWg.Wait()

		m.closures.Close()
		m.aggWg.Wait()
		m.emitWg.Wait()

		err = m.emitter.Close()
		m.logger.Info("manager stopped", "ingested", m.handler.Accepted(),
			"discarded_batches", m.store.Len())
	})
	return err
}

// Status returns a snapshot for the status API.
func (m *Manager) Status() Status {
	st := Status{
		RunID:          m.runID,
		Source:         m.source.Name(),
		Ingested:       m.handler.Accepted(),
		PendingEpochs:  m.store.Epochs(),
		PendingClosure: m.closures.Len(),
		Pipeline:       m.pipeline.Snapshot(),
		Last:           m.emitter.Last(),
	}
	if e, ok := m.handler.Current(); ok {
		st.OpenEpoch = &e
	}
	return st
}
