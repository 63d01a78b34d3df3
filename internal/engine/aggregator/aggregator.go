// Package aggregator closes epochs: it drains the batches of a closed second
// from the epoch store and summarizes them per protocol.
package aggregator

import (
	"errors"
	"log/slog"

	"Go2NetSonify/internal/engine/epoch"
	"Go2NetSonify/internal/metrics"
	"Go2NetSonify/internal/model"
	"Go2NetSonify/internal/pkg/queue"
)

// Aggregator consumes closed epoch keys one at a time, in the order they were
// detected, and hands one summary per epoch to the metric pipeline.
type Aggregator struct {
	store      *epoch.Store
	closures   *queue.Unbounded[int64]
	summaries  *queue.Unbounded[*model.EpochSummary]
	summarizer *Summarizer

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an aggregator reading closures and writing summaries.
func New(store *epoch.Store, closures *queue.Unbounded[int64], summaries *queue.Unbounded[*model.EpochSummary],
	summarizer *Summarizer, m *metrics.Metrics, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		store:      store,
		closures:   closures,
		summaries:  summaries,
		summarizer: summarizer,
		metrics:    m,
		logger:     logger.With("component", "aggregator"),
	}
}

// Run processes closures until the closure queue is closed, then closes the
// summary queue.
func (a *Aggregator) Run() {
	defer a.summaries.Close()
	for key := range a.closures.Out() {
		if summary, ok := a.CloseEpoch(key); ok {
			a.summaries.Push(summary)
			a.metrics.EpochSummarized()
		}
	}
	a.logger.Debug("closure queue closed, aggregator exiting")
}

// CloseEpoch drains and summarizes one epoch. It reports false when there is
// nothing to deliver: an empty store (a spurious wake-up) or an epoch dropped
// under the abort policy.
func (a *Aggregator) CloseEpoch(key int64) (*model.EpochSummary, bool) {
	if a.store.Len() == 0 {
		a.logger.Debug("spurious wake-up, epoch store empty", "epoch", key)
		return nil, false
	}

	batches := a.store.Drain(key)
	a.metrics.SetPendingBatches(a.store.Len())
	if len(batches) == 0 {
		a.logger.Warn("closed epoch has no stored batches", "epoch", key)
	}

	summary, rejected := a.summarizer.Summarize(key, batches)
	for _, rerr := range rejected {
		if errors.Is(rerr, ErrUnknownProtocol) {
			a.metrics.UnknownProtocol(rerr.Protocol)
		}
		a.logger.Error("flow record rejected", "epoch", key, "record", rerr.Index, "error", rerr.Err)
	}
	if summary == nil {
		a.metrics.EpochAborted()
		a.logger.Error("epoch dropped", "epoch", key, "batches", len(batches))
		return nil, false
	}

	a.logger.Debug("epoch summarized", "epoch", key, "batches", summary.Batches,
		"records", summary.Records, "skipped", summary.Skipped)
	return summary, true
}
