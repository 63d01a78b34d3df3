// Package pcapsource replays a capture file through the pipeline, one
// single-packet record per frame, timed by the capture timestamps.
package pcapsource

import (
	"context"
	"log/slog"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/metrics"
	"Go2NetSonify/internal/model"
	"Go2NetSonify/pkg/pcap"
)

type Replay struct {
	path    string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(cfg config.PcapConfig, m *metrics.Metrics, logger *slog.Logger) *Replay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Replay{
		path:    cfg.Path,
		metrics: m,
		logger:  logger.With("component", "pcapsource"),
	}
}

// Name implements model.Source.
func (r *Replay) Name() string {
	return "pcap"
}

// Run replays the whole file and returns. The epoch of the last batch stays
// open since nothing arrives after it.
func (r *Replay) Run(ctx context.Context, handle model.BatchHandler) error {
	reader, err := pcap.NewReader(r.path)
	if err != nil {
		return err
	}
	defer reader.Close()

	stats, err := reader.ReadBatches(ctx, handle)
	for i := 0; i < stats.Skipped; i++ {
		r.metrics.DecodeFailed(r.Name())
	}
	r.logger.Info("replay finished", "path", r.path,
		"packets", stats.Packets, "skipped", stats.Skipped, "batches", stats.Batches)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
