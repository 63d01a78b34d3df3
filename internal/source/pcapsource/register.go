package pcapsource

import (
	"log/slog"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/factory"
	"Go2NetSonify/internal/metrics"
	"Go2NetSonify/internal/model"
)

func init() {
	factory.RegisterSource(config.SourcePcap, func(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (model.Source, error) {
		return New(cfg.Source.Pcap, m, logger), nil
	})
}
