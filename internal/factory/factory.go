package factory

import (
	"errors"
	"fmt"
	"log/slog"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/metrics"
	"Go2NetSonify/internal/model"
	"Go2NetSonify/internal/sink/clickhouse"
	"Go2NetSonify/internal/sink/natssink"
	"Go2NetSonify/internal/sink/oscsink"
	"Go2NetSonify/internal/snapshot"
)

// SourceFactory builds the upstream source from the configuration.
type SourceFactory func(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (model.Source, error)

// registry holds the mapping of source types to their factory functions.
var registry = make(map[string]SourceFactory)

// RegisterSource registers a source type. Source packages call it from init.
func RegisterSource(name string, factory SourceFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("source type '%s' already registered", name))
	}
	registry[name] = factory
}

// NewSource creates the source selected by cfg.Source.Type.
func NewSource(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (model.Source, error) {
	factory, ok := registry[cfg.Source.Type]
	if !ok {
		return nil, fmt.Errorf("unknown source type: '%s'", cfg.Source.Type)
	}
	src, err := factory(cfg, m, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating source '%s': %w", cfg.Source.Type, err)
	}
	return src, nil
}

// NewSenders creates every enabled sender. On error the senders already
// created are closed.
func NewSenders(cfg *config.Config, runID string, logger *slog.Logger) ([]model.Sender, error) {
	var senders []model.Sender
	fail := func(err error) ([]model.Sender, error) {
		for _, s := range senders {
			err = errors.Join(err, s.Close())
		}
		return nil, err
	}

	em := cfg.Emitter
	if em.OSC.Enabled {
		senders = append(senders, oscsink.New(em.OSC))
		logger.Info("OSC sender enabled", "host", em.OSC.Host, "port", em.OSC.Port)
	}
	if em.NATS.Enabled {
		s, err := natssink.New(em.NATS, runID, logger)
		if err != nil {
			return fail(fmt.Errorf("error creating NATS sender: %w", err))
		}
		senders = append(senders, s)
		logger.Info("NATS sender enabled", "url", em.NATS.URL, "prefix", em.NATS.SubjectPrefix)
	}
	if em.ClickHouse.Enabled {
		s, err := clickhouse.New(em.ClickHouse, runID, logger)
		if err != nil {
			return fail(fmt.Errorf("error creating ClickHouse sender: %w", err))
		}
		senders = append(senders, s)
		logger.Info("ClickHouse sender enabled", "host", em.ClickHouse.Host, "database", em.ClickHouse.Database)
	}
	if em.Snapshot.Enabled {
		s, path, err := snapshot.Open(em.Snapshot, runID)
		if err != nil {
			return fail(err)
		}
		senders = append(senders, s)
		logger.Info("snapshot log enabled", "path", path)
	}
	return senders, nil
}
