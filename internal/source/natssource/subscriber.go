// Package natssource receives decoded record batches published on NATS by an
// external collector.
package natssource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"Go2NetSonify/internal/codec"
	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/metrics"
	"Go2NetSonify/internal/model"
)

// Subscriber delivers every message on the configured subject as one batch.
// NATS runs the callbacks of a subscription one at a time, so batches reach
// the handler sequentially.
type Subscriber struct {
	url     string
	subject string
	useSent bool
	now     func() time.Time

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a subscriber. With cfg.UseSentTime the arrival time written by
// the publisher is kept instead of the receive time.
func New(cfg config.NATSConfig, m *metrics.Metrics, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		url:     cfg.URL,
		subject: cfg.Subject,
		useSent: cfg.UseSentTime,
		now:     time.Now,
		metrics: m,
		logger:  logger.With("component", "natssource"),
	}
}

// Name implements model.Source.
func (s *Subscriber) Name() string {
	return "nats"
}

// Run subscribes and blocks until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context, handle model.BatchHandler) error {
	nc, err := nats.Connect(s.url, nats.Name("gons-sonify-source"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()
	s.logger.Info("connected to NATS", "url", s.url)

	sub, err := nc.Subscribe(s.subject, func(msg *nats.Msg) {
		if batch, ok := s.Batch(msg.Data); ok {
			handle(batch)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}
	defer sub.Unsubscribe()
	s.logger.Info("subscribed, waiting for batches", "subject", s.subject)

	<-ctx.Done()
	s.logger.Info("nats source stopped")
	return nil
}

// Batch decodes one message payload. Undecodable payloads are reported and
// dropped.
func (s *Subscriber) Batch(data []byte) (model.RecordBatch, bool) {
	received := s.now()
	batch, err := codec.DecodeBatch(data)
	if err != nil {
		s.metrics.DecodeFailed(s.Name())
		s.logger.Warn("dropping message", "bytes", len(data), "error", err)
		return model.RecordBatch{}, false
	}
	if !s.useSent || batch.Arrival.IsZero() {
		batch.Arrival = received
	}
	return batch, true
}
