package probe

import (
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"Go2NetSonify/internal/codec"
	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/model"
)

// HeaderFeederID names the publishing feeder instance.
const HeaderFeederID = "Gons-Feeder-Id"

// Publisher is responsible for publishing record batches to a NATS subject.
type Publisher struct {
	nc       *nats.Conn
	subject  string
	feederID string
	logger   *slog.Logger
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.NATSConfig, feederID string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(cfg.URL, nats.Name("gons-feeder"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("connected to NATS", "url", cfg.URL, "subject", cfg.Subject)
	return &Publisher{nc: nc, subject: cfg.Subject, feederID: feederID, logger: logger}, nil
}

// Message encodes a batch into a NATS message for subject.
func Message(subject, feederID string, batch model.RecordBatch) (*nats.Msg, error) {
	data, err := codec.EncodeBatch(batch)
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	if feederID != "" {
		msg.Header.Set(HeaderFeederID, feederID)
	}
	return msg, nil
}

// Publish serializes one batch and publishes it.
func (p *Publisher) Publish(batch model.RecordBatch) error {
	msg, err := Message(p.subject, p.feederID, batch)
	if err != nil {
		return err
	}
	return p.nc.PublishMsg(msg)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.logger.Info("NATS connection drained and closed")
	}
}
