// Package natssink publishes the per-epoch vectors on NATS so other
// consumers can follow the sonified stream.
package natssink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/model"
)

// Header carrying the engine run identifier.
const HeaderRunID = "Gons-Run-Id"

// Vector is the JSON payload of both messages.
type Vector struct {
	Epoch  int64     `json:"epoch"`
	Count  uint64    `json:"count"`
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

// Sender publishes <prefix>.scale and <prefix>.gate once per epoch.
type Sender struct {
	nc     *nats.Conn
	prefix string
	runID  string
}

// New connects to NATS.
func New(cfg config.NATSSinkConfig, runID string, logger *slog.Logger) (*Sender, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("gons-sonify"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if logger != nil {
		logger.Info("connected to NATS", "component", "natssink", "url", cfg.URL, "prefix", cfg.SubjectPrefix)
	}
	return &Sender{nc: nc, prefix: cfg.SubjectPrefix, runID: runID}, nil
}

// Name implements model.Sender.
func (s *Sender) Name() string {
	return "nats"
}

// Messages builds the two NATS messages for a result.
func Messages(prefix, runID string, result *model.EpochResult) ([]*nats.Msg, error) {
	vectors := []struct {
		suffix string
		values []float64
	}{
		{"scale", result.Scaling},
		{"gate", result.Gating},
	}

	msgs := make([]*nats.Msg, 0, len(vectors))
	for _, v := range vectors {
		data, err := json.Marshal(Vector{
			Epoch:  result.Epoch,
			Count:  result.Count,
			Names:  result.Names,
			Values: v.values,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s vector: %w", v.suffix, err)
		}
		msg := nats.NewMsg(prefix + "." + v.suffix)
		msg.Data = data
		msg.Header.Set(HeaderRunID, runID)
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Send implements model.Sender.
func (s *Sender) Send(_ context.Context, result *model.EpochResult) error {
	msgs, err := Messages(s.prefix, s.runID, result)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := s.nc.PublishMsg(msg); err != nil {
			return fmt.Errorf("publish %s: %w", msg.Subject, err)
		}
	}
	return nil
}

// Close drains the connection.
func (s *Sender) Close() error {
	if s.nc == nil {
		return nil
	}
	return s.nc.Drain()
}
