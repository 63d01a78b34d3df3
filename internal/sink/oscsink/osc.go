// Package oscsink sends the per-epoch vectors to an OSC endpoint such as
// Sonic Pi.
package oscsink

import (
	"context"
	"fmt"

	"github.com/hypebeast/go-osc/osc"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/model"
)

// Sender writes one OSC message with the scaling vector and one with the
// gating vector per epoch. OSC over UDP does not block on the receiver.
type Sender struct {
	client    *osc.Client
	scaleAddr string
	gateAddr  string
}

// New creates an OSC sender for cfg.Host:cfg.Port.
func New(cfg config.OSCConfig) *Sender {
	return &Sender{
		client:    osc.NewClient(cfg.Host, cfg.Port),
		scaleAddr: cfg.ScaleAddr,
		gateAddr:  cfg.GateAddr,
	}
}

// Name implements model.Sender.
func (s *Sender) Name() string {
	return "osc"
}

// Messages builds the scaling and gating messages for a result.
func (s *Sender) Messages(result *model.EpochResult) (scale, gate *osc.Message) {
	return vectorMessage(s.scaleAddr, result.Scaling), vectorMessage(s.gateAddr, result.Gating)
}

// Send implements model.Sender.
func (s *Sender) Send(_ context.Context, result *model.EpochResult) error {
	scale, gate := s.Messages(result)
	if err := s.client.Send(scale); err != nil {
		return fmt.Errorf("osc %s: %w", s.scaleAddr, err)
	}
	if err := s.client.Send(gate); err != nil {
		return fmt.Errorf("osc %s: %w", s.gateAddr, err)
	}
	return nil
}

// Close implements model.Sender. The OSC client holds no connection.
func (s *Sender) Close() error {
	return nil
}

// Sonic Pi reads float32 arguments.
func vectorMessage(addr string, values []float64) *osc.Message {
	msg := osc.NewMessage(addr)
	for _, v := range values {
		msg.Append(float32(v))
	}
	return msg
}
