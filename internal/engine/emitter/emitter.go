// Package emitter hands the per-epoch vectors to the downstream senders and
// the optional renderer.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"Go2NetSonify/internal/metrics"
	"Go2NetSonify/internal/model"
	"Go2NetSonify/internal/pkg/queue"
)

// DefaultDrainTimeout bounds how long Close waits for queued results.
const DefaultDrainTimeout = 5 * time.Second

// outlet is one sender with its own queue and delivery goroutine.
type outlet struct {
	sender model.Sender
	queue  *queue.Unbounded[*model.EpochResult]
}

// Emitter fans one EpochResult out to every sender. Each sender is fed by
// its own goroutine, so Consume never waits on a sender and a slow or failing
// sender never holds back the others.
type Emitter struct {
	outlets  []outlet
	renderer model.Renderer

	// DrainTimeout bounds Close. Zero means DefaultDrainTimeout.
	DrainTimeout time.Duration

	mu   sync.RWMutex
	last *model.EpochResult

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an emitter. renderer may be nil.
func New(senders []model.Sender, renderer model.Renderer, m *metrics.Metrics, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Emitter{
		renderer: renderer,
		metrics:  m,
		logger:   logger.With("component", "emitter"),
	}
	for _, s := range senders {
		e.outlets = append(e.outlets, outlet{sender: s, queue: queue.New[*model.EpochResult]()})
	}
	return e
}

// Start launches one delivery goroutine per sender. Sends use a context
// derived from ctx that is cancelled only when Close gives up draining.
func (e *Emitter) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.started = true
	for _, o := range e.outlets {
		e.wg.Add(1)
		go e.deliver(ctx, o)
	}
}

func (e *Emitter) deliver(ctx context.Context, o outlet) {
	defer e.wg.Done()
	for result := range o.queue.Out() {
		if err := o.sender.Send(ctx, result); err != nil {
			e.metrics.SendFailed(o.sender.Name())
			e.logger.Error("send failed", "sink", o.sender.Name(), "epoch", result.Epoch, "error", err)
		}
	}
}

// Consume queues one result for every sender and draws it. It does not wait
// for delivery.
func (e *Emitter) Consume(result *model.EpochResult) {
	e.mu.Lock()
	e.last = result
	e.mu.Unlock()

	for i, name := range result.Names {
		e.metrics.ObserveMetric(name, result.Metrics[name], result.Thresholds[name])
		e.logger.Debug("metric", "epoch", result.Epoch, "name", name,
			"value", result.Metrics[name], "threshold", result.Thresholds[name],
			"min", result.Ranges[name].Min, "max", result.Ranges[name].Max,
			"scaled", result.Scaling[i], "gate", result.Gating[i])
	}

	for _, o := range e.outlets {
		o.queue.Push(result)
	}

	if e.renderer != nil && len(result.Scaling) >= 2 {
		e.renderer.Draw(result.Scaling[0], result.Scaling[1])
	}
}

// Last returns the most recently emitted result, or nil.
func (e *Emitter) Last() *model.EpochResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// Close stops accepting results, waits up to DrainTimeout for the queued
// ones to be delivered, then closes every sender. Past the timeout the send
// context is cancelled and undelivered results are dropped.
func (e *Emitter) Close() error {
	for _, o := range e.outlets {
		o.queue.Close()
	}

	if e.started {
		timeout := e.DrainTimeout
		if timeout <= 0 {
			timeout = DefaultDrainTimeout
		}
		drained := make(chan struct{})
		go func() {
			e.wg.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(timeout):
			e.logger.Warn("senders did not drain in time, cancelling", "timeout", timeout)
			for _, o := range e.outlets {
				o.queue.Abort()
			}
		}
		e.cancel()
	}

	var errs []error
	for _, o := range e.outlets {
		if err := o.sender.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", o.sender.Name(), err))
		}
	}
	return errors.Join(errs...)
}
