// Package pipeline turns per-epoch metric totals into bounded control values.
//
// For every metric in a fixed, ordered list it keeps an adaptive threshold
// (a moving average whose window grows by one per epoch up to a ceiling) and
// the lifetime observed range. Each epoch yields a gating vector (is the
// metric at or above its threshold) and a scaling vector (the value mapped
// through the observed range onto the tone range).
package pipeline

import (
	"maps"
	"sync"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/model"
)

// Gating vector values.
const (
	GateLow  = 0.1
	GateHigh = 1.0
)

// State is a copy of the pipeline state.
type State struct {
	Epochs     uint64                 `json:"epochs"`
	Metrics    []string               `json:"metrics"`
	Thresholds map[string]float64     `json:"thresholds"`
	Ranges     map[string]model.Range `json:"ranges"`
}

// Pipeline holds the running thresholds and ranges. Consume must be called
// from a single goroutine; Snapshot may be called concurrently.
type Pipeline struct {
	names   []string
	ceiling uint64
	minTone float64
	maxTone float64

	mu         sync.RWMutex
	count      uint64
	thresholds map[string]float64
	ranges     map[string]model.Range
}

// New creates a pipeline with zeroed state for every configured metric.
func New(cfg config.PipelineConfig) *Pipeline {
	p := &Pipeline{
		names:      append([]string(nil), cfg.Metrics...),
		ceiling:    uint64(cfg.WindowCeiling),
		minTone:    cfg.MinTone,
		maxTone:    cfg.MaxTone,
		thresholds: make(map[string]float64, len(cfg.Metrics)),
		ranges:     make(map[string]model.Range, len(cfg.Metrics)),
	}
	for _, name := range p.names {
		p.thresholds[name] = 0
		p.ranges[name] = model.Range{}
	}
	return p
}

// Names returns the fixed metric order of both vectors.
func (p *Pipeline) Names() []string {
	return append([]string(nil), p.names...)
}

// Consume folds one epoch into the running state and returns both vectors.
func (p *Pipeline) Consume(summary *model.EpochSummary) *model.EpochResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.count++
	window := float64(min(p.ceiling, p.count))
	for name, value := range summary.Metrics {
		threshold, tracked := p.thresholds[name]
		if !tracked {
			continue
		}
		p.thresholds[name] = threshold + (value-threshold)/window

		r := p.ranges[name]
		r.Max = max(r.Max, value)
		r.Min = min(r.Min, value)
		p.ranges[name] = r
	}

	return &model.EpochResult{
		Epoch:      summary.Epoch,
		Count:      p.count,
		Metrics:    summary.Metrics,
		Names:      p.Names(),
		Scaling:    p.scale(summary.Metrics),
		Gating:     p.thresholdize(summary.Metrics),
		Thresholds: maps.Clone(p.thresholds),
		Ranges:     maps.Clone(p.ranges),
	}
}

// Thresholdize returns GateLow for every metric that is absent or strictly
// below its threshold and GateHigh otherwise, in metric order.
func (p *Pipeline) Thresholdize(set model.ProtoMetricSet) []float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.thresholdize(set)
}

func (p *Pipeline) thresholdize(set model.ProtoMetricSet) []float64 {
	out := make([]float64, len(p.names))
	for i, name := range p.names {
		value, ok := set[name]
		if !ok || value < p.thresholds[name] {
			out[i] = GateLow
		} else {
			out[i] = GateHigh
		}
	}
	return out
}

// Scale maps every metric onto the tone range using the observed range, in
// metric order. Absent metrics and metrics with an empty range scale to 0.
func (p *Pipeline) Scale(set model.ProtoMetricSet) []float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.scale(set)
}

func (p *Pipeline) scale(set model.ProtoMetricSet) []float64 {
	out := make([]float64, len(p.names))
	for i, name := range p.names {
		value, ok := set[name]
		span := p.ranges[name].Span()
		if !ok || span == 0 {
			continue
		}
		out[i] = value * (p.maxTone - p.minTone) / span
	}
	return out
}

// Snapshot returns a copy of the current state.
func (p *Pipeline) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return State{
		Epochs:     p.count,
		Metrics:    p.Names(),
		Thresholds: maps.Clone(p.thresholds),
		Ranges:     maps.Clone(p.ranges),
	}
}
