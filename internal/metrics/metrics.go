// Package metrics holds the Prometheus collectors of the sonification engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gons"

// Metrics groups every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	recordsIngested  prometheus.Counter
	batchesIngested  prometheus.Counter
	epochsClosed     prometheus.Counter
	epochsSummarized prometheus.Counter
	epochsAborted    prometheus.Counter
	unknownProtocol  *prometheus.CounterVec
	pendingBatches   prometheus.Gauge
	metricValue      *prometheus.GaugeVec
	metricThreshold  *prometheus.GaugeVec
	sendErrors       *prometheus.CounterVec
	decodeErrors     *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		recordsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Flow records accepted by the ingestion handler",
		}),
		batchesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "batches_total",
			Help:      "Arrival events accepted by the ingestion handler",
		}),
		epochsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "epoch",
			Name:      "closed_total",
			Help:      "Epoch boundaries detected",
		}),
		epochsSummarized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "epoch",
			Name:      "summarized_total",
			Help:      "Epochs summarized and handed to the metric pipeline",
		}),
		epochsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "epoch",
			Name:      "aborted_total",
			Help:      "Epochs dropped because of an unknown protocol",
		}),
		unknownProtocol: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "epoch",
			Name:      "unknown_protocol_records_total",
			Help:      "Records whose protocol identifier is not in the protocol table",
		}, []string{"protocol"}),
		pendingBatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "epoch",
			Name:      "pending_batches",
			Help:      "Batches held in the epoch store",
		}),
		metricValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "metric_value",
			Help:      "Raw value of a metric in the last summarized epoch",
		}, []string{"metric"}),
		metricThreshold: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "metric_threshold",
			Help:      "Adaptive threshold of a metric",
		}, []string{"metric"}),
		sendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "emitter",
			Name:      "send_errors_total",
			Help:      "Failed deliveries per sink",
		}, []string{"sink"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "decode_errors_total",
			Help:      "Arrival events that could not be decoded",
		}, []string{"source"}),
	}

	m.registry.MustRegister(
		m.recordsIngested,
		m.batchesIngested,
		m.epochsClosed,
		m.epochsSummarized,
		m.epochsAborted,
		m.unknownProtocol,
		m.pendingBatches,
		m.metricValue,
		m.metricThreshold,
		m.sendErrors,
		m.decodeErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// BatchIngested counts one arrival event carrying n records.
func (m *Metrics) BatchIngested(n int) {
	if m == nil {
		return
	}
	m.batchesIngested.Inc()
	m.recordsIngested.Add(float64(n))
}

// EpochClosed counts a detected epoch boundary.
func (m *Metrics) EpochClosed() {
	if m == nil {
		return
	}
	m.epochsClosed.Inc()
}

// EpochSummarized counts an epoch handed to the pipeline.
func (m *Metrics) EpochSummarized() {
	if m == nil {
		return
	}
	m.epochsSummarized.Inc()
}

// EpochAborted counts an epoch dropped under the abort policy.
func (m *Metrics) EpochAborted() {
	if m == nil {
		return
	}
	m.epochsAborted.Inc()
}

// UnknownProtocol counts a record with an unmapped protocol identifier.
func (m *Metrics) UnknownProtocol(id int) {
	if m == nil {
		return
	}
	m.unknownProtocol.WithLabelValues(strconv.Itoa(id)).Inc()
}

// SetPendingBatches records the epoch store size.
func (m *Metrics) SetPendingBatches(n int) {
	if m == nil {
		return
	}
	m.pendingBatches.Set(float64(n))
}

// ObserveMetric records the last value and threshold of a metric.
func (m *Metrics) ObserveMetric(name string, value, threshold float64) {
	if m == nil {
		return
	}
	m.metricValue.WithLabelValues(name).Set(value)
	m.metricThreshold.WithLabelValues(name).Set(threshold)
}

// SendFailed counts a failed delivery to sink.
func (m *Metrics) SendFailed(sink string) {
	if m == nil {
		return
	}
	m.sendErrors.WithLabelValues(sink).Inc()
}

// DecodeFailed counts an undecodable arrival on source.
func (m *Metrics) DecodeFailed(source string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(source).Inc()
}
