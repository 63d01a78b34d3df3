package model

import (
	"time"
)

// Field names of the decoded records, as produced by NetFlow v9 style decoders.
const (
	FieldProtocol = "PROTOCOL"
	FieldPackets  = "IN_PKTS"
	FieldBytes    = "IN_BYTES"
	FieldSrcAddr  = "IPV4_SRC_ADDR"
	FieldDstAddr  = "IPV4_DST_ADDR"
	FieldSrcPort  = "L4_SRC_PORT"
	FieldDstPort  = "L4_DST_PORT"
	FieldTCPFlags = "TCP_FLAGS"
	FieldTOS      = "SRC_TOS"
	FieldFirst    = "FIRST_SWITCHED"
	FieldLast     = "LAST_SWITCHED"
)

// FlowRecord is a single decoded flow accounting entry. It is a flat mapping
// from field name to value and is never modified once decoded.
type FlowRecord map[string]any

// RecordBatch holds the records delivered by one arrival event.
type RecordBatch struct {
	Arrival time.Time
	Records []FlowRecord
}

// Epoch returns the whole second the batch arrived in.
func (b RecordBatch) Epoch() int64 {
	return EpochOf(b.Arrival)
}

// EpochOf truncates t to its whole second.
func EpochOf(t time.Time) int64 {
	return t.Unix()
}

// ProtoMetricSet maps a metric name such as "tcp_pps" or "udp_bw" to the
// aggregated value for one closed epoch.
type ProtoMetricSet map[string]float64

// EpochSummary is what the aggregator hands to the metric pipeline.
type EpochSummary struct {
	Epoch   int64
	Batches int
	Records int
	Skipped int
	Metrics ProtoMetricSet
}

// Range is the lifetime observed minimum and maximum of a metric.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Span returns Max - Min.
func (r Range) Span() float64 {
	return r.Max - r.Min
}

// EpochResult is produced by the metric pipeline for every summarized epoch.
// Scaling and Gating follow the order of Names.
type EpochResult struct {
	Epoch      int64              `json:"epoch"`
	Count      uint64             `json:"count"`
	Metrics    ProtoMetricSet     `json:"metrics"`
	Names      []string           `json:"names"`
	Scaling    []float64          `json:"scaling"`
	Gating     []float64          `json:"gating"`
	Thresholds map[string]float64 `json:"thresholds"`
	Ranges     map[string]Range   `json:"ranges"`
}
