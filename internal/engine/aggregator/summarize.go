package aggregator

import (
	"errors"
	"fmt"
	"math"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/model"
)

var (
	// ErrUnknownProtocol marks a record whose protocol identifier is not in
	// the protocol table.
	ErrUnknownProtocol = errors.New("unknown protocol")
	// ErrBadRecord marks a record whose protocol or measurement fields
	// cannot be read.
	ErrBadRecord = errors.New("malformed flow record")
)

// Measurement suffixes of the metric names.
const (
	SuffixPackets = "_pps"
	SuffixBytes   = "_bw"
)

// Aspect binds a metric name suffix to the record field it sums.
type Aspect struct {
	Suffix string
	Field  string
}

// RecordError describes one record that could not be attributed.
type RecordError struct {
	Epoch    int64
	Index    int
	Protocol int
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("epoch %d record %d: %v", e.Epoch, e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Summarizer folds the records of one epoch into per-protocol totals.
type Summarizer struct {
	protocols     map[int]string
	protocolField string
	aspects       []Aspect
	abort         bool
}

// NewSummarizer builds a summarizer from the protocol table and field names.
func NewSummarizer(cfg *config.Config) *Summarizer {
	protocols := make(map[int]string, len(cfg.Protocols))
	for id, name := range cfg.Protocols {
		protocols[id] = name
	}
	return &Summarizer{
		protocols:     protocols,
		protocolField: cfg.Fields.Protocol,
		aspects: []Aspect{
			{Suffix: SuffixPackets, Field: cfg.Fields.Packets},
			{Suffix: SuffixBytes, Field: cfg.Fields.Bytes},
		},
		abort: cfg.Pipeline.UnknownProtocol == config.PolicyAbort,
	}
}

// Summarize flattens the batches in order and sums every aspect per protocol.
//
// Records that cannot be attributed are reported in the returned slice. With
// the skip policy they are left out and the summary is still valid; with the
// abort policy the first such record makes Summarize return a nil summary.
func (s *Summarizer) Summarize(epoch int64, batches []model.RecordBatch) (*model.EpochSummary, []*RecordError) {
	summary := &model.EpochSummary{
		Epoch:   epoch,
		Batches: len(batches),
		Metrics: make(model.ProtoMetricSet),
	}

	var rejected []*RecordError
	index := 0
	for _, batch := range batches {
		for _, rec := range batch.Records {
			if rerr := s.add(summary.Metrics, rec); rerr != nil {
				rerr.Epoch, rerr.Index = epoch, index
				rejected = append(rejected, rerr)
				if s.abort {
					return nil, rejected
				}
				summary.Skipped++
			} else {
				summary.Records++
			}
			index++
		}
	}
	return summary, rejected
}

func (s *Summarizer) add(metrics model.ProtoMetricSet, rec model.FlowRecord) *RecordError {
	id, err := rec.Protocol(s.protocolField)
	if err != nil {
		return &RecordError{Protocol: -1, Err: fmt.Errorf("%w: %v", ErrBadRecord, err)}
	}
	name, ok := s.protocols[id]
	if !ok {
		return &RecordError{Protocol: id, Err: fmt.Errorf("%w: %d", ErrUnknownProtocol, id)}
	}

	values := make([]float64, len(s.aspects))
	for i, aspect := range s.aspects {
		v, err := rec.Number(aspect.Field)
		if err != nil {
			return &RecordError{Protocol: id, Err: fmt.Errorf("%w: %v", ErrBadRecord, err)}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return &RecordError{Protocol: id, Err: fmt.Errorf("%w: field %s out of range: %v", ErrBadRecord, aspect.Field, v)}
		}
		values[i] = v
	}
	for i, aspect := range s.aspects {
		metrics[name+aspect.Suffix] += values[i]
	}
	return nil
}
