// Package codec defines the wire format of decoded record batches on NATS:
// a protobuf Struct with an "arrival" timestamp and a "records" list of flat
// field maps.
package codec

import (
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"Go2NetSonify/internal/model"
)

const (
	keyArrival = "arrival"
	keyRecords = "records"
)

// ErrMalformed is returned for payloads that are valid protobuf but do not
// carry a batch.
var ErrMalformed = errors.New("malformed batch payload")

// EncodeBatch serializes a batch.
func EncodeBatch(batch model.RecordBatch) ([]byte, error) {
	records := make([]any, 0, len(batch.Records))
	for i, rec := range batch.Records {
		fields := make(map[string]any, len(rec))
		for k, v := range rec {
			nv, err := normalize(v)
			if err != nil {
				return nil, fmt.Errorf("record %d field %s: %w", i, k, err)
			}
			fields[k] = nv
		}
		records = append(records, fields)
	}

	s, err := structpb.NewStruct(map[string]any{
		keyArrival: batch.Arrival.UTC().Format(time.RFC3339Nano),
		keyRecords: records,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build batch struct: %w", err)
	}
	return proto.Marshal(s)
}

// DecodeBatch parses a payload written by EncodeBatch. Numeric fields come
// back as float64.
func DecodeBatch(data []byte) (model.RecordBatch, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return model.RecordBatch{}, fmt.Errorf("failed to unmarshal batch: %w", err)
	}

	var batch model.RecordBatch
	if v, ok := s.Fields[keyArrival]; ok {
		t, err := time.Parse(time.RFC3339Nano, v.GetStringValue())
		if err != nil {
			return model.RecordBatch{}, fmt.Errorf("%w: arrival: %v", ErrMalformed, err)
		}
		batch.Arrival = t
	}

	list := s.Fields[keyRecords].GetListValue()
	if list == nil {
		return model.RecordBatch{}, fmt.Errorf("%w: no records list", ErrMalformed)
	}
	batch.Records = make([]model.FlowRecord, 0, len(list.Values))
	for i, v := range list.Values {
		rec := v.GetStructValue()
		if rec == nil {
			return model.RecordBatch{}, fmt.Errorf("%w: record %d is not a struct", ErrMalformed, i)
		}
		batch.Records = append(batch.Records, model.FlowRecord(rec.AsMap()))
	}
	return batch, nil
}

// structpb only takes a fixed set of Go types.
func normalize(v any) (any, error) {
	switch n := v.(type) {
	case nil, bool, string, int, int32, int64, uint, uint32, uint64, float32, float64:
		return n, nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case net.IP:
		return n.String(), nil
	case time.Time:
		return n.UTC().Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return n.String(), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}
