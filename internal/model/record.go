package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Number returns the value of field as a float64. Decoders deliver numbers in
// different shapes (native ints, JSON floats, decimal strings), so all of them
// are accepted.
func (r FlowRecord) Number(field string) (float64, error) {
	v, ok := r[field]
	if !ok {
		return 0, fmt.Errorf("field %s missing", field)
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("field %s: %w", field, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("field %s has non-numeric type %T", field, v)
	}
}

// Protocol returns the protocol identifier of the record as an integer.
func (r FlowRecord) Protocol(field string) (int, error) {
	f, err := r.Number(field)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("field %s is not an integer: %v", field, f)
	}
	return int(f), nil
}
