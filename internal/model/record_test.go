package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowRecord_Number(t *testing.T) {
	rec := FlowRecord{
		"int":    7,
		"uint32": uint32(9),
		"float":  12.5,
		"json":   json.Number("42"),
		"string": "1200",
		"bad":    "abc",
		"slice":  []int{1},
	}

	tests := []struct {
		field   string
		want    float64
		wantErr bool
	}{
		{"int", 7, false},
		{"uint32", 9, false},
		{"float", 12.5, false},
		{"json", 42, false},
		{"string", 1200, false},
		{"bad", 0, true},
		{"slice", 0, true},
		{"missing", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, err := rec.Number(tt.field)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlowRecord_Protocol(t *testing.T) {
	p, err := FlowRecord{FieldProtocol: "6"}.Protocol(FieldProtocol)
	require.NoError(t, err)
	assert.Equal(t, 6, p)

	_, err = FlowRecord{FieldProtocol: 6.5}.Protocol(FieldProtocol)
	assert.Error(t, err)
}

func TestEpochOf(t *testing.T) {
	assert.Equal(t, int64(10), EpochOf(time.Unix(10, 900_000_000)))
	assert.Equal(t, int64(11), RecordBatch{Arrival: time.Unix(11, 0)}.Epoch())
	assert.Equal(t, 0.0, Range{Min: 3, Max: 3}.Span())
}
