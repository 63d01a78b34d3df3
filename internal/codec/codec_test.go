package codec

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Go2NetSonify/internal/model"
)

func TestBatchRoundTrip(t *testing.T) {
	arrival := time.Date(2024, 3, 1, 12, 0, 5, 123456789, time.UTC)
	batch := model.RecordBatch{
		Arrival: arrival,
		Records: []model.FlowRecord{
			{
				model.FieldProtocol: uint8(6),
				model.FieldPackets:  uint32(5),
				model.FieldBytes:    uint64(500),
				model.FieldSrcAddr:  net.ParseIP("10.0.0.1").To4(),
				model.FieldSrcPort:  uint16(443),
			},
			{model.FieldProtocol: 17, model.FieldPackets: 1, model.FieldBytes: 60},
		},
	}

	data, err := EncodeBatch(batch)
	require.NoError(t, err)

	got, err := DecodeBatch(data)
	require.NoError(t, err)
	assert.True(t, arrival.Equal(got.Arrival))
	require.Len(t, got.Records, 2)

	first := got.Records[0]
	assert.Equal(t, 6.0, first[model.FieldProtocol])
	assert.Equal(t, 500.0, first[model.FieldBytes])
	assert.Equal(t, "10.0.0.1", first[model.FieldSrcAddr])
	assert.Equal(t, 443.0, first[model.FieldSrcPort])

	p, err := got.Records[1].Protocol(model.FieldProtocol)
	require.NoError(t, err)
	assert.Equal(t, 17, p)
}

func TestEncodeBatch_UnsupportedValue(t *testing.T) {
	_, err := EncodeBatch(model.RecordBatch{
		Records: []model.FlowRecord{{"weird": []int{1, 2}}},
	})
	assert.Error(t, err)
}

func TestDecodeBatch_Malformed(t *testing.T) {
	_, err := DecodeBatch([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)

	// A valid Struct without records.
	data, err := EncodeBatch(model.RecordBatch{})
	require.NoError(t, err)
	got, err := DecodeBatch(data)
	require.NoError(t, err)
	assert.Empty(t, got.Records)
}
