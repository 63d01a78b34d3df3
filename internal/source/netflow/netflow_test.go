package netflow

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/metrics"
	"Go2NetSonify/internal/model"
)

func sampleFlows() []Flow {
	return []Flow{
		{SrcAddr: net.ParseIP("10.0.0.1"), DstAddr: net.ParseIP("10.0.0.2"), SrcPort: 5353, DstPort: 53,
			Protocol: 17, Packets: 3, Bytes: 240},
		{SrcAddr: net.ParseIP("192.168.1.5"), DstAddr: net.ParseIP("1.1.1.1"), SrcPort: 40000, DstPort: 443,
			Protocol: 6, Packets: 12, Bytes: 9000, TCPFlags: 0x18},
	}
}

func TestDecode(t *testing.T) {
	data := Encode(Header{UnixSecs: 1700000000, FlowSequence: 42, SamplingInterval: 1}, sampleFlows())

	h, records, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(5), h.Version)
	assert.Equal(t, uint16(2), h.Count)
	assert.Equal(t, uint32(1700000000), h.UnixSecs)
	assert.Equal(t, uint32(42), h.FlowSequence)
	require.Len(t, records, 2)

	udp := records[0]
	assert.Equal(t, "10.0.0.1", udp[model.FieldSrcAddr])
	assert.Equal(t, "10.0.0.2", udp[model.FieldDstAddr])
	assert.Equal(t, uint8(17), udp[model.FieldProtocol])
	assert.Equal(t, uint32(3), udp[model.FieldPackets])
	assert.Equal(t, uint32(240), udp[model.FieldBytes])
	assert.Equal(t, uint16(53), udp[model.FieldDstPort])

	tcp := records[1]
	p, err := tcp.Protocol(model.FieldProtocol)
	require.NoError(t, err)
	assert.Equal(t, 6, p)
	assert.Equal(t, uint8(0x18), tcp[model.FieldTCPFlags])
	bytes, err := tcp.Number(model.FieldBytes)
	require.NoError(t, err)
	assert.Equal(t, 9000.0, bytes)
}

func TestDecode_Errors(t *testing.T) {
	full := Encode(Header{}, sampleFlows())
	v9 := append([]byte(nil), full...)
	v9[1] = 9

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrShortPacket},
		{"truncated header", full[:10], ErrShortPacket},
		{"truncated records", full[:len(full)-1], ErrShortPacket},
		{"version 9", v9, ErrUnsupportedVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestListener_Run(t *testing.T) {
	l := New(config.NetFlowConfig{ListenAddr: "127.0.0.1:0"}, metrics.New(), nil)
	require.NoError(t, l.Listen())

	var mu sync.Mutex
	var got []model.RecordBatch
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, func(b model.RecordBatch) {
			mu.Lock()
			got = append(got, b)
			mu.Unlock()
		})
	}()

	conn, err := net.Dial("udp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte{0, 9, 0, 0})
	require.NoError(t, err)
	_, err = conn.Write(Encode(Header{}, sampleFlows()))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got[0].Records, 2)
	assert.False(t, got[0].Arrival.IsZero())
}
