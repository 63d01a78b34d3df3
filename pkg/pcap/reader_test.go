package pcap

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"Go2NetSonify/internal/model"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCapture(t *testing.T, packets []Packet) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := NewWriter(f)
	require.NoError(t, err)
	for _, p := range packets {
		require.NoError(t, w.Write(p))
	}
	return path
}

func TestReader_ReadBatches(t *testing.T) {
	base := time.Unix(1700000000, 0)
	src, dst := net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2)
	path := writeCapture(t, []Packet{
		{Timestamp: base, Protocol: layers.IPProtocolTCP, SrcIP: src, DstIP: dst, SrcPort: 1, DstPort: 2},
		{Timestamp: base, Protocol: layers.IPProtocolUDP, SrcIP: src, DstIP: dst, SrcPort: 1, DstPort: 2},
		{Timestamp: base.Add(500 * time.Millisecond), Protocol: layers.IPProtocolICMPv4, SrcIP: src, DstIP: dst},
		{Timestamp: base.Add(1200 * time.Millisecond), Protocol: layers.IPProtocolTCP, SrcIP: src, DstIP: dst, SrcPort: 3, DstPort: 4},
	})

	reader, err := NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	var batches []model.RecordBatch
	stats, err := reader.ReadBatches(context.Background(), func(b model.RecordBatch) {
		batches = append(batches, b)
	})
	require.NoError(t, err)

	assert.Equal(t, Stats{Packets: 4, Batches: 3}, stats)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0].Records, 2)
	assert.True(t, batches[0].Arrival.Equal(base))
	assert.Equal(t, int64(1700000000), batches[1].Epoch())
	assert.Equal(t, int64(1700000001), batches[2].Epoch())
	assert.Equal(t, 1, batches[1].Records[0][model.FieldProtocol])
}

func TestReader_Cancelled(t *testing.T) {
	path := writeCapture(t, []Packet{
		{Timestamp: time.Unix(1, 0), Protocol: layers.IPProtocolTCP, SrcIP: net.IPv4(1, 1, 1, 1), DstIP: net.IPv4(2, 2, 2, 2)},
	})
	reader, err := NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := reader.ReadBatches(ctx, func(model.RecordBatch) { t.Fatal("no batch expected") })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Packets)
}

func TestNewReader_NotPcap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.pcap")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a capture"), 0o644))

	_, err := NewReader(path)
	assert.Error(t, err)

	_, err = NewReader(filepath.Join(t.TempDir(), "missing.pcap"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
