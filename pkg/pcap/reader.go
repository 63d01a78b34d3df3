package pcap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"Go2NetSonify/internal/engine/protocol"
	"Go2NetSonify/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"
)

// Reader replays a pcap file as record batches.
type Reader struct {
	file *os.File
	src  *pcapgo.Reader
}

// Stats counts what a replay produced.
type Stats struct {
	Packets int
	Skipped int
	Batches int
}

// NewReader opens a pcap file for replay.
func NewReader(filePath string) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	src, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pcap: %s: %w", filePath, err)
	}
	return &Reader{file: f, src: src}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadBatches decodes every packet into a single-packet flow record.
// Consecutive packets sharing a capture timestamp are delivered as one batch
// whose arrival time is that timestamp. Non-IP packets are skipped.
func (r *Reader) ReadBatches(ctx context.Context, handle model.BatchHandler) (Stats, error) {
	var (
		stats   Stats
		pending model.RecordBatch
	)
	flush := func() {
		if len(pending.Records) == 0 {
			return
		}
		handle(pending)
		stats.Batches++
		pending = model.RecordBatch{}
	}

	link := r.src.LinkType()
	for {
		if err := ctx.Err(); err != nil {
			flush()
			return stats, err
		}
		data, ci, err := r.src.ReadPacketData()
		if errors.Is(err, io.EOF) {
			flush()
			return stats, nil
		}
		if err != nil {
			flush()
			return stats, fmt.Errorf("pcap: read packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		packet := gopacket.NewPacket(data, link, gopacket.NoCopy)
		packet.Metadata().CaptureInfo = ci
		rec, err := protocol.ParsePacket(packet)
		if err != nil {
			stats.Skipped++
			continue
		}
		if !pending.Arrival.Equal(ci.Timestamp) {
			flush()
			pending.Arrival = ci.Timestamp
		}
		pending.Records = append(pending.Records, rec)
	}
}
